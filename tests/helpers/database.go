package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/labstack/gommon/random"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	SQLDialect   = "postgres"
	User         = "postgres"
	Password     = "postgres"
	MasterDBName = "CINELOG_DB"
	AdminDBName  = "postgres"
)

var (
	ctx       = context.Background()
	dbManager = newDatabaseManager(MasterDBName)
)

// databaseManager is an internal test helper which facilitates
// the templating of a single 'master' database in a shared postgresql
// docker instance. This allows tests to use individual databases without
// needing to create multiple instances of docker. This manager will:
//   - automatically spawn the container,
//   - migrate the master database,
//   - mark the master database as a template, and,
//   - facilitate provisioning of new databases based off that master database.
type databaseManager struct {
	*sync.Mutex
	masterDatabaseName string
	pgContainer        *postgres.PostgresContainer
	host               string
	port               string

	// connection is to the admin database, as a template
	// database cannot be copied while it has open connections.
	connection *sql.DB
}

func newDatabaseManager(databaseName string) *databaseManager {
	return &databaseManager{
		Mutex:              &sync.Mutex{},
		masterDatabaseName: databaseName,
	}
}

// RequireDB provisions a new, fully migrated, database for the calling test and
// returns a connected database manager for it. The database is dropped when the
// test completes. Tests calling this are skipped in short mode as they require docker.
func RequireDB(t *testing.T) database.Manager {
	if testing.Short() {
		t.Skip("skipping test requiring postgres in short mode")
	}

	databaseName := "cinelog_test_" + random.String(12, random.Lowercase)
	config := dbManager.provisionDB(t, databaseName)

	db := database.New()
	if err := db.Connect(config); err != nil {
		t.Fatalf("failed to connect to provisioned database '%s': %s", databaseName, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		dbManager.dropDB(t, databaseName)
	})

	return db
}

// TeardownDatabases stops the shared postgres container, if one was started. This
// should be called from TestMain once all tests in the package have completed.
func TeardownDatabases() {
	dbManager.disconnect()
}

func (manager *databaseManager) provisionDB(t *testing.T, databaseName string) database.DatabaseConfig {
	manager.Lock()
	defer manager.Unlock()

	if manager.connection == nil {
		t.Log("Database provisioning request received but manager not started yet. Initializing database management...")
		manager.connect(t)
		manager.markMasterDB(t)
		t.Log("Database management initialised!")
	}

	if _, err := manager.connection.Exec(fmt.Sprintf(`CREATE DATABASE "%s" TEMPLATE "%s"`, databaseName, manager.masterDatabaseName)); err != nil {
		t.Fatalf("failed to provision database '%s' based on template database '%s': (%T) %s", databaseName, manager.masterDatabaseName, err, err)
	}

	return manager.configFor(databaseName)
}

func (manager *databaseManager) dropDB(t *testing.T, databaseName string) {
	manager.Lock()
	defer manager.Unlock()

	if manager.connection == nil {
		return
	}

	if _, err := manager.connection.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, databaseName)); err != nil {
		t.Logf("WARNING: failed to drop database '%s': %s", databaseName, err)
	}
}

func (manager *databaseManager) configFor(databaseName string) database.DatabaseConfig {
	return database.DatabaseConfig{
		User:            User,
		Password:        Password,
		Name:            databaseName,
		Host:            manager.host,
		Port:            manager.port,
		SslMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
}

func (manager *databaseManager) connect(t *testing.T) {
	if manager.pgContainer == nil {
		manager.spawnPostgres(t)
	} else if !manager.pgContainer.IsRunning() {
		t.Fatalf("failed to connect database manager, container exists but not running")
	}

	db, err := sql.Open(SQLDialect, manager.configFor(AdminDBName).DSN())
	if err != nil {
		t.Fatalf("failed to open postgres connection: %s", err)
	}

	for attempt := 1; ; attempt++ {
		if err := db.Ping(); err != nil {
			if attempt == 3 {
				t.Fatalf("all database connection attempts FAILED: %s", err)
			}

			t.Logf("DB connection attempt (%v/3) failed... Retrying in 1s", attempt)
			time.Sleep(time.Second)
			continue
		}

		break
	}

	t.Log("Database connection established!")
	manager.connection = db
}

func (manager *databaseManager) markMasterDB(t *testing.T) {
	if manager.connection == nil {
		t.Fatalf("cannot mark master database as template: db connection not established")
		return
	}

	t.Log("Migrating master database...")
	master, err := sql.Open(SQLDialect, manager.configFor(manager.masterDatabaseName).DSN())
	if err != nil {
		t.Fatalf("failed to open connection to master database: %s", err)
	}
	if err := database.Migrate(master); err != nil {
		_ = master.Close()
		t.Fatalf("failed to migrate master database: %s", err)
	}
	_ = master.Close()

	t.Log("Master DB migrated, marking master database as template...")
	if _, err := manager.connection.Exec(fmt.Sprintf(`ALTER DATABASE "%s" WITH is_template TRUE`, manager.masterDatabaseName)); err != nil {
		t.Fatalf("failed to mark master database (%s) as template: %s", manager.masterDatabaseName, err)
	}
}

func (manager *databaseManager) spawnPostgres(t *testing.T) {
	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:16-alpine"),
		postgres.WithDatabase(MasterDBName),
		postgres.WithUsername(User),
		postgres.WithPassword(Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		// Test data is throwaway, so keep it off the disk
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
			hostConfig.Tmpfs = map[string]string{"/var/lib/postgresql/data": "rw"}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
		return
	}

	host, err := postgresC.Host(ctx)
	if err != nil {
		t.Fatalf("failed to resolve postgres container host: %s", err)
	}
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to resolve postgres container port: %s", err)
	}

	manager.pgContainer = postgresC
	manager.host = host
	manager.port = strconv.Itoa(port.Int())
}

func (manager *databaseManager) disconnect() {
	manager.Lock()
	defer manager.Unlock()

	if manager.connection != nil {
		_ = manager.connection.Close()
		manager.connection = nil
	}

	if manager.pgContainer != nil {
		timeout := 5 * time.Second
		_ = manager.pgContainer.Stop(ctx, &timeout)
		_ = manager.pgContainer.Terminate(ctx)
		manager.pgContainer = nil
	}
}
