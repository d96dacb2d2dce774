package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Cinelog/internal/api"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/internal/http/tmdb"
	"github.com/hbomb79/Cinelog/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// cinelogImpl represents the top-level object for the server, and is responsible
// for connecting to the database, and bringing up the stores and the REST gateway
// which serves them.
type cinelogImpl struct {
	config Config
	db     database.Manager
}

func New(config Config) *cinelogImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Cinelog services using config: %s\n", config)
	return &cinelogImpl{
		config: config,
		db:     database.New(),
	}
}

// Run will start all of Cinelog by bringing up all required services and connections, such as:
// - Database connection (and migrations)
// - Stores
// - REST gateway
//
// This function will not return until Cinelog is stopped.
// To stop Cinelog, the provided context must be cancelled. Errors from which Cinelog cannot recover
// will also cause Cinelog to stop.
func (cinelog *cinelogImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var crashErr error
	crashOnce := &sync.Once{}
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		crashOnce.Do(func() { crashErr = fmt.Errorf("service %s crashed: %w", label, err) })
		cancel()
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := cinelog.db.Connect(cinelog.config.Database); err != nil {
		return err
	}
	defer cinelog.db.Close()

	store := NewStoreOrchestrator(cinelog.db, tmdb.NewClient(cinelog.config.Tmdb))
	gateway := api.NewRestGateway(&cinelog.config.Rest, store)

	wg := &sync.WaitGroup{}
	cinelog.spawnAsyncService(ctx, wg, gateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Cinelog services spawned! Listening on %s\n", cinelog.config.Rest.HostAddr)

	wg.Wait()
	return crashErr
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (cinelog *cinelogImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
