package internal

import (
	"fmt"
	"path/filepath"

	"github.com/hbomb79/Cinelog/internal/api"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/internal/http/tmdb"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const defaultConfigPath = "~/.config/cinelog/config.yaml"

// Config is the struct used to contain the
// various user config supplied by file, or
// by environment variables.
type Config struct {
	Database database.DatabaseConfig `yaml:"database" env-required:"true"`
	Rest     api.RestConfig          `yaml:"rest"`
	Tmdb     tmdb.Config             `yaml:"tmdb" env-required:"true"`
	LogLevel string                  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// String summarises the configuration for logging. Credentials, secrets and
// the TMDB API key are never included.
func (config Config) String() string {
	return fmt.Sprintf(
		"Config{Database: %s@%s:%s/%s (sslmode=%s), Rest: %s (secure cookies: %t), Tmdb: %s (%.0f req/s), LogLevel: %s}",
		config.Database.User, config.Database.Host, config.Database.Port, config.Database.Name, config.Database.SslMode,
		config.Rest.HostAddr, config.Rest.CookieSecure,
		config.Tmdb.BaseURL, config.Tmdb.RequestsPerSecond,
		config.LogLevel,
	)
}

// LoadFromFile loads a configuration file formatted in YAML in to the
// Config, with environment variables taking precedence over the file.
func (config *Config) LoadFromFile(configPath string) error {
	path, err := ResolveConfigPath(configPath)
	if err != nil {
		return err
	}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	return nil
}

// LoadFromEnv populates the Config using only environment variables.
func (config *Config) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return nil
}

// ResolveConfigPath expands the path provided (including any leading '~'), falling
// back to the default config location in the users home directory if the path is empty.
func ResolveConfigPath(path string) (string, error) {
	if path == "" {
		path = defaultConfigPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand config path %s: %w", path, err)
	}

	return filepath.Clean(expanded), nil
}
