// Package config loads the scriptdev runner configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath  = "SCRIPTDEV_CONFIG"
	EnvLogLevel    = "SCRIPTDEV_LOG_LEVEL"
	EnvDatabaseURL = "SCRIPTDEV_DATABASE_URL"
)

// DefaultPath is used when neither a flag nor SCRIPTDEV_CONFIG names a file.
const DefaultPath = "config/scriptdev.yaml"

// Runner holds all configuration for the encounter runner.
type Runner struct {
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Tick loop
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`

	// Definitions
	DefinitionsDir string `yaml:"definitions_dir"` // empty: embedded definitions only
	HotReload      bool   `yaml:"hot_reload"`

	// Simulation
	Seed uint64 `yaml:"seed"`

	// Persistence
	Database     DatabaseConfig `yaml:"database"`
	SaveInterval time.Duration  `yaml:"save_interval" validate:"gt=0"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"` // overrides the fields below when set
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultRunner returns Runner config with sensible defaults.
func DefaultRunner() Runner {
	return Runner{
		LogLevel:     "info",
		TickInterval: 100 * time.Millisecond,
		Seed:         1,
		SaveInterval: 5 * time.Minute,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "scriptdev",
			Password: "scriptdev",
			DBName:   "scriptdev",
			SSLMode:  "disable",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRunner loads runner config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadRunner(path string) (Runner, error) {
	cfg := DefaultRunner()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads .env (if present), resolves the config path and applies
// environment overrides on top of the file.
// An empty path falls back to SCRIPTDEV_CONFIG, then DefaultPath.
func Load(path string) (Runner, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DefaultRunner(), fmt.Errorf("reading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadRunner(path)
	if err != nil {
		return cfg, err
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if url := os.Getenv(EnvDatabaseURL); url != "" {
		cfg.Database.URL = url
		cfg.Database.Enabled = true
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
