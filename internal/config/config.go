// Package config reads uledger.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "uledger.yaml"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

// Environment variables that override the file.
const (
	EnvDatabaseURL = "ULEDGER_DATABASE_URL"
	EnvJWTSecret   = "ULEDGER_JWT_SECRET"
	EnvAddr        = "ULEDGER_ADDR"
)

// Config represents the top-level uledger.yaml configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Git     GitConfig     `yaml:"git"`
}

// StorageConfig selects the persistence gateway.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Dir         string `yaml:"dir,omitempty"`          // csv
	DatabaseURL string `yaml:"database_url,omitempty"` // postgres
}

// LedgerConfig holds ledger defaults.
type LedgerConfig struct {
	DefaultRegion string `yaml:"default_region"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret,omitempty"` // empty disables auth
}

// GitConfig controls git integration of the csv data directory.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a uledger.yaml file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new data directory.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverCSV,
			Dir:    "data",
		},
		Ledger: LedgerConfig{DefaultRegion: "US"},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080"},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "uledger",
			AuthorEmail: "uledger@localhost",
		},
	}
}

// ApplyEnv loads envFile (if it exists) into the process environment without
// overriding variables already set, then applies the ULEDGER_* overrides.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if v, ok := os.LookupEnv(EnvDatabaseURL); ok {
		c.Storage.DatabaseURL = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok {
		c.Server.JWTSecret = v
	}
	if v, ok := os.LookupEnv(EnvAddr); ok {
		c.Server.Addr = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverCSV:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the csv driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url (or %s) is required for the postgres driver", EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", s)
	}
	return level, nil
}
