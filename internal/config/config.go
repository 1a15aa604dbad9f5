// Package config provides centralized configuration management for racereg.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Store   StoreConfig
	Paths   PathsConfig
	Import  ImportConfig
	Export  ExportConfig
	Logging LoggingConfig
}

// StoreConfig selects and tunes the registration store.
type StoreConfig struct {
	// Driver is the store backend: sqlite or postgres (default: sqlite)
	Driver string `env:"STORE_DRIVER" default:"sqlite"`

	// Path is the SQLite database file (default: lhf.db)
	Path string `env:"STORE_PATH" default:"lhf.db"`

	// URL is the PostgreSQL connection string, required when Driver is postgres.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled PostgreSQL connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// ConnectTimeout bounds store bootstrap (default: 10s)
	ConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`
}

// PathsConfig holds the output directories.
type PathsConfig struct {
	ConflictsDir  string `env:"CONFLICTS_DIR" default:"import_conflicts"`
	StartListsDir string `env:"STARTLISTS_DIR" default:"startlists"`
	RostersDir    string `env:"ROSTERS_DIR" default:"registration_lists"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// DefaultFile is read when no input file is given (default: new_registrations.csv)
	DefaultFile string `env:"IMPORT_DEFAULT_FILE" default:"new_registrations.csv"`

	// MaxFileSize is the maximum accepted CSV size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// TimeZone is the location signup timestamps are recorded in (default: UTC)
	TimeZone string `env:"IMPORT_TIMEZONE" default:"UTC"`

	// WatchDebounce is how long the watch command waits for writes to the
	// input file to settle before importing it (default: 2s)
	WatchDebounce time.Duration `env:"IMPORT_WATCH_DEBOUNCE" default:"2s"`
}

// ExportConfig holds start list and roster export settings.
type ExportConfig struct {
	// XLSX also writes an .xlsx copy next to every CSV export (default: false)
	XLSX bool `env:"EXPORT_XLSX" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Location returns the configured import time zone, falling back to UTC.
func (c *ImportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsPostgres reports whether the PostgreSQL backend is selected.
func (c *StoreConfig) IsPostgres() bool {
	return c.Driver == DriverPostgres
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Describe returns a short human readable location of the store.
func (c *StoreConfig) Describe() string {
	if c.IsPostgres() {
		return "postgres (pool " + strconv.Itoa(c.MinConns) + "-" + strconv.Itoa(c.MaxConns) + ")"
	}
	return "sqlite " + c.Path
}
