// Package config reads the specs server's settings from SPECS_* environment
// variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Database drivers selected by the scheme of SPECS_DATABASE_URL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DatabaseURL string // SPECS_DATABASE_URL (required)
	GRPCAddr    string // SPECS_GRPC_ADDR (default ":9090")
	HTTPAddr    string // SPECS_HTTP_ADDR (default ":8080")
	NATSURL     string // SPECS_NATS_URL (optional, empty = no events)
	AuthToken   string // SPECS_AUTH_TOKEN (optional, empty = auth disabled)

	LogLevel  slog.Level // SPECS_LOG_LEVEL: debug, info, warn, error (default info)
	LogFormat string     // SPECS_LOG_FORMAT: text or json (default text)

	SyncInterval   time.Duration // SPECS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // SPECS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // SPECS_SYNC_S3_ENDPOINT (MinIO and other S3-compatible stores)
	SyncS3Region   string        // SPECS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // SPECS_SYNC_S3_KEY (default "specs/export.jsonl")
	SyncGitRepo    string        // SPECS_SYNC_GIT_REPO (path to a clone; enables git when set)
	SyncGitFile    string        // SPECS_SYNC_GIT_FILE (default "specs.jsonl")
	SyncGitBranch  string        // SPECS_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("SPECS_DATABASE_URL"),
		GRPCAddr:       envOrDefault("SPECS_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("SPECS_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("SPECS_NATS_URL"),
		AuthToken:      os.Getenv("SPECS_AUTH_TOKEN"),
		LogFormat:      strings.ToLower(envOrDefault("SPECS_LOG_FORMAT", "text")),
		SyncS3Bucket:   os.Getenv("SPECS_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("SPECS_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("SPECS_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("SPECS_SYNC_S3_KEY", "specs/export.jsonl"),
		SyncGitRepo:    os.Getenv("SPECS_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("SPECS_SYNC_GIT_FILE", "specs.jsonl"),
		SyncGitBranch:  envOrDefault("SPECS_SYNC_GIT_BRANCH", "main"),
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("SPECS_DATABASE_URL is required")
	}
	if _, _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return nil, fmt.Errorf("SPECS_DATABASE_URL: %w", err)
	}
	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("SPECS_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("SPECS_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("SPECS_LOG_FORMAT: want text or json, got %q", c.LogFormat)
	}
	d, err := time.ParseDuration(envOrDefault("SPECS_SYNC_INTERVAL", "3m"))
	if err != nil {
		return nil, fmt.Errorf("SPECS_SYNC_INTERVAL: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("SPECS_SYNC_INTERVAL: must not be negative")
	}
	c.SyncInterval = d

	return c, nil
}

// SyncEnabled reports whether scheduled export has an interval and at least
// one destination.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncGitRepo != "")
}

// NewLogger returns a logger writing to w at the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseDatabaseURL returns the store driver for a database URL and the DSN
// to open it with. postgres:// and postgresql:// select Postgres;
// sqlite://path and file: URIs select SQLite.
func ParseDatabaseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL %q has no path", url)
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(url, "file:"):
		return DriverSQLite, url, nil
	}
	return "", "", fmt.Errorf("unsupported database URL scheme in %q", url)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
