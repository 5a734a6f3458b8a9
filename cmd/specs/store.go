package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/specs/internal/config"
	"github.com/alfredjeanlab/specs/internal/store"
	"github.com/alfredjeanlab/specs/internal/store/postgres"
	"github.com/alfredjeanlab/specs/internal/store/sqlite"
)

// openStore opens the store selected by the database URL scheme.
func openStore(url string) (store.Store, error) {
	driver, dsn, err := config.ParseDatabaseURL(url)
	if err != nil {
		return nil, err
	}
	if driver == config.DriverPostgres {
		s, err := postgres.New(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := sqlite.New(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newLogger returns the CLI logger. Engine logging is only shown with
// SPECS_DEBUG set.
func newLogger() *slog.Logger {
	if os.Getenv("SPECS_DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
