// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dispatchd/fieldline/pkg/persistence"
	"github.com/dispatchd/fieldline/pkg/persistence/memory"
	"github.com/dispatchd/fieldline/pkg/persistence/postgresql"
)

// NewPersistence selects the store implementation from the database URL
// scheme. Anything that is not postgres selects the in-memory store, which
// is only suitable for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize postgres persistence", "error", err)
			panic(err)
		}

		return store
	default:
		logger.WarnContext(ctx, "Using in-memory persistence, data will not survive a restart")

		return memory.NewPersistence()
	}
}
