// Package app wires the metadata store and its HTTP API from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"mdms/internal/api"
	"mdms/internal/config"
	"mdms/internal/middleware"
	"mdms/internal/service/metadata"
)

// Deps holds the external dependencies that main() must provide: the
// configuration, the write-mode database handle, and the logger.
type Deps struct {
	Cfg    *config.Config
	DB     *sql.DB
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Store   *metadata.MetadataStore
	Handler *api.Handler
	Router  http.Handler
}

// New opens the metadata store on deps.DB and builds the router. The router's
// background work stops when ctx ends.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := metadata.Open(ctx, deps.DB, metadata.Options{
		CacheSize: cfg.CacheSize,
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.MetaDBPath, err)
	}

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(ctx, handler, api.RouterConfig{
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &App{Store: store, Handler: handler, Router: router}, nil
}

// Close flushes pending writes of the store. The caller closes the database.
func (a *App) Close(ctx context.Context) error {
	return a.Store.Close(ctx)
}
