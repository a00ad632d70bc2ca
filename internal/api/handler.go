// Package api serves the metadata store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mdms/internal/domain"
	"mdms/internal/middleware"
	"mdms/internal/service/metadata"
)

// maxBodyBytes bounds request bodies of bulk writes.
const maxBodyBytes = 32 << 20

// MetadataService is the part of the metadata store the API serves.
type MetadataService interface {
	Codec() domain.IDCodec
	ResolveTarget(ctx context.Context, id domain.ID) (domain.Target, error)
	ListSchemas(ctx context.Context) ([]*domain.Schema, error)
	ListTables(ctx context.Context, schemaID domain.ID) ([]*domain.Table, error)
	ListColumns(ctx context.Context, tableID domain.ID) ([]*domain.Column, error)
	CreateCollection(ctx context.Context, req domain.CreateCollectionRequest) (*domain.ConstraintCollection, error)
	GetCollection(ctx context.Context, id int64) (*domain.CollectionDetail, error)
	ListCollections(ctx context.Context, page domain.PageRequest) ([]domain.ConstraintCollection, int64, error)
	Import(ctx context.Context, req metadata.ImportRequest) (*metadata.ImportResult, error)
}

var _ MetadataService = (*metadata.MetadataStore)(nil)

// Handler implements the HTTP endpoints.
type Handler struct {
	store  MetadataService
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(store MetadataService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// RouterConfig configures the middleware stack of NewRouter.
type RouterConfig struct {
	RateLimit      middleware.RateLimitConfig
	AllowedOrigins []string
}

// NewRouter mounts the handler under /v1 behind recovery, request ids, access
// logging, CORS, and per-client rate limiting. The rate limiter's cleanup
// stops when ctx ends.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(ctx, cfg.RateLimit))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", h.Routes)
	return r
}

// Routes registers the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/targets/{id}", h.getTarget)
	r.Get("/schemas", h.listSchemas)
	r.Get("/schemas/{id}/tables", h.listTables)
	r.Get("/tables/{id}/columns", h.listColumns)

	r.Get("/collections", h.listCollections)
	r.Post("/collections", h.createCollection)
	r.Get("/collections/{id}", h.getCollection)
	r.With(chimw.Timeout(time.Minute)).Post("/collections/{id}/constraints", h.addConstraints)
}

func targetIDParam(r *http.Request) (domain.ID, error) {
	return domain.ParseID(chi.URLParam(r, "id"))
}

func collectionIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrValidation("invalid collection id %q", raw)
	}
	return id, nil
}

// pageFromQuery extracts a PageRequest from max_results/page_token params.
func pageFromQuery(r *http.Request) domain.PageRequest {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.MaxResults = n
		}
	}
	return p
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}
