// Package server exposes the pipeline over HTTP: session lifecycle, review
// actions, stamping, document retrieval, and catalog administration.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/export"
	"github.com/blue-scarf/paystamp/internal/metrics"
	"github.com/blue-scarf/paystamp/internal/pipeline"
)

// Server wires the HTTP API to the orchestrator, catalog, and exporter.
type Server struct {
	orch     *pipeline.Orchestrator
	catalog  *catalog.Store
	exporter *export.Service
	logger   *zap.Logger

	maxUploadBytes int64
}

// New builds a Server. maxUploadBytes caps one upload request; zero applies
// the 32 MiB default.
func New(orch *pipeline.Orchestrator, cat *catalog.Store, exporter *export.Service, logger *zap.Logger, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Server{orch: orch, catalog: cat, exporter: exporter, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Router assembles the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// Carry the request id on our own context key so collaborators below the
	// HTTP layer can log it without importing chi.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := common.WithRequestID(req.Context(), middleware.GetReqID(req.Context()))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Patch("/fields", s.handleEditFields)
			r.Post("/rematch", s.handleRematch)
			r.Post("/select-match", s.handleSelectMatch)
			r.Post("/stamp", s.handleStamp)
			r.Post("/deliver", s.handleDeliver)
			r.Post("/reset", s.handleReset)
			r.Get("/document", s.handleDocument)
		})
	})
	r.Post("/catalog/reload", s.handleCatalogReload)
	r.Get("/catalog", s.handleCatalog)
	r.Get("/export", s.handleExport)

	return r
}
