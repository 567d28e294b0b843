// Package api exposes the engine and the store over JSON/HTTP.
//
// Routes:
//
//	GET    /                        liveness {"status":"ok"}
//	GET    /healthz                 liveness
//	GET    /metrics                 Prometheus exposition
//	POST   /sessions                create a session
//	GET    /sessions                list sessions (?repoId=N, ?repoId= for global ones)
//	GET    /sessions/{id}/messages  message log
//	PATCH  /sessions/{id}           rename
//	DELETE /sessions/{id}           delete with live state
//	POST   /chat                    start a turn
//	POST   /chat/approve            resolve the pending batch
//	GET    /repos, POST /repos, GET /repos/{id}, GET /labels, GET /assets, GET /assets/{id}
//
// Catalog routes are only mounted when a catalog is configured.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/store"
)

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 50 << 20

// Engine is the part of engine.Engine the HTTP surface needs.
type Engine interface {
	StartTurn(ctx context.Context, sessionID int64, parts []core.Part) (*core.TurnOutcome, error)
	ResolvePendingBatch(ctx context.Context, sessionID int64, approved bool, results []core.FrontendResult) (*core.TurnOutcome, error)
	DeleteSession(ctx context.Context, sessionID int64) error
}

// Options configures a Server.
type Options struct {
	// Catalog enables the repository, label and asset routes.
	Catalog store.Catalog

	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	Logger       logging.Logger
	MaxBodyBytes int64
}

// Server routes HTTP requests to the engine and the store.
type Server struct {
	engine Engine
	store  store.Store
	opts   Options
	logger logging.Logger
	mux    *http.ServeMux
}

// New creates a Server.
func New(eng Engine, st store.Store, optFns ...func(o *Options)) *Server {
	opts := Options{
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logging.NoOpLogger{},
		MaxBodyBytes: DefaultMaxBodyBytes,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		engine: eng,
		store:  st,
		opts:   opts,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealthz)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /sessions/{id}/messages", s.handleListMessages)
	s.mux.HandleFunc("PATCH /sessions/{id}", s.handleRenameSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/approve", s.handleApprove)

	if s.opts.Catalog != nil {
		s.mux.HandleFunc("GET /repos", s.handleListRepos)
		s.mux.HandleFunc("POST /repos", s.handleCreateRepo)
		s.mux.HandleFunc("GET /repos/{id}", s.handleGetRepo)
		s.mux.HandleFunc("GET /labels", s.handleListLabels)
		s.mux.HandleFunc("GET /assets", s.handleListAssets)
		s.mux.HandleFunc("GET /assets/{id}", s.handleGetAsset)
	}
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	return recoverMiddleware(s.logger)(
		loggingMiddleware(s.logger)(
			corsMiddleware(
				http.MaxBytesHandler(s.mux, s.opts.MaxBodyBytes),
			),
		),
	)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
