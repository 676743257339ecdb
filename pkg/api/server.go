// Package api provides the REST surface of the uplift service: experiment
// submission and lookups, the code-agent results callback, and a live
// telemetry stream over websocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

// ExperimentSubmitter records a new experiment and queues its pipeline run.
type ExperimentSubmitter interface {
	SubmitExperiment(ctx context.Context, repoURL, goal string) (*experiment.Experiment, error)
}

// Server is the uplift HTTP server.
type Server struct {
	store      *experiment.Store
	submitter  ExperimentSubmitter
	hub        *telemetry.Hub
	logger     *logging.Logger
	cfg        config.ServerConfig
	httpServer *http.Server
}

// ServerConfig collects the server's collaborators.
type ServerConfig struct {
	Store     *experiment.Store
	Submitter ExperimentSubmitter
	Hub       *telemetry.Hub
	Logger    *logging.Logger
	Config    config.ServerConfig
}

// NewServer builds the server and its routes.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	bind := cfg.Config.Bind
	if bind == "" {
		bind = config.DefaultBind
	}

	s := &Server{
		store:     cfg.Store,
		submitter: cfg.Submitter,
		hub:       cfg.Hub,
		logger:    logger,
		cfg:       cfg.Config,
	}

	s.httpServer = &http.Server{
		Addr:         bind,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long for the websocket stream
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed so tests can mount it directly.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withCORS, s.withLogging)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", s.handleEvents)

	r.Route("/experiment", func(r chi.Router) {
		r.Post("/", s.handleCreateExperiment)
		r.Get("/", s.handleListExperiments)
		r.Get("/{id}", s.handleGetExperiment)
	})

	r.Route("/variant", func(r chi.Router) {
		r.Get("/{id}", s.handleGetVariant)
		r.Get("/experiment/{experimentID}", s.handleListVariants)
	})

	r.Route("/agent", func(r chi.Router) {
		r.Get("/{id}", s.handleGetAgent)
		r.Get("/variant/{variantID}", s.handleListAgentsByVariant)
		r.Get("/experiment/{experimentID}", s.handleListAgentsByExperiment)
	})

	r.Route("/code-agent", func(r chi.Router) {
		r.Get("/{id}", s.handleGetCodeAgent)
		r.Get("/experiment/{experimentID}", s.handleListCodeAgents)
		r.Post("/{id}/results", s.handleCodeAgentResults)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(logging.CategoryAPI, "request", r.Method+" "+r.URL.Path, map[string]any{
			"remote":      r.RemoteAddr,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
