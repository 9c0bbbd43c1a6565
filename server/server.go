// ABOUTME: HTTP API server: chi router over the session store, oracle, checkpoint history, and layout cache.
// ABOUTME: Configures routes for sessions, display flags, refinements, undo/redo, rendering, and /metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/graph"
	"github.com/2389-research/conceptgraph/oracle"
	"github.com/2389-research/conceptgraph/render"
	"github.com/2389-research/conceptgraph/store"
)

// History records rendered checkpoints. *store.SqliteStore implements it.
type History interface {
	SaveCheckpoint(sessionID, action string, constraints []string, g *dot.Graph) (ulid.ULID, error)
	ListCheckpoints(sessionID string) ([]*store.Checkpoint, error)
}

var _ History = (*store.SqliteStore)(nil)

// Option configures optional Server behavior.
type Option func(*Server)

// WithLogger sets the logger for requests and sessions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithHistory persists a checkpoint after every recompute.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithUndoDepth bounds each session's undo history.
func WithUndoDepth(n int) Option {
	return func(s *Server) { s.undoDepth = n }
}

// WithMetrics exposes g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithGraphOptions passes options to every graph the server builds.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(s *Server) { s.graphOpts = append(s.graphOpts, opts...) }
}

// WithLayoutFunc replaces graphviz for svg and png output.
func WithLayoutFunc(fn render.RenderFunc) Option {
	return func(s *Server) { s.layouts = render.NewLayoutCache(fn, layoutTTL, layoutCapacity) }
}

const (
	layoutTTL      = 10 * time.Minute
	layoutCapacity = 256
)

// Server holds the router and everything the handlers share.
type Server struct {
	router    chi.Router
	sessions  *SessionStore
	oracle    oracle.Oracle
	history   History
	layouts   *render.LayoutCache
	gatherer  prometheus.Gatherer
	graphOpts []graph.Option
	undoDepth int
	log       logrus.FieldLogger
}

// New creates a Server with all routes configured.
func New(sessions *SessionStore, o oracle.Oracle, opts ...Option) *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s := &Server{
		sessions:  sessions,
		oracle:    o,
		layouts:   render.NewLayoutCache(render.RenderDOTSource, layoutTTL, layoutCapacity),
		undoDepth: graph.DefaultDepth,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "server")
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Timeouts are sized for slow oracle passes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)

			// Abstraction and display
			r.Post("/recompute", s.handleRecompute)
			r.Get("/graph", s.handleRenderGraph)
			r.Get("/checkboxes", s.handleGetCheckboxes)
			r.Put("/checkboxes", s.handleSetCheckbox)
			r.Put("/overrides", s.handleOverride)
			r.Get("/history", s.handleHistory)

			// Refinements
			r.Post("/constraints", s.handleAddConstraints)
			r.Put("/state", s.handleSetState)
			r.Post("/relations", s.handleNewRelation)
			r.Post("/split", s.handleSplit)
			r.Post("/split-values", s.handleSplitValues)
			r.Post("/splatter", s.handleSplatter)
			r.Post("/materialize", s.handleMaterialize)
			r.Post("/materialize-edge", s.handleMaterializeEdge)
			r.Post("/empty", s.handleEmpty)
			r.Post("/empty-edge", s.handleEmptyEdge)

			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
		})
	})
	return r
}

// requestLogger logs one line per request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
