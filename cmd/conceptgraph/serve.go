// ABOUTME: The serve command: runs the HTTP API with metrics, optional SQLite checkpoint history, and session expiry.
// ABOUTME: Shuts down gracefully on SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/2389-research/conceptgraph/config"
	"github.com/2389-research/conceptgraph/metrics"
	"github.com/2389-research/conceptgraph/oracle"
	"github.com/2389-research/conceptgraph/server"
	"github.com/2389-research/conceptgraph/store"
)

type serveOptions struct {
	addr    string
	store   string
	noStore bool
}

func newServeCmd(g *globals) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for interactive sessions",
		Long: `Run the HTTP API. Each session holds one concept graph with undo and redo.

Recompute results are recorded in a SQLite history when a store path is
configured (store.path or CONCEPTGRAPH_STORE); --store default uses the data
directory. Metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides configuration)")
	cmd.Flags().StringVar(&opts.store, "store", "", `SQLite history path, or "default" for the data directory`)
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "disable checkpoint history")
	return cmd
}

func runServe(cmd *cobra.Command, g *globals, opts *serveOptions) error {
	cfg, log, err := g.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.store != "" {
		cfg.Store.Path = opts.store
	}
	if opts.noStore {
		cfg.Store.Path = ""
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	o := oracle.NewInstrumented(
		oracle.NewBounded(
			oracle.WithBound(cfg.Oracle.Bound),
			oracle.WithTimeout(cfg.Oracle.Timeout),
			oracle.WithLogger(log),
		),
		metrics.ObserveOracleQuery,
	)

	srvOpts := []server.Option{
		server.WithLogger(log),
		server.WithMetrics(reg),
		server.WithUndoDepth(cfg.Graph.UndoDepth),
	}
	hist, err := openHistory(cfg.Store.Path, log)
	if err != nil {
		return err
	}
	if hist != nil {
		defer func() { _ = hist.Close() }()
		srvOpts = append(srvOpts, server.WithHistory(hist))
	}

	sessions := server.NewSessionStore(cfg.Server.MaxSessions, cfg.Server.SessionTTL)
	if cfg.Server.SessionTTL > 0 {
		stop := sessions.StartCleanup(cleanupInterval(cfg.Server.SessionTTL))
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithFields(logrus.Fields{
		"addr":         cfg.Server.Addr,
		"bound":        cfg.Oracle.Bound,
		"max_sessions": cfg.Server.MaxSessions,
		"history":      cfg.Store.Path != "",
	}).Info("starting conceptgraph server")
	return server.New(sessions, o, srvOpts...).ListenAndServe(ctx, cfg.Server.Addr)
}

// openHistory opens the checkpoint store at path. An empty path disables
// history; "default" resolves to the data directory.
func openHistory(path string, log logrus.FieldLogger) (*store.SqliteStore, error) {
	if path == "" {
		return nil, nil
	}
	if path == "default" {
		dir, err := config.DataDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path = filepath.Join(dir, "history.db")
	}
	s, err := store.OpenSqlite(path)
	if err != nil {
		return nil, err
	}
	log.WithField("path", path).Info("checkpoint history enabled")
	return s, nil
}

// cleanupInterval sweeps a few times per TTL, at most once a minute.
func cleanupInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}
