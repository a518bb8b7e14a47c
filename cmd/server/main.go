package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/diagnosis"
	"github.com/p-n-ai/pai-mastery/internal/mastery"
	"github.com/p-n-ai/pai-mastery/internal/platform/cache"
	"github.com/p-n-ai/pai-mastery/internal/platform/config"
	"github.com/p-n-ai/pai-mastery/internal/platform/database"
	"github.com/p-n-ai/pai-mastery/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"store", cfg.Store.Backend,
			"lock", cfg.Store.LockBackend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app holds the wired components and the resources to release on exit.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads the curriculum and wires the configured store, lock and
// event log backends behind the HTTP server.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	graph, err := curriculum.Load(cfg.Curriculum.Path, curriculum.LoadOptions{Strict: cfg.Curriculum.Strict})
	if err != nil {
		return fail(fmt.Errorf("loading curriculum: %w", err))
	}

	var checks []server.Check
	var db *database.DB
	var c *cache.Cache

	if cfg.NeedsDatabase() {
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fail(fmt.Errorf("connecting database: %w", err))
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fail(err)
		}
		checks = append(checks, server.Check{Name: "database", Probe: db.HealthCheck})
	}
	if cfg.NeedsCache() {
		c, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(fmt.Errorf("connecting cache: %w", err))
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks = append(checks, server.Check{Name: "cache", Probe: c.HealthCheck})
	}

	store, events, err := openStore(cfg, db, c)
	if err != nil {
		return fail(err)
	}

	var locker mastery.Locker
	if cfg.Store.LockBackend == config.LockRedis {
		locker = mastery.NewRedisLocker(c, cfg.Store.LockTTL)
	} else {
		locker = mastery.NewLocalLocker()
	}

	tracker, err := mastery.NewTracker(mastery.TrackerConfig{LearningRate: cfg.Mastery.LearningRate})
	if err != nil {
		return fail(err)
	}
	recorder, err := mastery.NewRecorder(mastery.RecorderConfig{
		Topics:     graph,
		Store:      store,
		Tracker:    tracker,
		Locker:     locker,
		Events:     events,
		MaxRetries: cfg.Mastery.MaxRetries,
	})
	if err != nil {
		return fail(err)
	}
	engine, err := diagnosis.NewEngine(graph, store, diagnosis.WithFetchLimit(cfg.Diagnosis.FetchLimit))
	if err != nil {
		return fail(err)
	}

	srv, err := server.New(server.Config{
		Graph:    graph,
		Store:    store,
		Recorder: recorder,
		Engine:   engine,
		Checks:   checks,
	})
	if err != nil {
		return fail(err)
	}
	a.handler = srv
	return a, nil
}

// openStore picks the snapshot store and evidence log for the configured
// backend. Only postgres keeps an evidence log; the others discard events.
func openStore(cfg *config.Config, db *database.DB, c *cache.Cache) (mastery.Store, mastery.EventLog, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres store needs a database connection")
		}
		ps, err := mastery.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, nil, err
		}
		return ps, mastery.NewPostgresEventLog(db.Pool), nil
	case config.StoreRedis:
		if c == nil {
			return nil, nil, fmt.Errorf("redis store needs a cache connection")
		}
		rs, err := mastery.NewRedisStore(c.Client, "")
		if err != nil {
			return nil, nil, err
		}
		return rs, mastery.NopEventLog{}, nil
	default:
		return mastery.NewMemoryStore(), mastery.NopEventLog{}, nil
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and LEARN_LOG_FORMAT.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
