// Package app provides the main application struct for centralized
// dependency management and lifecycle control of the tmphost service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tmphost/config"
	"tmphost/internal/core"
	"tmphost/internal/extension"
	"tmphost/internal/gateway"
	"tmphost/internal/ingest"
	"tmphost/internal/journal"
	"tmphost/internal/naming"
	"tmphost/internal/observability"
	"tmphost/internal/purge"
	"tmphost/internal/server"
	"tmphost/internal/session"
	"tmphost/internal/storage"
	"tmphost/internal/store"
)

// App holds the wired service with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config   *config.Config
	store    store.Store
	sessions session.Store
	journal  *journal.Result
	metrics  *observability.Metrics
	registry   *prometheus.Registry
	dispatcher *ingest.Dispatcher
	gateway    *gateway.Telegram
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	a := &App{config: cfg}

	st, staticRoot, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}
	a.store = st

	sessions, err := newSessions(cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize session store: %w", err), st.Close())
	}
	a.sessions = sessions

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = observability.New(a.registry)
	}

	jr, err := journal.New(ctx, journalConfig(cfg))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize journal: %w", err), sessions.Close(), st.Close())
	}
	a.journal = jr

	gen := naming.New(st, cfg.Upload.GenerateLength, cfg.Upload.GenerateTries, a.metrics)
	resolver := extension.New(sessions)

	superUser := core.Identity(gateway.NormalizeIdentity(cfg.Telegram.SuperUser))
	purger := purge.New(st, jr.Recorder, a.metrics, cfg.Upload.DeletePassword, superUser)

	dispatcher := ingest.New(
		ingest.Config{
			TextBoundary: cfg.Upload.TextBoundary,
			StreakLimit:  cfg.Upload.StreakLimit,
		},
		st, sessions, gen, resolver, jr.Recorder, purger, a.metrics,
	)
	a.dispatcher = dispatcher

	tg, err := gateway.NewTelegram(cfg.Telegram, dispatcher)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize gateway: %w", err), jr.Close(), sessions.Close(), st.Close())
	}
	a.gateway = tg

	a.server = server.New(&server.Config{
		StaticRoot:      staticRoot,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Gatherer:        a.registry,
	})

	a.logStartupInfo()
	return a, nil
}

// newStore builds the configured content store. The second result is
// the directory the HTTP server should serve, empty for object stores.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, string, error) {
	switch cfg.Store.Backend {
	case store.TypeLocal:
		s := store.NewLocal(cfg.Upload.PasteDir, cfg.Upload.PasteURL)
		return s, s.Root(), nil
	case store.TypeMinio:
		s, err := store.NewMinio(ctx, store.MinioConfig{
			Endpoint:  cfg.Store.MinioEndpoint,
			AccessKey: cfg.Store.MinioAccessKey,
			SecretKey: cfg.Store.MinioSecretKey,
			Bucket:    cfg.Store.MinioBucket,
			UseSSL:    cfg.Store.MinioUseSSL,
			BaseURL:   cfg.Upload.PasteURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		return nil, "", fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func newSessions(cfg *config.Config) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "memory":
		return session.NewMemory(), nil
	case "redis":
		return session.NewRedis(session.RedisConfig{URL: cfg.Sessions.RedisURL})
	default:
		return nil, fmt.Errorf("unknown sessions backend: %q", cfg.Sessions.Backend)
	}
}

func journalConfig(cfg *config.Config) journal.Config {
	return journal.Config{
		Enabled: cfg.Journal.Enabled,
		Storage: storage.Config{
			Type:   cfg.Journal.Storage,
			SQLite: storage.SQLiteConfig{Path: cfg.Journal.SQLitePath},
			PostgreSQL: storage.PostgreSQLConfig{
				URL:      cfg.Journal.PostgresURL,
				MaxConns: cfg.Journal.PostgresConns,
			},
			MongoDB: storage.MongoDBConfig{
				URL:      cfg.Journal.MongoURL,
				Database: cfg.Journal.MongoDatabase,
			},
		},
	}
}

// Start runs the gateway and the HTTP server. It blocks until the
// server stops; the gateway stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.gateway.Run(ctx); err != nil {
			slog.Error("gateway stopped with error", "error", err)
		}
	}()

	addr := ":" + a.config.Server.Port
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down components in dependency order:
// HTTP server, gateway update loop, queued submissions, journal,
// sessions, store.
// Shutdown is idempotent; repeated calls are no-ops. It attempts every
// step, aggregates failures, and returns a joined error if any fail.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.gateway != nil {
		if err := a.gateway.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway close: %w", err))
		}
	}

	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher close: %w", err))
		}
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}

	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sessions close: %w", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("shutdown complete")
	return nil
}

// logStartupInfo logs the effective configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("content store configured",
		"backend", cfg.Store.Backend,
		"base_url", cfg.Upload.PasteURL,
	)
	slog.Info("naming configured",
		"id_length", cfg.Upload.GenerateLength,
		"max_tries", cfg.Upload.GenerateTries,
	)
	slog.Info("sessions configured", "backend", cfg.Sessions.Backend)

	if cfg.Upload.DeletePassword == "" {
		slog.Info("deletion workflow disabled")
	} else {
		slog.Info("deletion workflow enabled", "super_user", cfg.Telegram.SuperUser)
	}

	if cfg.Journal.Enabled {
		slog.Info("journal enabled", "storage", cfg.Journal.Storage)
	} else {
		slog.Info("journal disabled")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}
}
