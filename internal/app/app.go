// Package app wires all Verbatim subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithBlob). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verbatimhq/verbatim/internal/blob"
	"github.com/verbatimhq/verbatim/internal/config"
	"github.com/verbatimhq/verbatim/internal/health"
	"github.com/verbatimhq/verbatim/internal/observe"
	"github.com/verbatimhq/verbatim/internal/store"
	"github.com/verbatimhq/verbatim/internal/store/postgres"
)

// readHeaderTimeout bounds slow-client header reads on the admin server.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store      store.Store
	blob       blob.Storage
	Interviews *InterviewManager

	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a conversation store instead of connecting to Postgres.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithBlob injects blob storage instead of creating a filesystem store.
func WithBlob(b blob.Storage) Option {
	return func(a *App) { a.blob = b }
}

// New creates an App by wiring all subsystems together: the OTel providers,
// the Postgres conversation store, filesystem blob storage, the interview
// manager, and the admin HTTP server (health probes + Prometheus metrics).
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "verbatim",
	})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.closers = append(a.closers, otelShutdown)

	if a.store == nil {
		pg, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("app: connect store: %w", err)
		}
		a.store = pg
		a.closers = append(a.closers, func(context.Context) error {
			pg.Close()
			return nil
		})
	}

	if a.blob == nil {
		fs, err := blob.NewFilesystem(cfg.Blob.RootDir, cfg.Blob.URLPrefix)
		if err != nil {
			return nil, fmt.Errorf("app: open blob storage: %w", err)
		}
		a.blob = fs
	}

	a.Interviews = NewInterviewManager(InterviewManagerConfig{
		Store:    a.store,
		Blob:     a.blob,
		Audio:    cfg.Audio,
		Finalize: cfg.Finalize,
	})

	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.buildHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// buildHandler assembles the admin mux: health probes, Prometheus scrape
// endpoint, all behind the tracing/metrics middleware.
func (a *App) buildHandler() http.Handler {
	var checkers []health.Checker
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.Database(p))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(observe.DefaultMetrics())(mux)
}

// Run serves the admin HTTP endpoints until ctx is cancelled or the server
// fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "listen_addr", a.httpSrv.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown ends all active interviews, stops the HTTP server, and runs the
// remaining closers in order. Safe to call multiple times.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_interviews", len(a.Interviews.Active()))

		// Flush interviews first so their audio and messages persist while
		// the store is still open.
		if err := a.Interviews.Close(ctx); err != nil {
			slog.Warn("interview flush error", "err", err)
		}

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
