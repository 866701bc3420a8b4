// Package server wraps an http.Server with signal-driven graceful shutdown
// and ordered cleanup of the resources behind it.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pidstack/pidrelations/pkg/logging"
)

// ReloadFunc is called on SIGHUP, e.g. to re-read the log level
type ReloadFunc func() error

// CleanupFunc releases one resource during shutdown
type CleanupFunc func() error

// GracefulServer runs an HTTP server until it is told to stop, then drains
// in-flight requests and runs cleanup hooks in registration order.
type GracefulServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          logging.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu       sync.Mutex
	reloadFn ReloadFunc
	cleanups []namedCleanup
}

type namedCleanup struct {
	name string
	fn   CleanupFunc
}

// New creates a graceful server around an existing http.Server
func New(httpServer *http.Server, shutdownTimeout time.Duration, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &GracefulServer{
		server:          httpServer,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		shutdownCh:      make(chan struct{}),
	}
}

// OnShutdown registers a cleanup hook, run after the listener has drained
func (gs *GracefulServer) OnShutdown(name string, fn CleanupFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.cleanups = append(gs.cleanups, namedCleanup{name: name, fn: fn})
}

// SetReloadFunc sets the function invoked on SIGHUP
func (gs *GracefulServer) SetReloadFunc(fn ReloadFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.reloadFn = fn
}

// Start serves until the listener fails or a shutdown signal arrives.
// It returns after shutdown has completed.
func (gs *GracefulServer) Start() error {
	go gs.handleSignals()

	gs.logger.Info("http server starting", logging.String("addr", gs.server.Addr))
	if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	// ListenAndServe returns as soon as Shutdown is called; wait for the
	// drain and cleanup hooks to finish before handing control back.
	<-gs.shutdownCh
	return nil
}

// Shutdown drains in-flight requests and runs the cleanup hooks. Safe to
// call more than once.
func (gs *GracefulServer) Shutdown() error {
	var err error
	gs.shutdownOnce.Do(func() {
		gs.logger.Info("shutting down", logging.Duration("timeout", gs.shutdownTimeout))

		ctx, cancel := context.WithTimeout(context.Background(), gs.shutdownTimeout)
		defer cancel()

		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.logger.Error("listener shutdown failed", logging.Err(shutdownErr))
		}

		gs.mu.Lock()
		cleanups := gs.cleanups
		gs.mu.Unlock()

		for _, cleanup := range cleanups {
			if cleanupErr := cleanup.fn(); cleanupErr != nil {
				gs.logger.Error("cleanup failed",
					logging.String("resource", cleanup.name),
					logging.Err(cleanupErr))
				if err == nil {
					err = cleanupErr
				}
			}
		}

		gs.logger.Info("shutdown complete")
		close(gs.shutdownCh)
	})
	return err
}

// IsShuttingDown reports whether shutdown has completed
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			gs.logger.Info("received shutdown signal", logging.String("signal", sig.String()))
			if err := gs.Shutdown(); err != nil {
				os.Exit(1)
			}
			return

		case syscall.SIGHUP:
			if err := gs.Reload(); err != nil {
				gs.logger.Error("reload failed", logging.Err(err))
			}
		}
	}
}

// Reload invokes the configured reload function, if any
func (gs *GracefulServer) Reload() error {
	gs.mu.Lock()
	reloadFn := gs.reloadFn
	gs.mu.Unlock()

	if reloadFn == nil {
		gs.logger.Warn("reload requested but no reload function configured")
		return nil
	}
	if err := reloadFn(); err != nil {
		return err
	}
	gs.logger.Info("reload complete")
	return nil
}
