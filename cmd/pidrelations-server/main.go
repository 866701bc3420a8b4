// Command pidrelations-server runs the PID relation registry: REST and
// GraphQL APIs over a PostgreSQL or in-memory store, with domain event
// fan-out, audit logging and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pidstack/pidrelations/pkg/api"
	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/config"
	"github.com/pidstack/pidrelations/pkg/events"
	"github.com/pidstack/pidrelations/pkg/logging"
	"github.com/pidstack/pidrelations/pkg/metrics"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logger.Info("pidrelations server starting",
		logging.Int("port", cfg.Server.Port),
		logging.Bool("auth", cfg.Auth.Enabled),
		logging.Bool("audit", cfg.Audit.Enabled))

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("server exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx := context.Background()

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	pids, rels, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metricsRegistry := metrics.DefaultRegistry()

	bus := events.NewBus(
		events.WithBufferSize(cfg.Events.BufferSize),
		events.WithDropCallback(func() {
			metricsRegistry.EventsDroppedTotal.Inc()
		}),
	)

	// Refresh uptime, goroutine, memory and subscriber gauges for /metrics
	started := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metricsRegistry.UpdateSystemMetrics(started)
			subscribers := 0
			for _, topic := range []string{events.TopicPIDs, events.TopicRelations, events.TopicVersions} {
				subscribers += bus.SubscriberCount(topic)
			}
			metricsRegistry.EventSubscribersTotal.Set(float64(subscribers))
		}
	}()

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		logger.Info("audit log open",
			logging.String("path", cfg.Audit.Path),
			logging.Int("seq", int(auditLog.CurrentSeq())))
	}

	apiServer, err := api.NewServer(cfg, api.Deps{
		PIDs:     pids,
		Rels:     rels,
		Registry: registry,
		Bus:      bus,
		Audit:    auditLog,
		Metrics:  metricsRegistry,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	graceful := server.New(httpServer, cfg.Server.ShutdownTimeout, logger)

	// Optional NNG broadcast of domain events to external consumers
	if cfg.Events.PublishAddr != "" {
		broadcaster, err := events.NewBroadcaster(cfg.Events.PublishAddr)
		if err != nil {
			return fmt.Errorf("failed to open event broadcaster: %w", err)
		}
		logger.Info("event broadcaster listening", logging.String("addr", cfg.Events.PublishAddr))

		for _, topic := range []string{events.TopicPIDs, events.TopicRelations, events.TopicVersions} {
			sub, err := bus.Subscribe(ctx, topic)
			if err != nil {
				return err
			}
			broadcaster.Attach(sub)
		}
		graceful.OnShutdown("broadcaster", broadcaster.Close)
	}

	graceful.OnShutdown("event bus", func() error {
		bus.Shutdown()
		return nil
	})
	if auditLog != nil {
		graceful.OnShutdown("audit log", auditLog.Close)
	}
	graceful.OnShutdown("relation store", rels.Close)
	graceful.OnShutdown("pid store", pids.Close)

	graceful.SetReloadFunc(func() error {
		reloaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.SetLevel(logging.ParseLevel(reloaded.Logging.Level))
		logger.Info("log level reloaded", logging.String("level", reloaded.Logging.Level))
		return nil
	})

	return graceful.Start()
}

// openStores selects PostgreSQL when a database URL is configured, otherwise
// the in-memory stores
func openStores(ctx context.Context, cfg *config.Config, logger logging.Logger) (pidstore.Store, relations.Store, error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory stores")
		return pidstore.NewMemoryStore(), relations.NewMemoryStore(), nil
	}

	pids, err := pidstore.NewPGStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pid store: %w", err)
	}
	rels, err := relations.NewPGStore(ctx, cfg.Database.URL)
	if err != nil {
		pids.Close()
		return nil, nil, fmt.Errorf("failed to open relation store: %w", err)
	}
	logger.Info("connected to database")
	return pids, rels, nil
}
