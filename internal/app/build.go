// Package app wires the coordinator's components together for the
// daemon and for integration tests.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/callkeeper/callkeeper/internal/config"
	"github.com/callkeeper/callkeeper/internal/engine"
	"github.com/callkeeper/callkeeper/internal/events"
	"github.com/callkeeper/callkeeper/internal/httpapi"
	"github.com/callkeeper/callkeeper/internal/keeper"
	"github.com/callkeeper/callkeeper/internal/observability"
	"github.com/callkeeper/callkeeper/internal/settings"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Keeper  *keeper.Coordinator
	Engine  engine.Engine
	Queue   *events.Queue
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external
	// resources (DB pool, engine adapter).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	persist, err := settings.NewPersistence(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("settings persistence init failed: %w", err)
	}
	store, err := settings.NewStore(ctx, persist)
	if err != nil {
		_ = persist.Close()
		return nil, fmt.Errorf("settings store init failed: %w", err)
	}

	var eng engine.Engine
	switch cfg.EngineMode {
	case "", "loopback":
		eng = engine.NewLoopback()
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unknown engine mode %q", cfg.EngineMode)
	}

	queue := events.NewQueue()
	k := keeper.New(keeper.Config{
		ReachabilityTimeout: cfg.ReachabilityTimeout,
	}, store, eng, queue, metrics, logger)

	if lb, ok := eng.(*engine.Loopback); ok {
		lb.SetInbound(k)
	}

	// A configuration read back from persistence re-registers the
	// provider so displayed calls survive a process restart; the first
	// in-process initialize still decides the running configuration.
	if store.Ready() && !store.Initialized() {
		current, err := store.Current()
		if err == nil {
			if err := eng.RegisterProvider(ctx, current); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("provider re-registration failed: %w", err)
			}
			logger.Info("provider re-registered from persisted settings", "app", current.AppName)
		}
	}

	api := httpapi.New(cfg, k, queue, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Keeper:  k,
		Engine:  eng,
		Queue:   queue,
		Metrics: metrics,
		Cleanup: store.Close,
	}, nil
}
