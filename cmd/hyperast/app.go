package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/HyperAST/HyperAST-sub006/internal/bus"
	"github.com/HyperAST/HyperAST-sub006/internal/cache"
	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/metrics"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/tracing"
	"github.com/HyperAST/HyperAST-sub006/internal/workspace"
)

// app holds the services a command runs with.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics // nil unless requested and enabled
	bus     bus.Bus          // nil unless events were requested
	ws      *workspace.Workspace

	closers []func(context.Context) error
}

type appOptions struct {
	// events starts a bus, and metrics fed from it when enabled.
	events bool
	verify bool
	// replay keeps the bus from appending to the event log it replays.
	replay bool
}

func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if opts.verify {
		cfg.Diff.Verify = true
	}
	if opts.replay {
		cfg.Bus.EventLog = ""
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// stdout is reserved for command output
	var logOut io.Writer = cmd.ErrOrStderr()
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		logOut = f
	}
	a.log = logger.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := tracing.Setup(cfg.Tracing, version, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	if opts.events {
		if cfg.Metrics.Enabled {
			a.metrics = metrics.NewWithConfig(cfg.Metrics.Persistence, cfg.Metrics.RedisURL, a.log)
			a.metrics.SetHistoryTTL(cfg.Metrics.HistoryTTL)
			a.closers = append(a.closers, func(context.Context) error { return a.metrics.Close() })
		}

		b, err := bus.NewBus(cfg.Bus, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return b.Close() })
		a.bus = b
		if a.metrics != nil {
			a.bus = bus.NewInstrumentedBus(b, a.metrics)
			if err := metrics.NewEventSubscriber(a.metrics, a.bus).SubscribeToEvents(cmd.Context()); err != nil {
				return nil, fmt.Errorf("failed to subscribe metrics to events: %w", err)
			}
		}
		a.log.Info("Event bus ready", "type", cfg.Bus.Type, "metrics", a.metrics != nil)
	}

	c, err := a.openCache()
	if err != nil {
		return nil, err
	}

	a.ws = workspace.New(workspace.ConfigFrom(cfg), nil, nil, c, a.bus, a.log)
	ok = true
	return a, nil
}

// openCache returns nil when caching is disabled.
func (a *app) openCache() (cache.Cache, error) {
	cc := a.cfg.Cache
	if cc.Type == "none" {
		return nil, nil
	}
	c, err := cache.Open(cc.Type, cc.RedisURL, "default", cc.Size, cc.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cc.Type, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	if a.metrics != nil {
		if m, ok := c.(interface{ SetMetrics(cache.Metrics) }); ok {
			m.SetMetrics(a.metrics)
		}
	}
	return c, nil
}

// Close releases everything in reverse order of creation.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.log != nil {
			a.log.Warn("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
