package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/server"
	"github.com/HyperAST/HyperAST-sub006/internal/watch"
)

const collectInterval = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve generation, diff and node queries over HTTP.

With --watch, files of a directory are generated at startup and kept up
to date, so their revisions can be diffed through /v1/diff.

Examples:
  hyperast serve
  hyperast serve --port 9090
  hyperast serve --watch ./src`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("host", "", "listen address (overrides config)")
	cmd.Flags().IntP("port", "p", 0, "listen port (overrides config)")
	cmd.Flags().String("watch", "", "directory to watch and serve")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	watchDir, _ := cmd.Flags().GetString("watch")

	if watchDir != "" {
		abs, err := filepath.Abs(watchDir)
		if err != nil {
			return err
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return errors.ValidationError("not a directory: " + watchDir)
		}
		watchDir = abs
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()
	cmd.SetContext(ctx)

	a, err := newApp(cmd, appOptions{events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := server.ConfigFrom(a.cfg.Server, version)
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if a.cfg.Metrics.Path != "" {
		cfg.MetricsPath = a.cfg.Metrics.Path
	}
	srv := server.New(cfg, a.ws, a.metrics, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)

	if c := srv.Collector(); c != nil {
		g.Go(func() error {
			c.Run(gctx, collectInterval)
			return nil
		})
	}

	if watchDir != "" {
		w, err := watch.NewWatcher(watch.WatcherConfig{
			Path:       watchDir,
			Target:     a.ws,
			Extensions: a.cfg.Watch.Extensions,
			BatchDelay: a.cfg.Watch.Debounce,
			Log:        a.log,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := w.Start(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	// Stop the server once a signal arrives or a component fails.
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	return g.Wait()
}
