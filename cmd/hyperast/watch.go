package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Regenerate and diff files as they change",
		Long: `Generate every file under a directory, then regenerate changed files and
print the edit script against their previous revision.

Files matched by .gitignore or .hyperastignore are skipped.

Examples:
  hyperast watch ./src
  hyperast watch --ext .go,.py ./src
  hyperast watch -d ./src        # run in the background
  hyperast watch list
  hyperast watch stop --all`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().Bool("foreground", false, "run in the foreground (default unless --detach)")
	cmd.Flags().BoolP("detach", "d", false, "run as a background process")
	cmd.Flags().StringSlice("ext", nil, "only watch files with these extensions")

	cmd.AddCommand(watchListCmd(), watchStopCmd())
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	detach, _ := cmd.Flags().GetBool("detach")
	foreground, _ := cmd.Flags().GetBool("foreground")
	configPath, _ := cmd.Flags().GetString("config")

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.ValidationError("not a directory: " + args[0])
	}

	if detach && !foreground {
		pid, err := watch.StartDaemon(dir, configPath)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s in the background (pid %d)\n", dir, pid)
		return nil
	}
	return watchForeground(cmd, dir, configPath)
}

func watchForeground(cmd *cobra.Command, dir, configPath string) error {
	exts, _ := cmd.Flags().GetStringSlice("ext")

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()
	cmd.SetContext(ctx)

	a, err := newApp(cmd, appOptions{events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(exts) == 0 {
		exts = a.cfg.Watch.Extensions
	}
	out := cmd.OutOrStdout()
	state := &watch.WatcherState{
		PID:        os.Getpid(),
		Path:       dir,
		ConfigFile: configPath,
		StartedAt:  time.Now(),
	}

	w, err := watch.NewWatcher(watch.WatcherConfig{
		Path:       dir,
		Target:     a.ws,
		Extensions: exts,
		BatchDelay: a.cfg.Watch.Debounce,
		Log:        a.log,
		OnBatch: func(res watch.BatchResult) {
			for _, p := range res.Removed {
				fmt.Fprintf(out, "removed %s\n", p)
			}
			for _, d := range res.Diffs {
				fmt.Fprintf(out, "%d -> %d: %s\n", d.Src, d.Dst, d.Summary)
			}
			state.FileCount += len(res.Generated)
			state.LastSync = time.Now()
			if err := watch.SaveState(state); err != nil {
				a.log.Warn("Failed to save watcher state", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	if err := watch.SaveState(state); err != nil {
		a.log.Warn("Failed to save watcher state", "error", err)
	}
	defer watch.RemoveState(state.PID)

	err = w.Start(ctx)
	if ctx.Err() != nil {
		a.log.Info("Watcher stopped", "path", dir)
		return nil
	}
	return err
}

func watchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List background watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := watch.ListStates()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(states) == 0 {
				fmt.Fprintln(out, "No watchers running")
				return nil
			}
			for _, s := range states {
				last := "never"
				if !s.LastSync.IsZero() {
					last = s.LastSync.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%d\t%s\tfiles=%d\tsince=%s\tlast=%s\n",
					s.PID, s.Path, s.FileCount, s.StartedAt.Format(time.RFC3339), last)
			}
			return nil
		},
	}
}

func watchStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [pid]",
		Short: "Stop background watchers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			out := cmd.OutOrStdout()
			if all {
				n, err := watch.StopAllDaemons()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Stopped %d watcher(s)\n", n)
				return nil
			}
			if len(args) == 0 {
				return errors.ValidationError("give a pid or --all")
			}
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.ValidationError("invalid pid: " + args[0])
			}
			if _, err := watch.LoadState(pid); err != nil {
				return err
			}
			if err := watch.StopDaemon(pid); err != nil {
				return err
			}
			fmt.Fprintf(out, "Stopped watcher %d\n", pid)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "stop every watcher")
	return cmd
}
