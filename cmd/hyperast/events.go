package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/HyperAST/HyperAST-sub006/internal/bus"
	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and replay the event log",
		Long: `Read the JSONL event log written when bus.event_log (HYPERAST_EVENT_LOG)
is set, or publish its events again on the configured bus.

Examples:
  hyperast events list --since 1h
  hyperast events list --topic diff.completed --limit 20
  hyperast events replay --log events.jsonl`,
	}
	cmd.PersistentFlags().String("log", "", "event log path (defaults to bus.event_log)")
	cmd.PersistentFlags().Duration("since", 0, "only events newer than this")
	cmd.PersistentFlags().StringSlice("topic", nil, "only events of these topics")

	cmd.AddCommand(eventsListCmd(), eventsReplayCmd())
	return cmd
}

// eventQuery is what the events subcommands read from their flags.
type eventQuery struct {
	log    *bus.EventLogger
	since  time.Time
	topics []string
}

func openEventLog(cmd *cobra.Command) (*eventQuery, error) {
	path, _ := cmd.Flags().GetString("log")
	since, _ := cmd.Flags().GetDuration("since")
	topics, _ := cmd.Flags().GetStringSlice("topic")

	for _, t := range topics {
		if !slices.Contains(bus.Topics, t) {
			return nil, errors.ValidationError("unknown topic: "+t).WithDetail("field", "topic")
		}
	}
	if since < 0 {
		return nil, errors.ValidationError("since must not be negative").WithDetail("field", "since")
	}

	if path == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		path = cfg.Bus.EventLog
	}
	if path == "" {
		return nil, errors.ValidationError("no event log: pass --log or set bus.event_log")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFoundError("event log: " + path)
	}

	el, err := bus.NewEventLogger(path, true)
	if err != nil {
		return nil, err
	}
	q := &eventQuery{log: el, topics: topics}
	if since > 0 {
		q.since = time.Now().Add(-since)
	}
	return q, nil
}

func eventsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print logged events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			q, err := openEventLog(cmd)
			if err != nil {
				return err
			}
			defer q.log.Close()

			events, err := q.log.GetEvents(q.since, limit, q.topics...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"events": events})
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No events")
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.Topic, e.Event.ID, e.Event.Source)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "print at most this many events")
	cmd.Flags().Bool("json", false, "print the events as JSON")
	return cmd
}

func eventsReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Publish logged events again on the configured bus",
		Long: `Publish logged events again, in order, on the bus of the configuration.
Metrics subscribers see them as they did the first time. The replayed
events are not appended to the event log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openEventLog(cmd)
			if err != nil {
				return err
			}
			defer q.log.Close()

			a, err := newApp(cmd, appOptions{events: true, replay: true})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := q.log.Replay(cmd.Context(), a.bus, q.since, q.topics...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d events on the %s bus\n", n, a.cfg.Bus.Type)
			return nil
		},
	}
}
