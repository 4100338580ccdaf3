package metrics

import (
	"context"

	"github.com/HyperAST/HyperAST-sub006/internal/bus"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// EventSubscriber subscribes to event bus and updates metrics.
type EventSubscriber struct {
	metrics *Metrics
	bus     bus.Bus
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber(metrics *Metrics, eventBus bus.Bus) *EventSubscriber {
	return &EventSubscriber{
		metrics: metrics,
		bus:     eventBus,
	}
}

// SubscribeToEvents subscribes to generation and diff events.
func (es *EventSubscriber) SubscribeToEvents(ctx context.Context) error {
	if err := es.bus.Subscribe(ctx, bus.TopicGenerationCompleted, es.handleGenerationCompleted); err != nil {
		return err
	}
	return es.bus.Subscribe(ctx, bus.TopicDiffCompleted, es.handleDiffCompleted)
}

func (es *EventSubscriber) handleGenerationCompleted(ctx context.Context, event bus.Event) error {
	p, err := bus.Decode[bus.GenerationCompleted](event)
	if err != nil {
		return err
	}
	es.metrics.RecordGeneration(p.Millis, p.Interned, p.Reused, failure(p.Code, p.Error))
	return nil
}

func (es *EventSubscriber) handleDiffCompleted(ctx context.Context, event bus.Event) error {
	p, err := bus.Decode[bus.DiffCompleted](event)
	if err != nil {
		return err
	}
	es.metrics.RecordDiff(p.Millis, p.Summary, p.Cached, failure(p.Code, p.Error))
	es.metrics.RecordDiffPhases(p.Phases)
	return nil
}

// failure rebuilds the error reported by an event, nil when it succeeded.
func failure(code, msg string) error {
	if code == "" {
		return nil
	}
	return errors.New(code, msg)
}
