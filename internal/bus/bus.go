// Package bus publishes what the generator and the differ did to whoever
// listens: in-process subscribers, Kafka, or a JSONL event log.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, the topic it was first published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links related events, e.g. a diff to the generation
	// that triggered it.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(typ, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Topics.
const (
	TopicGenerationCompleted = "generation.completed"
	TopicDiffCompleted       = "diff.completed"
	TopicRevisionRemoved     = "revision.removed"
)

// Topics lists every topic published on.
var Topics = []string{TopicGenerationCompleted, TopicDiffCompleted, TopicRevisionRemoved}

// GenerationCompleted is the payload of TopicGenerationCompleted.
type GenerationCompleted struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Revision int    `json:"revision"`
	Root     uint32 `json:"root"`
	Size     uint32 `json:"size"`
	Height   uint32 `json:"height"`
	Interned int    `json:"interned"`
	Reused   int    `json:"reused"`
	Millis   int64  `json:"ms"`
	// Code and Error are set when generation failed.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// DiffCompleted is the payload of TopicDiffCompleted.
type DiffCompleted struct {
	Path    string          `json:"path,omitempty"`
	Src     uint32          `json:"src"`
	Dst     uint32          `json:"dst"`
	Summary actions.Summary `json:"summary"`
	Mapped  int             `json:"mapped"`
	Cached  bool            `json:"cached"`
	Millis  int64           `json:"ms"`
	// Phases are the durations in milliseconds of the matching phases,
	// absent for cached answers.
	Phases map[string]float64 `json:"phases_ms,omitempty"`
	Code   string             `json:"code,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// RevisionRemoved is the payload of TopicRevisionRemoved.
type RevisionRemoved struct {
	Path string `json:"path"`
}

// Decode returns the payload of event as a T. Payloads published in process
// are returned as is; payloads that went through JSON (Kafka, event log)
// arrive as generic maps and are decoded again.
func Decode[T any](event Event) (T, error) {
	switch p := event.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var out T
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return out, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return out, nil
}
