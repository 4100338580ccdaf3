package bus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

func TestNewBus(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.BusConfig
		wantCode string
		wantType string
	}{
		{name: "default", cfg: config.BusConfig{}, wantType: "*bus.MemoryBus"},
		{name: "memory", cfg: config.BusConfig{Type: "Memory"}, wantType: "*bus.MemoryBus"},
		{name: "kafka without brokers", cfg: config.BusConfig{Type: "kafka"}, wantCode: errors.CodeValidation},
		{name: "unknown", cfg: config.BusConfig{Type: "nats"}, wantCode: errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBus(tt.cfg, logger.Discard())
			if tt.wantCode != "" {
				if errors.CodeOf(err) != tt.wantCode {
					t.Fatalf("NewBus() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBus() error = %v", err)
			}
			defer b.Close()
			if got := typeName(b); got != tt.wantType {
				t.Errorf("NewBus() = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestNewBus_EventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	b, err := NewBus(config.BusConfig{Type: "memory", EventLog: path}, logger.Discard())
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	if _, ok := b.(*LoggedBus); !ok {
		t.Fatalf("NewBus() = %T, want *LoggedBus", b)
	}

	event := NewEvent(TopicRevisionRemoved, "test", RevisionRemoved{Path: "a.go"})
	if err := b.Publish(context.Background(), TopicRevisionRemoved, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("event log is empty")
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
