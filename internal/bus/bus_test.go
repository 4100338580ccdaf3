package bus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	// Subscribe to topic
	err := bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Publish events
	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), "test.topic", Event{
			ID:   "test-" + string(rune('0'+i)),
			Type: "test",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	// Wait for handlers
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if got := received.Load(); got != 3 {
		t.Errorf("Received %d events, want 3", got)
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var count1, count2 atomic.Int32
	var wg sync.WaitGroup

	// First subscriber
	bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		count1.Add(1)
		wg.Done()
		return nil
	})

	// Second subscriber
	bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		count2.Add(1)
		wg.Done()
		return nil
	})

	// Publish one event - both subscribers should receive
	wg.Add(2)
	bus.Publish(context.Background(), "test.topic", Event{ID: "test", Type: "test"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout")
	}

	if count1.Load() != 1 || count2.Load() != 1 {
		t.Errorf("Expected both subscribers to receive 1 event, got %d and %d", count1.Load(), count2.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	// Publishing to a topic with no subscribers should not error
	err := bus.Publish(context.Background(), "empty.topic", Event{ID: "test", Type: "test"})
	if err != nil {
		t.Errorf("Publish() to empty topic error = %v", err)
	}
}

func TestMemoryBus_HandlerError(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	done := make(chan struct{})
	bus.Subscribe(context.Background(), "fail.topic", func(ctx context.Context, event Event) error {
		defer close(done)
		return errors.New("boom")
	})

	if err := bus.Publish(context.Background(), "fail.topic", Event{ID: "e"}); err != nil {
		t.Fatalf("Publish() error = %v, handler errors must not fail the publisher", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for handler")
	}
}

func TestMemoryBus_HandlerOutlivesRequest(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	errs := make(chan error, 1)
	release := make(chan struct{})
	bus.Subscribe(context.Background(), "t", func(ctx context.Context, event Event) error {
		<-release
		errs <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, "t", Event{ID: "e"})
	cancel()
	close(release)

	select {
	case err := <-errs:
		if err != nil {
			t.Errorf("handler context error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for handler")
	}
}

func TestMemoryBus_Drain(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	release := make(chan struct{})
	bus.Subscribe(context.Background(), "t", func(ctx context.Context, event Event) error {
		<-release
		return nil
	})
	bus.Publish(context.Background(), "t", Event{ID: "e"})

	if bus.DrainTimeout(20 * time.Millisecond) {
		t.Error("DrainTimeout() = true with a blocked handler")
	}
	if n := bus.InFlightCount(); n != 1 {
		t.Errorf("InFlightCount() = %d, want 1", n)
	}
	close(release)
	if !bus.DrainTimeout(time.Second) {
		t.Error("DrainTimeout() = false after release")
	}
	bus.Close()
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(TopicGenerationCompleted, "workspace", GenerationCompleted{Path: "a.go"})
	b := NewEvent(TopicGenerationCompleted, "workspace", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("NewEvent() ids = %q, %q, want distinct", a.ID, b.ID)
	}
	if a.Type != TopicGenerationCompleted || a.Source != "workspace" || a.Timestamp == 0 {
		t.Errorf("NewEvent() = %+v", a)
	}
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())

	// Close the bus
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Operations should fail after close
	err := bus.Publish(context.Background(), "test", Event{})
	if err == nil {
		t.Error("Publish() after Close() should error")
	}

	err = bus.Subscribe(context.Background(), "test", func(ctx context.Context, event Event) error {
		return nil
	})
	if err == nil {
		t.Error("Subscribe() after Close() should error")
	}
}

func TestMemoryBus_Concurrent(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	// Subscribe
	bus.Subscribe(context.Background(), "concurrent", func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	// Publish concurrently
	numPublishers := 10
	eventsPerPublisher := 100
	wg.Add(numPublishers * eventsPerPublisher)

	for p := 0; p < numPublishers; p++ {
		go func(publisher int) {
			for i := 0; i < eventsPerPublisher; i++ {
				bus.Publish(context.Background(), "concurrent", Event{
					ID:   "test",
					Type: "test",
				})
			}
		}(p)
	}

	// Wait with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout: received %d events, expected %d", received.Load(), numPublishers*eventsPerPublisher)
	}

	expected := int32(numPublishers * eventsPerPublisher)
	if got := received.Load(); got != expected {
		t.Errorf("Received %d events, want %d", got, expected)
	}
}

func TestDecode(t *testing.T) {
	want := DiffCompleted{Path: "a.go", Src: 3, Dst: 4, Mapped: 9, Phases: map[string]float64{"script": 0.5}}

	got, err := Decode[DiffCompleted](NewEvent(TopicDiffCompleted, "test", want))
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("Decode(struct) = %+v, %v, want %+v", got, err, want)
	}

	got, err = Decode[DiffCompleted](NewEvent(TopicDiffCompleted, "test", &want))
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("Decode(pointer) = %+v, %v, want %+v", got, err, want)
	}

	// What a JSON round trip through Kafka or the event log yields.
	generic := map[string]any{"path": "a.go", "src": 3.0, "dst": 4.0, "mapped": 9.0, "phases_ms": map[string]any{"script": 0.5}}
	got, err = Decode[DiffCompleted](NewEvent(TopicDiffCompleted, "test", generic))
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("Decode(map) = %+v, %v, want %+v", got, err, want)
	}

	if _, err := Decode[DiffCompleted](NewEvent(TopicDiffCompleted, "test", "nope")); err == nil {
		t.Error("Decode(string) should fail")
	}
}
