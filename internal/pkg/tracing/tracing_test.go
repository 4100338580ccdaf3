package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/HyperAST/HyperAST-sub006/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{}, "test", &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled tracing wrote %d bytes", buf.Len())
	}
}

func TestSetup_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{Enabled: true, ServiceName: "hyperast-test"}, "test", &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "unit")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"Name":"unit"`) {
		t.Errorf("exported spans = %q, want span named unit", out)
	}
	if !strings.Contains(out, "hyperast-test") {
		t.Errorf("exported spans = %q, want the service name", out)
	}
}
