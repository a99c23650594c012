package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/tbourn/go-attendance-backend/internal/config"
)

func TestSetupOTel_DisabledIsNoop(t *testing.T) {
	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupOTel_ExporterFailure(t *testing.T) {
	prev := newOTLPExporterFn
	t.Cleanup(func() { newOTLPExporterFn = prev })
	newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("dial failed")
	}

	cfg := config.OTELConfig{Enabled: true, Endpoint: "localhost:4317", Insecure: true, SampleRatio: 1}
	if _, err := SetupOTel(context.Background(), cfg, "test"); err == nil {
		t.Fatal("expected exporter error")
	}
}

func TestSetupOTel_ResourceFailure(t *testing.T) {
	prev := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = prev })
	newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
		return nil, errors.New("bad resource")
	}

	cfg := config.OTELConfig{Enabled: true, Endpoint: "localhost:4317", Insecure: true, SampleRatio: 1}
	if _, err := SetupOTel(context.Background(), cfg, "test"); err == nil {
		t.Fatal("expected resource error")
	}
}
