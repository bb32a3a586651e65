package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("runemaster")

	if cfg.ServiceName != "runemaster" {
		t.Errorf("expected ServiceName 'runemaster', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("runemaster")

	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
	if cfg.Enabled {
		t.Error("expected metrics disabled by default")
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordRunStart(ctx)
	metrics.RecordRunEnd(ctx, "p1", "done", 100*time.Millisecond)
	metrics.RecordTask(ctx, "CSVQueryTask", "transform", "ok", 50*time.Millisecond)
	metrics.RecordError(ctx, "EXECUTION_FAILED", "engine")
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordTask(ctx, "DownloadTask", "source", "ok", time.Millisecond)
	metrics.RecordTask(ctx, "DownloadTask", "source", "ok", time.Millisecond)
	metrics.RecordError(ctx, "EXECUTION_FAILED", "engine")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[m.Name] += dp.Value
				}
			}
		}
	}
	if got["task.execution.total"] != 2 {
		t.Errorf("expected 2 task executions, got %d", got["task.execution.total"])
	}
	if got["error.total"] != 1 {
		t.Errorf("expected 1 error, got %d", got["error.total"])
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartSpan_AttributesAndError(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanTaskExecute)
	SetSpanAttribute(ctx, AttrTask, "p1_extract")
	SetSpanAttribute(ctx, AttrStep, 0)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "slice-key", []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanTaskExecute {
		t.Errorf("expected span %q, got %q", SpanTaskExecute, s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}
	if len(s.Attributes()) != 6 {
		t.Errorf("expected 6 attributes, got %d", len(s.Attributes()))
	}
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
	SetSpanError(ctx, nil)
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil noop span")
	}
}

func TestComponent_DisabledIsNoop(t *testing.T) {
	c := NewComponent(DefaultTracerConfig("runemaster"), DefaultMeterConfig("runemaster"), nil)

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.tp != nil || c.mp != nil {
		t.Fatal("expected no providers when disabled")
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Describe().Type != "telemetry" {
		t.Errorf("unexpected description: %+v", c.Describe())
	}
}

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	for _, rate := range []float64{1.0, 0.0, 0.5} {
		cfg := DefaultTracerConfig("test")
		cfg.SampleRate = rate
		tp, err := InitTracer(context.Background(), &cfg, nil)
		if err != nil {
			t.Fatalf("rate %v: unexpected error: %v", rate, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_ = tp.Shutdown(ctx)
		cancel()
	}
}

func TestInitMeter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	cfg := DefaultMeterConfig("test")
	mp, err := InitMeter(context.Background(), &cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx)
}
