package otel_test

import (
	"context"
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/petal-labs/ghostmcp/health"
	ghostotel "github.com/petal-labs/ghostmcp/otel"
	"github.com/petal-labs/ghostmcp/queue"
	"github.com/petal-labs/ghostmcp/tool"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumTotal(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestObserverRecordsInvocationMetrics(t *testing.T) {
	reader, mp := newTestMeter()
	observer, err := ghostotel.NewObserver(mp.Meter("test"), noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	observer.ObserveInvocation(tool.Invocation{ID: "a", Tool: "ghost_posts_list", StartedAt: start, Duration: 120 * time.Millisecond})
	observer.ObserveInvocation(tool.Invocation{
		ID: "b", Tool: "ghost_posts_update", StartedAt: start, Duration: 80 * time.Millisecond,
		IsError: true, ErrorKind: "conflict", Summary: "Error: Conflict: stale",
	})

	rm := collectMetrics(t, reader)

	invocations := findMetric(rm, "ghostmcp.tool.invocations")
	if invocations == nil {
		t.Fatal("ghostmcp.tool.invocations metric not found")
	}
	if got := sumTotal(t, invocations); got != 2 {
		t.Fatalf("invocations = %d, want 2", got)
	}
	failures := findMetric(rm, "ghostmcp.tool.failures")
	if failures == nil || sumTotal(t, failures) != 1 {
		t.Fatalf("failures = %+v, want 1", failures)
	}
	latency := findMetric(rm, "ghostmcp.tool.latency")
	if latency == nil {
		t.Fatal("ghostmcp.tool.latency metric not found")
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("ghostmcp.tool.latency type = %T, want Histogram[float64]", latency.Data)
	}
}

func TestObserverRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	_, mp := newTestMeter()

	observer, err := ghostotel.NewObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	observer.ObserveInvocation(tool.Invocation{
		ID: "inv-9", Tool: "ghost_posts_publish", StartedAt: start, Duration: time.Second,
		IsError: true, ErrorKind: tool.KindLocalValidation, Summary: "Error: Post is already published",
	})
	observer.ObserveProbe(health.Report{
		Status: health.StatusHealthy, PreviousStatus: health.StatusUnknown,
		CheckedAt: start, Latency: 30 * time.Millisecond,
	})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	inv := spans[0]
	if inv.Name != "tool.invoke:ghost_posts_publish" {
		t.Fatalf("span name = %q", inv.Name)
	}
	if inv.Status.Code != otelcodes.Error || inv.Status.Description != "Error: Post is already published" {
		t.Fatalf("span status = %+v", inv.Status)
	}
	if !inv.StartTime.Equal(start) || !inv.EndTime.Equal(start.Add(time.Second)) {
		t.Fatalf("span window = %v..%v", inv.StartTime, inv.EndTime)
	}
	found := false
	for _, attr := range inv.Attributes {
		if string(attr.Key) == "ghostmcp.invocation_id" && attr.Value.AsString() == "inv-9" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ghostmcp.invocation_id attribute on invocation span")
	}
	if spans[1].Name != "health.check" || spans[1].Status.Code != otelcodes.Ok {
		t.Fatalf("probe span = %q %+v", spans[1].Name, spans[1].Status)
	}
}

func TestRegisterQueueGauges(t *testing.T) {
	reader, mp := newTestMeter()
	q := queue.New(queue.Config{Concurrency: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	reg, err := ghostotel.RegisterQueueGauges(mp.Meter("test"), q)
	if err != nil {
		t.Fatalf("RegisterQueueGauges() error = %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	rm := collectMetrics(t, reader)
	active := findMetric(rm, "ghostmcp.queue.active")
	if active == nil {
		t.Fatal("ghostmcp.queue.active metric not found")
	}
	gauge, ok := active.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 1 {
		t.Fatalf("ghostmcp.queue.active = %+v", active.Data)
	}
	if findMetric(rm, "ghostmcp.queue.pending") == nil || findMetric(rm, "ghostmcp.queue.window_admissions") == nil {
		t.Fatal("queue gauges missing")
	}
}

func TestSetupSnapshot(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	providers, err := ghostotel.Setup(context.Background(), ghostotel.Options{
		ServiceVersion: "test",
		SpanExporter:   exporter,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	observer, err := ghostotel.NewObserver(providers.Meter("test"), providers.Tracer("test"))
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	observer.ObserveInvocation(tool.Invocation{Tool: "ghost_site_info", StartedAt: time.Now(), Duration: time.Millisecond})

	points, err := providers.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var found bool
	for _, p := range points {
		if p.Name == "ghostmcp.tool.invocations" {
			found = true
			if p.Kind != "sum" || p.Value != 1 || p.Attributes["tool_name"] != "ghost_site_info" {
				t.Fatalf("point = %+v", p)
			}
		}
	}
	if !found {
		t.Fatalf("invocation point missing from %+v", points)
	}

	if err := providers.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(exporter.GetSpans()) != 1 {
		t.Fatalf("exported spans = %d, want 1 after flush", len(exporter.GetSpans()))
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
