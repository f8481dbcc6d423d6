package otel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Options configures Setup.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP/HTTP collector URL. Spans are exported only when it
	// or SpanExporter is set.
	Endpoint string
	// SpanExporter overrides the OTLP exporter.
	SpanExporter sdktrace.SpanExporter
}

// Providers owns the SDK tracer and meter providers. Metrics are kept in
// process and read with Snapshot.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// Setup builds the providers.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	name := strings.TrimSpace(opts.ServiceName)
	if name == "" {
		name = "ghostmcp"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", opts.ServiceVersion),
	)

	exporter := opts.SpanExporter
	if exporter == nil && strings.TrimSpace(opts.Endpoint) != "" {
		otlp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(opts.Endpoint)))
		if err != nil {
			return nil, fmt.Errorf("otel: creating otlp exporter: %w", err)
		}
		exporter = otlp
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}

	reader := sdkmetric.NewManualReader()
	return &Providers{
		tracer: sdktrace.NewTracerProvider(traceOpts...),
		meter:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)),
		reader: reader,
	}, nil
}

// Tracer returns a named tracer.
func (p *Providers) Tracer(name string) trace.Tracer {
	return p.tracer.Tracer(name)
}

// Meter returns a named meter.
func (p *Providers) Meter(name string) metric.Meter {
	return p.meter.Meter(name)
}

// Flush exports every finished span.
func (p *Providers) Flush(ctx context.Context) error {
	return p.tracer.ForceFlush(ctx)
}

// Shutdown flushes pending spans and releases both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.tracer.Shutdown(ctx), p.meter.Shutdown(ctx))
}

// Point is one metric data point in a Snapshot.
type Point struct {
	Name       string            `json:"name"`
	Unit       string            `json:"unit,omitempty"`
	Kind       string            `json:"kind"`
	Value      float64           `json:"value"`
	Sum        float64           `json:"sum,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Snapshot collects current metric values. Counters and gauges report their
// value; histograms report their sample count in Value and total in Sum.
func (p *Providers) Snapshot(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("otel: collecting metrics: %w", err)
	}
	return Summarize(&rm), nil
}

// Summarize flattens collected metrics into points sorted by name.
func Summarize(rm *metricdata.ResourceMetrics) []Point {
	var points []Point
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			base := Point{Name: m.Name, Unit: m.Unit}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, withValue(base, "sum", float64(dp.Value), 0, dp.Attributes))
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, withValue(base, "sum", dp.Value, 0, dp.Attributes))
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, withValue(base, "gauge", float64(dp.Value), 0, dp.Attributes))
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, withValue(base, "histogram", float64(dp.Count), dp.Sum, dp.Attributes))
				}
			}
		}
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		return strings.Compare(a.Name, b.Name)
	})
	return points
}

func withValue(p Point, kind string, value, sum float64, set attribute.Set) Point {
	p.Kind = kind
	p.Value = value
	p.Sum = sum
	if set.Len() > 0 {
		p.Attributes = make(map[string]string, set.Len())
		for iter := set.Iter(); iter.Next(); {
			kv := iter.Attribute()
			p.Attributes[string(kv.Key)] = kv.Value.Emit()
		}
	}
	return p
}
