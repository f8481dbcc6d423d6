// Package otel records ghostmcp tool invocations, backend probes, and queue
// depth into OpenTelemetry.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/ghostmcp/health"
	"github.com/petal-labs/ghostmcp/tool"
)

// Observer records invocation and probe signals.
type Observer struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
	probes      metric.Int64Counter
	probeTime   metric.Float64Histogram
}

// NewObserver creates instruments on meter. tracer may be nil.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	invocations, err := meter.Int64Counter(
		"ghostmcp.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"ghostmcp.tool.failures",
		metric.WithDescription("Number of tool invocations that returned an error result"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"ghostmcp.tool.latency",
		metric.WithDescription("Tool latency in seconds, including queue wait"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	probes, err := meter.Int64Counter(
		"ghostmcp.health.checks",
		metric.WithDescription("Number of backend health probes"),
	)
	if err != nil {
		return nil, err
	}
	probeTime, err := meter.Float64Histogram(
		"ghostmcp.health.latency",
		metric.WithDescription("Backend health probe latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
		probes:      probes,
		probeTime:   probeTime,
	}, nil
}

// ObserveInvocation records one completed tool call as a counter increment, a
// latency sample, and a span covering the call.
func (o *Observer) ObserveInvocation(inv tool.Invocation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", inv.Tool),
		attribute.Bool("success", !inv.IsError),
	}
	if inv.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", inv.ErrorKind))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	if inv.IsError {
		o.failures.Add(ctx, 1, options)
	}
	o.latency.Record(ctx, inv.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.invoke:"+inv.Tool,
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(inv.StartedAt),
	)
	span.SetAttributes(attribute.String("ghostmcp.invocation_id", inv.ID))
	if inv.IsError {
		span.SetStatus(codes.Error, inv.Summary)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(inv.StartedAt.Add(inv.Duration)))
}

// ObserveProbe records one backend health probe.
func (o *Observer) ObserveProbe(report health.Report) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("status", string(report.Status)),
		attribute.String("previous_status", string(report.PreviousStatus)),
		attribute.Int("failure_count", report.Failures),
	}
	if report.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", report.ErrorKind))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.probes.Add(ctx, 1, options)
	o.probeTime.Record(ctx, report.Latency.Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "health.check",
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(report.CheckedAt),
	)
	if report.Status == health.StatusUnhealthy {
		span.SetStatus(codes.Error, report.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(report.CheckedAt.Add(report.Latency)))
}

var (
	_ tool.Observer   = (*Observer)(nil)
	_ health.Observer = (*Observer)(nil)
)
