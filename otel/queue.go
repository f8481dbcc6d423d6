package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/ghostmcp/queue"
)

// QueueSource exposes queue bookkeeping.
type QueueSource interface {
	Stats() queue.Stats
}

// RegisterQueueGauges reports active, pending, and window admission counts of
// q on every collection. Unregister the returned registration on shutdown.
func RegisterQueueGauges(meter metric.Meter, q QueueSource) (metric.Registration, error) {
	active, err := meter.Int64ObservableGauge("ghostmcp.queue.active",
		metric.WithDescription("Backend requests currently running"),
	)
	if err != nil {
		return nil, err
	}
	pending, err := meter.Int64ObservableGauge("ghostmcp.queue.pending",
		metric.WithDescription("Backend requests waiting for admission"),
	)
	if err != nil {
		return nil, err
	}
	window, err := meter.Int64ObservableGauge("ghostmcp.queue.window_admissions",
		metric.WithDescription("Admissions in the current rate window"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := q.Stats()
		o.ObserveInt64(active, int64(stats.Active))
		o.ObserveInt64(pending, int64(stats.Pending))
		o.ObserveInt64(window, int64(stats.WindowCount))
		return nil
	}, active, pending, window)
}
