package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/petal-labs/ghostmcp/tool"
)

const insertTimeout = 5 * time.Second

// Recorder is the write side of a Store.
type Recorder interface {
	Insert(ctx context.Context, rec Record) error
}

// Observer writes every invocation to a Recorder. Write failures are logged
// and never reach the caller.
type Observer struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewObserver wraps recorder. A nil logger uses slog.Default().
func NewObserver(recorder Recorder, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{recorder: recorder, logger: logger}
}

// ObserveInvocation records inv.
func (o *Observer) ObserveInvocation(inv tool.Invocation) {
	if o == nil || o.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := o.recorder.Insert(ctx, FromInvocation(inv)); err != nil {
		o.logger.Warn("audit: write failed", "tool", inv.Tool, "invocation_id", inv.ID, "error", err)
	}
}

// FromInvocation converts a completed invocation to a Record.
func FromInvocation(inv tool.Invocation) Record {
	return Record{
		ID:         inv.ID,
		Tool:       inv.Tool,
		StartedAt:  inv.StartedAt,
		DurationMS: inv.Duration.Milliseconds(),
		IsError:    inv.IsError,
		ErrorKind:  inv.ErrorKind,
		Summary:    inv.Summary,
	}
}

var _ tool.Observer = (*Observer)(nil)
