// Package queue provides the request queue that every outbound backend call
// passes through.
//
// A Queue enforces two limits at once: a maximum number of tasks running
// concurrently, and a maximum number of admissions per fixed time window.
// Callers are admitted strictly in submission order. A caller that cannot be
// admitted yet blocks; the queue never rejects or drops work.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultConcurrency is the default number of tasks allowed in flight.
	DefaultConcurrency = 10
	// DefaultInterval is the default rate window length.
	DefaultInterval = 60 * time.Second
	// DefaultIntervalCap is the default number of admissions per window.
	DefaultIntervalCap = 100
)

// Config controls the admission limits of a Queue.
type Config struct {
	// Concurrency is the maximum number of tasks running at once.
	// Default: 10
	Concurrency int
	// Interval is the length of one rate window.
	// Default: 60s
	Interval time.Duration
	// IntervalCap is the maximum number of admissions within one window.
	// Default: 100
	IntervalCap int
}

// Stats is a point-in-time snapshot of queue bookkeeping.
type Stats struct {
	Active      int
	Pending     int
	WindowCount int
}

type waiter struct {
	ready    chan struct{}
	admitted bool
}

// Queue is a FIFO admission gate with a concurrency limit and a windowed rate
// limit. It is safe for concurrent use.
type Queue struct {
	concurrency int
	interval    time.Duration
	intervalCap int
	now         func() time.Time

	mu          sync.Mutex
	active      int
	waiters     []*waiter
	windowStart time.Time
	windowCount int
	timer       *time.Timer
}

// New creates a queue. Non-positive config values fall back to defaults.
func New(cfg Config) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.IntervalCap <= 0 {
		cfg.IntervalCap = DefaultIntervalCap
	}
	return &Queue{
		concurrency: cfg.Concurrency,
		interval:    cfg.Interval,
		intervalCap: cfg.IntervalCap,
		now:         time.Now,
	}
}

// Config returns the effective limits of the queue.
func (q *Queue) Config() Config {
	return Config{
		Concurrency: q.concurrency,
		Interval:    q.interval,
		IntervalCap: q.intervalCap,
	}
}

// Do waits for admission and then runs task on the calling goroutine.
//
// The task's error is returned only to this caller. Once admitted, a task
// always runs to completion. If ctx ends while the caller is still waiting for
// admission, the caller leaves the line and Do returns ctx.Err() without
// running the task.
func (q *Queue) Do(ctx context.Context, task func(context.Context) error) error {
	if q == nil {
		return errors.New("queue: queue is nil")
	}
	if task == nil {
		return errors.New("queue: task is nil")
	}
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()
	return task(ctx)
}

// Stats returns a snapshot of active, pending, and current-window counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Active:      q.active,
		Pending:     len(q.waiters),
		WindowCount: q.windowCount,
	}
}

func (q *Queue) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w := &waiter{ready: make(chan struct{})}
	q.mu.Lock()
	q.waiters = append(q.waiters, w)
	q.dispatchLocked()
	q.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if w.admitted {
		// Admitted concurrently with cancellation: hand the slot back.
		q.active--
	} else {
		q.removeLocked(w)
	}
	q.dispatchLocked()
	return ctx.Err()
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active--
	q.dispatchLocked()
}

// dispatchLocked admits waiters from the head of the line while both limits
// allow it. When only the window cap blocks, it arms a timer for the next
// window boundary.
func (q *Queue) dispatchLocked() {
	for len(q.waiters) > 0 {
		if q.active >= q.concurrency {
			return
		}

		now := q.now()
		if q.windowStart.IsZero() || !now.Before(q.windowStart.Add(q.interval)) {
			q.windowStart = now
			q.windowCount = 0
		}
		if q.windowCount >= q.intervalCap {
			q.wakeAtLocked(q.windowStart.Add(q.interval).Sub(now))
			return
		}

		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		q.active++
		q.windowCount++
		w.admitted = true
		close(w.ready)
	}
}

func (q *Queue) wakeAtLocked(d time.Duration) {
	if q.timer != nil {
		return
	}
	if d < 0 {
		d = 0
	}
	q.timer = time.AfterFunc(d, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.timer = nil
		q.dispatchLocked()
	})
}

func (q *Queue) removeLocked(target *waiter) {
	for i, w := range q.waiters {
		if w == target {
			copy(q.waiters[i:], q.waiters[i+1:])
			q.waiters[len(q.waiters)-1] = nil
			q.waiters = q.waiters[:len(q.waiters)-1]
			return
		}
	}
}
