// Package health probes backend reachability on a cron schedule and keeps the
// latest status for the HTTP health endpoint and the CLI.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/ghostmcp/ghost"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 10 * time.Second

// Status is the reachability state of the backend.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Prober checks the backend once.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// Report is the outcome of the most recent probe.
type Report struct {
	Status         Status        `json:"status"`
	PreviousStatus Status        `json:"previous_status"`
	CheckedAt      time.Time     `json:"checked_at"`
	Latency        time.Duration `json:"latency_ns"`
	Failures       int           `json:"consecutive_failures"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Changed reports whether the probe moved the status.
func (r Report) Changed() bool {
	return r.Status != r.PreviousStatus
}

// Observer receives every probe report.
type Observer interface {
	ObserveProbe(report Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Report)

// ObserveProbe calls f(report).
func (f ObserverFunc) ObserveProbe(report Report) { f(report) }

// Config controls a Scheduler.
type Config struct {
	Prober Prober
	// Schedule is a five-field cron spec or a descriptor such as "@every 5m".
	Schedule string
	// Timeout bounds each probe.
	// Default: 10s
	Timeout  time.Duration
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

var cronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule validates a probe schedule. Timezone prefixes are rejected.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("health: schedule is required")
	}
	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, errors.New("health: schedule must not carry a timezone prefix")
	}
	schedule, err := cronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("health: invalid schedule %q: %w", clean, err)
	}
	return schedule, nil
}

// Scheduler runs probes on a schedule.
type Scheduler struct {
	prober   Prober
	schedule cron.Schedule
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	last   Report
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler validates cfg and builds a stopped scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Prober == nil {
		return nil, errors.New("health: prober is nil")
	}
	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = ObserverFunc(func(Report) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		prober:   cfg.Prober,
		schedule: schedule,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
		last:     Report{Status: StatusUnknown, PreviousStatus: StatusUnknown},
	}, nil
}

// Start probes once and then on every scheduled tick until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Check(loopCtx)
		for {
			next := s.schedule.Next(s.now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-loopCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.Check(loopCtx)
			}
		}
	}()
	return nil
}

// Stop ends the probe loop and waits for it, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check runs one probe now and records the result.
func (s *Scheduler) Check(ctx context.Context) Report {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err := s.prober.Ping(probeCtx)
	latency := s.now().Sub(start)

	s.mu.Lock()
	report := Report{
		PreviousStatus: s.last.Status,
		CheckedAt:      start,
		Latency:        latency,
	}
	if err != nil {
		report.Status = StatusUnhealthy
		report.Failures = s.last.Failures + 1
		report.Error = err.Error()
		report.ErrorKind = string(ghost.KindOf(err))
	} else {
		report.Status = StatusHealthy
	}
	s.last = report
	s.mu.Unlock()

	if report.Changed() {
		level := slog.LevelInfo
		if report.Status == StatusUnhealthy {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "backend health changed",
			"status", report.Status,
			"previous_status", report.PreviousStatus,
			"error", report.Error,
		)
	}
	s.observer.ObserveProbe(report)
	return report
}

// Last returns the most recent report. Before the first probe the status is
// StatusUnknown.
func (s *Scheduler) Last() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
