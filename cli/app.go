package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/ghostmcp/audit"
	"github.com/petal-labs/ghostmcp/config"
	"github.com/petal-labs/ghostmcp/ghost"
	"github.com/petal-labs/ghostmcp/health"
	ghostotel "github.com/petal-labs/ghostmcp/otel"
	"github.com/petal-labs/ghostmcp/queue"
	"github.com/petal-labs/ghostmcp/tool"
)

// app is the wired process: one queue, one backend client, and the registry
// with its observers.
type app struct {
	cfg       config.Config
	queue     *queue.Queue
	client    *ghost.Client
	registry  *tool.Registry
	telemetry *ghostotel.Providers
	gauges    metric.Registration
	audit     *audit.Store
	health    *health.Scheduler
	logger    *slog.Logger
}

type appOptions struct {
	version string
}

// loadConfig resolves and validates configuration using the --config flag.
// Missing required settings map to exitConfig.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{Path: path})
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitConfig, "%w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.queue = queue.New(cfg.Queue())
	a.client, err = ghost.NewClient(ghost.Config{
		URL:           cfg.Ghost.URL,
		AdminAPIKey:   cfg.Ghost.AdminAPIKey,
		ContentAPIKey: cfg.Ghost.ContentAPIKey,
		APIVersion:    cfg.Ghost.APIVersion,
		Queue:         a.queue,
		Logger:        logger,
	})
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	a.telemetry, err = ghostotel.Setup(ctx, ghostotel.Options{
		ServiceVersion: opts.version,
		Endpoint:       cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	otelObserver, err := ghostotel.NewObserver(a.telemetry.Meter("ghostmcp/tool"), a.telemetry.Tracer("ghostmcp/tool"))
	if err != nil {
		return nil, fmt.Errorf("initializing tool observability: %w", err)
	}
	a.gauges, err = ghostotel.RegisterQueueGauges(a.telemetry.Meter("ghostmcp/queue"), a.queue)
	if err != nil {
		return nil, fmt.Errorf("registering queue gauges: %w", err)
	}

	observers := tool.Observers{otelObserver}
	if cfg.Audit.DB != "" {
		a.audit, err = audit.Open(cfg.Audit.DB)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		observers = append(observers, audit.NewObserver(a.audit, logger))
	}

	a.registry, err = tool.NewRegistry(tool.Config{
		Modules:  tool.Modules(a.client),
		Timeout:  cfg.RequestTimeout,
		Observer: observers,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	if cfg.HealthEnabled() {
		a.health, err = health.NewScheduler(health.Config{
			Prober:   a.client,
			Schedule: cfg.Health.Schedule,
			Observer: otelObserver,
			Logger:   logger,
		})
		if err != nil {
			return nil, exitError(exitConfig, "%v", err)
		}
	}
	return a, nil
}

// close releases everything newApp acquired, in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.health != nil {
		errs = append(errs, a.health.Stop(ctx))
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.gauges != nil {
		errs = append(errs, a.gauges.Unregister())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
