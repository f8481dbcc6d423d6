package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/ghostmcp/server"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Ghost tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, version)
		},
	}
	cmd.Flags().String("transport", "stdio", "MCP transport: stdio | http")
	cmd.Flags().String("addr", ":8080", "Listen address for the http transport")
	return cmd
}

func runServe(cmd *cobra.Command, version string) error {
	transport, _ := cmd.Flags().GetString("transport")
	addr, _ := cmd.Flags().GetString("addr")
	transport = strings.ToLower(strings.TrimSpace(transport))
	if transport != "stdio" && transport != "http" {
		return exitError(exitUsage, "invalid --transport %q (want stdio or http)", transport)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()
	if cfg.Path != "" {
		logger.Info("loaded config", "path", cfg.Path)
	}

	a, err := newApp(cmd.Context(), cfg, logger, appOptions{version: version})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	srv, err := server.New(server.Config{
		Dispatcher: a.registry,
		Version:    version,
		Health:     healthSource(a),
		Metrics:    a.telemetry,
		Audit:      auditSource(a),
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitRuntime, "creating MCP server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			return exitError(exitRuntime, "starting health probe: %v", err)
		}
	}

	switch transport {
	case "http":
		err = srv.ServeHTTP(ctx, addr)
	default:
		err = srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	return nil
}

// healthSource and auditSource avoid handing the server a typed nil.
func healthSource(a *app) server.HealthSource {
	if a.health == nil {
		return nil
	}
	return a.health
}

func auditSource(a *app) server.AuditSource {
	if a.audit == nil {
		return nil
	}
	return a.audit
}
