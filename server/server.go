// Package server exposes the tool registry over the Model Context Protocol,
// on stdio or streamable HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petal-labs/ghostmcp/audit"
	"github.com/petal-labs/ghostmcp/health"
	"github.com/petal-labs/ghostmcp/otel"
	"github.com/petal-labs/ghostmcp/tool"
)

// Name is the server name announced during initialize.
const Name = "ghostmcp"

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

// Dispatcher runs tool calls.
type Dispatcher interface {
	Definitions() []tool.Definition
	Call(ctx context.Context, name string, args map[string]any) tool.Result
}

// HealthSource reports the latest backend probe.
type HealthSource interface {
	Last() health.Report
}

// MetricsSource snapshots collected metrics.
type MetricsSource interface {
	Snapshot(ctx context.Context) ([]otel.Point, error)
}

// AuditSource lists recent invocations.
type AuditSource interface {
	Recent(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
}

// Config configures a Server. Health, Metrics, and Audit are optional; their
// HTTP routes answer 404 when unset.
type Config struct {
	Dispatcher Dispatcher
	Version    string
	Health     HealthSource
	Metrics    MetricsSource
	Audit      AuditSource
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the MCP surface for one registry.
type Server struct {
	mcp        *mcpserver.MCPServer
	dispatcher Dispatcher
	health     HealthSource
	metrics    MetricsSource
	audit      AuditSource
	maxBody    int64
	logger     *slog.Logger
}

// New registers every definition of cfg.Dispatcher as an MCP tool.
func New(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("server: dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 4 << 20
	}

	s := &Server{
		mcp: mcpserver.NewMCPServer(
			Name,
			version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithRecovery(),
		),
		dispatcher: cfg.Dispatcher,
		health:     cfg.Health,
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
		maxBody:    maxBody,
		logger:     logger,
	}

	for _, def := range cfg.Dispatcher.Definitions() {
		schema, err := def.RawInputSchema()
		if err != nil {
			return nil, fmt.Errorf("server: schema for %s: %w", def.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), s.handleCall)
	}
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

// handleCall adapts one tools/call to the dispatcher. Tool failures become
// isError results, never protocol errors.
func (s *Server) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.dispatcher.Call(ctx, req.Params.Name, req.GetArguments())
	if result.IsError {
		return mcp.NewToolResultError(result.Text), nil
	}
	return mcp.NewToolResultText(result.Text), nil
}

// ServeStdio speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP on stdio", "tools", len(s.dispatcher.Definitions()))
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("server: stdio: %w", err)
	}
	return nil
}

// ServeHTTP listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over HTTP", "addr", addr, "path", MCPPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen %s: %w", addr, err)
		}
		return nil
	}
}

// Handler returns the HTTP routes: the MCP endpoint plus /health, /metrics,
// and /audit.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, mcpserver.NewStreamableHTTPServer(s.mcp))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /audit", s.handleAudit)
	return s.maxBodyMiddleware(mux)
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: strings.TrimSpace(message)}})
}
