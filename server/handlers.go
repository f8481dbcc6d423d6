package server

import (
	"net/http"
	"strconv"

	"github.com/petal-labs/ghostmcp/audit"
	"github.com/petal-labs/ghostmcp/health"
)

type healthResponse struct {
	Status string         `json:"status"`
	Tools  int            `json:"tools"`
	Probe  *health.Report `json:"probe,omitempty"`
}

// handleHealth reports process liveness and the last backend probe. An
// unhealthy backend answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Tools: len(s.dispatcher.Definitions())}
	status := http.StatusOK
	if s.health != nil {
		report := s.health.Last()
		resp.Probe = &report
		if report.Status == health.StatusUnhealthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "NOT_ENABLED", "metrics are not enabled")
		return
	}
	points, err := s.metrics.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("metrics snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "METRICS_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": points})
}

// handleAudit lists recent invocations. Query parameters: tool, errors=true,
// limit.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "NOT_ENABLED", "audit log is not enabled")
		return
	}

	query := r.URL.Query()
	filter := audit.Filter{Tool: query.Get("tool")}
	if raw := query.Get("errors"); raw != "" {
		errorsOnly, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "errors must be a boolean")
			return
		}
		filter.ErrorsOnly = errorsOnly
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	records, err := s.audit.Recent(r.Context(), filter)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "AUDIT_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": records})
}
