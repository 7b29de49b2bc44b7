// Package api serves the read-only report surface of a finished run.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/dealsync/internal/domain/types"
	"github.com/okian/dealsync/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportProvider returns the report of the latest run, or nil before the
// first run finishes.
type ReportProvider interface {
	Report() *types.Report
}

// Server wires the HTTP routes.
type Server struct {
	healthHandler *HealthHandler
	reportHandler *ReportHandler
	metrics       http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(reports ReportProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		reportHandler: NewReportHandler(reports),
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/report", MetricsMiddleware(s.reportHandler.HandleReport, "report"))
	mux.Handle("/metrics", s.metrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
