package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource reports readiness and hands out the latest snapshot.
type SnapshotSource interface {
	CheckReadiness(ctx context.Context) error
	Latest() *domain.Snapshot
}

// Server exposes health, readiness, metrics, and the latest matrix over HTTP.
type Server struct {
	httpServer *http.Server
	source     SnapshotSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /v1/matrix and /v1/totals routes.
func NewServer(addr string, source SnapshotSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(source))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/matrix", s.handleMatrix)
	mux.HandleFunc("GET /v1/totals", s.handleTotals)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleMatrix streams the latest matrix in the snapshot CSV layout.
func (s *Server) handleMatrix(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Latest()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot yet"})
		return
	}

	var buf bytes.Buffer
	if err := csvstore.Store(&buf, snap.Matrix); err != nil {
		s.logger.Error("encode matrix", "error", err, "run_id", snap.RunID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode matrix"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rain_by_station.csv"`)
	w.Header().Set("X-Run-ID", snap.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type totalsResponse struct {
	RunID       string                `json:"run_id"`
	CollectedAt time.Time             `json:"collected_at"`
	Start       domain.Date           `json:"start"`
	End         domain.Date           `json:"end"`
	Totals      []domain.StationTotal `json:"totals"`
}

// handleTotals returns per-station totals in column order.
func (s *Server) handleTotals(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Latest()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot yet"})
		return
	}

	writeJSON(w, http.StatusOK, totalsResponse{
		RunID:       snap.RunID,
		CollectedAt: snap.CollectedAt,
		Start:       snap.Range.Start,
		End:         snap.Range.End,
		Totals:      snap.Matrix.Totals(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
