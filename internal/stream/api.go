package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/engine"
	"github.com/dm/memwatch/internal/model"
)

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/leaks", s.handleLeaks)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	mux.HandleFunc("POST /api/snapshots", s.handleTakeSnapshot)
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/export", s.handleExport)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps engine sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoSnapshotsAvailable), errors.Is(err, engine.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientData):
		return http.StatusConflict
	case errors.Is(err, engine.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// windowParam parses ?window= as a Go duration or milliseconds. Absent
// yields 0.
func windowParam(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	return d, nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyzer.GenerateDetailedReport()
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	window, err := windowParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.AnalyzeTrends(window))
}

func (s *Server) handleLeaks(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.sampler.AnalyzeLeaks()
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window, err := windowParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if window <= 0 {
		s.writeJSON(w, http.StatusOK, s.sampler.History())
		return
	}
	s.writeJSON(w, http.StatusOK, s.sampler.HistoryWindow(window))
}

// handleStats reads the source directly, so it works whether or not the
// sampler is running. Its body is what telemetry.HTTPSource consumes.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sample, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps := s.analyzer.Snapshots()
	out := make([]model.SnapshotSummary, len(snaps))
	for i, snap := range snaps {
		out[i] = snap.Summary()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		label = "manual"
	}
	snap := s.sampler.TakeSnapshot(r.Context(), label)
	if snap == nil {
		s.writeError(w, http.StatusServiceUnavailable, engine.ErrSourceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, errA := strconv.ParseUint(q.Get("a"), 10, 64)
	b, errB := strconv.ParseUint(q.Get("b"), 10, 64)
	if errA != nil || errB != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("query parameters a and b must be snapshot ids"))
		return
	}
	cmp, err := s.analyzer.CompareSnapshots(a, b)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ex, err := s.analyzer.ExportData(q.Get("format"), q.Get("filename"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", ex.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ex.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(ex.Content); err != nil {
		s.logger.Warn("write export", zap.Error(err))
	}
}
