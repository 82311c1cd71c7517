package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fraud-stream-dashboard/internal/domain/entity"
	domain_service "fraud-stream-dashboard/internal/domain/service"
	"fraud-stream-dashboard/internal/infrastructure/logger"
	"fraud-stream-dashboard/internal/infrastructure/metrics"
)

// ConnectionReporter exposes the stream connector's state for status display.
type ConnectionReporter interface {
	State() entity.ConnectionState
}

// Server is the read-only HTTP surface presentation collaborators render
// from: event-log snapshots, aggregate statistics, connection status and the
// per-event detail view. Nothing here mutates core state.
type Server struct {
	reconciler domain_service.Reconciler
	connection ConnectionReporter
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewServer creates the dashboard API server
func NewServer(
	reconciler domain_service.Reconciler,
	connection ConnectionReporter,
	m *metrics.Metrics,
	log *logger.Logger,
) *Server {
	return &Server{
		reconciler: reconciler,
		connection: connection,
		metrics:    m,
		logger:     log.WithComponent("api-server"),
	}
}

// Router returns the HTTP routes
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Get("/events/{index}", s.handleEventDetail)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reconciler.Stats())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]entity.ConnectionState{
		"connection": s.connection.State(),
	})
}

// handleEvents returns the event-log snapshot, optionally truncated to the
// most recent ?limit= entries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.reconciler.Events()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}

	s.writeJSON(w, http.StatusOK, events)
}

// handleEventDetail serves "select transaction at log position i".
func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid index")
		return
	}

	detail, ok := s.reconciler.EventAt(index)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no event at index")
		return
	}

	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
