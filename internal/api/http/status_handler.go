// internal/api/http/status_handler.go
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DispatcherStatusProvider is implemented by the dispatcher.
type DispatcherStatusProvider interface {
	Status() domain.DispatcherStatus
}

// StatusHandler serves the read-only status API of the frontend.
type StatusHandler struct {
	directory  domain.WorkerDirectory
	dispatcher DispatcherStatusProvider
	leader     domain.LeaderElectionManager
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewStatusHandler creates a new StatusHandler. leader may be nil when leader
// election is disabled.
func NewStatusHandler(directory domain.WorkerDirectory, dispatcher DispatcherStatusProvider, leader domain.LeaderElectionManager, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		directory:  directory,
		dispatcher: dispatcher,
		leader:     leader,
		logger:     logger.With("component", "status-handler"),
		tracer:     otel.Tracer("job-dispatch-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers status routes to the http.ServeMux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/workers", h.instrument("/workers", h.handleWorkers))
	mux.Handle("/dispatcher", h.instrument("/dispatcher", h.handleDispatcher))
}

func (h *StatusHandler) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method != http.MethodGet {
			http.Error(iw, "Method not allowed", http.StatusMethodNotAllowed)
		} else {
			next.ServeHTTP(iw, r)
		}

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

func (h *StatusHandler) handleWorkers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, ToWorkersResponse(h.directory.Snapshot()))
}

func (h *StatusHandler) handleDispatcher(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, ToDispatcherResponse(h.dispatcher.Status(), h.leader))
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("error encoding response", "error", err)
	}
}
