package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"voltonic-power/internal/metrics"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HealthCheck reports one dependency; nil means healthy
type HealthCheck func(ctx context.Context) error

// Router gorilla/mux router with panic recovery and per-route metrics
type Router struct {
	mux     *mux.Router
	handler http.Handler
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRouter m may be nil
func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		mux:     mux.NewRouter(),
		metrics: m,
		logger:  logger,
	}
	r.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(r.mux)
	return r
}

// Handle registers a GET route
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if r.metrics != nil {
		handler = r.metrics.WrapHandler(pattern, handler)
	}
	r.mux.Handle(pattern, handler).Methods(http.MethodGet)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// RegisterOpsRoutes health and metrics
func (r *Router) RegisterOpsRoutes(checks map[string]HealthCheck) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(req.Context()); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			r.logger.Warn("Health check failed", zap.Any("failed", failed))
			writeJSON(w, http.StatusServiceUnavailable, Result[map[string]string]{
				Code: ResultError, Type: "error", Message: "unhealthy", Result: failed,
			})
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})

	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics.Handler()).Methods(http.MethodGet)
	}
}

// RegisterPowerRoutes reporting views
func (r *Router) RegisterPowerRoutes(h *PowerHandler) {
	r.Handle("/api/v1/power/modes", h.GetPowerModes)
	r.Handle("/api/v1/power/risky-schedules", h.GetRiskySchedules)
	r.Handle("/api/v1/power/actions", h.ListActions)
	r.Handle("/api/v1/power/actions/export", h.ExportActions)
	r.Handle("/api/v1/power/rooms/{id:[0-9]+}/analysis", h.GetRoomAnalysis)
	r.Handle("/api/v1/power/cutoff-accuracy", h.GetCutoffAccuracy)
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Handler panic recovered", zap.String("panic", fmt.Sprint(v...)))
}
