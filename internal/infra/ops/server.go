// File: internal/infra/ops/server.go
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports whether a backing service is reachable. The postgres pool
// and the redis queue both satisfy it; a nil Pinger is skipped (the in-memory
// store has nothing to probe).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker probes the configured pipeline providers.
type HealthChecker interface {
	Health(ctx context.Context) map[string]bool
}

// Server exposes the operational surface of a worker process: liveness,
// dependency health, and Prometheus metrics. It is deliberately not the
// job-submission API; jobs enter through the queue.
type Server struct {
	store     Pinger
	queue     Pinger
	providers HealthChecker
	srv       *http.Server
	log       zerolog.Logger
}

func NewServer(port int, store, queue Pinger, providers HealthChecker, logger *zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		queue:     queue,
		providers: providers,
		log:       logger.With().Str("component", "OpsServer").Logger(),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the router; exposed so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(&s.log))
	r.Use(TraceID(&s.log))
	r.Use(RequestLog(&s.log))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Providers map[string]bool   `json:"providers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	probe := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			return
		}
		resp.Checks[name] = "ok"
	}
	probe("database", s.store)
	probe("queue", s.queue)

	// Provider probes are informational only: an unhealthy provider degrades
	// jobs to fallback copies, it does not take the worker out of rotation.
	if s.providers != nil {
		resp.Providers = s.providers.Health(ctx)
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
