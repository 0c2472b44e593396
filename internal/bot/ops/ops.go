// Package ops exposes the operational HTTP surface: liveness, Prometheus
// metrics, and a retention summary. It is meant for an internal listener,
// not the public internet.
package ops

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkurilov/counselbot/internal/bot/repositories/retentionlog"
	"github.com/dkurilov/counselbot/internal/logging"
)

// Pinger reports storage liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatsProvider supplies the retention summary.
type StatsProvider interface {
	Stats(ctx context.Context) (*retentionlog.Stats, error)
}

// NewRouter builds the ops router.
func NewRouter(reg *prometheus.Registry, db Pinger, stats StatsProvider, logger logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			logger.Warn("health check failed", "error", err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/retention/stats", func(w http.ResponseWriter, req *http.Request) {
		s, err := stats.Stats(req.Context())
		if err != nil {
			logger.Error("retention stats failed", "error", err)
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	})

	return r
}
