package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"request-gate/middleware/ratelimit"
	"request-gate/middleware/ratelimit/domain"
	"request-gate/middleware/requestid"
)

type routerDeps struct {
	upstream       http.Handler
	gate           func(http.Handler) http.Handler
	webhookLimiter domain.Limiter
	stats          domain.StatsStore
	gatherer       prometheus.Gatherer
	now            func() time.Time
}

// newRouter monta as rotas do gateway:
//
//   - /healthz e /metrics respondem localmente
//   - /api/webhooks/* usa só o limiter de webhook (fora do pipeline)
//   - todo o resto passa pelo pipeline e vai para o upstream
func newRouter(d routerDeps) http.Handler {
	if d.now == nil {
		d.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	// roteia pelo path limpo ("//api/webhooks/x" cai em webhooks); o pipeline
	// limpa o próprio URL.Path antes de classificar
	r.Use(middleware.CleanPath)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": d.now().UTC().Format(time.RFC3339),
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	r.Handle("/api/webhooks/*", ratelimit.Middleware(ratelimit.Options{
		Limiter:             d.webhookLimiter,
		Stats:               d.stats,
		Name:                "webhook",
		AddRateLimitHeaders: true,
	})(d.upstream))

	r.Handle("/*", d.gate(d.upstream))
	return r
}
