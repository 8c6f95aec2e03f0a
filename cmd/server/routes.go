package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-waf/veil-edge/internal/auth"
	"github.com/veil-waf/veil-edge/internal/edge"
	"github.com/veil-waf/veil-edge/internal/handlers"
	"github.com/veil-waf/veil-edge/internal/metrics"
	"github.com/veil-waf/veil-edge/internal/ratelimit"
	"github.com/veil-waf/veil-edge/internal/ws"
)

// edgeRouter sends every request, whatever its method or path, through the
// classifier to the origin.
func edgeRouter(h *edge.Handler, origin http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	protected := h.Wrap(origin)
	r.NotFound(protected.ServeHTTP)
	r.MethodNotAllowed(protected.ServeHTTP)
	r.Handle("/*", protected)
	return r
}

type opsDeps struct {
	opsToken  string
	limiter   *ratelimit.Limiter
	collector *metrics.Collector
	stream    *handlers.StreamHandler
	dashboard *handlers.DashboardHandler
	sockets   *ws.Manager
}

// opsRouter serves health, metrics and the decision feeds.
func opsRouter(d opsDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})

	r.With(d.limiter.Middleware("metrics")).Handle("/metrics", d.collector.Handler())

	r.With(auth.RequireToken(d.opsToken), d.limiter.Middleware("ws")).Method(http.MethodGet, "/ws", d.sockets)

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.RequireToken(d.opsToken))

		api.With(d.limiter.Middleware("api")).Get("/stats", d.dashboard.GetStats)
		api.With(d.limiter.Middleware("api")).Get("/decisions", d.dashboard.GetDecisions)
		api.With(d.limiter.Middleware("stream")).Get("/stream/events", d.stream.HandleSSE)
	})

	return r
}
