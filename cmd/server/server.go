package main

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/teamtab/internal/auth"
	"github.com/mmynk/teamtab/internal/cache"
	"github.com/mmynk/teamtab/internal/metrics"
	"github.com/mmynk/teamtab/internal/middleware"
	"github.com/mmynk/teamtab/internal/notify"
	"github.com/mmynk/teamtab/internal/service"
	"github.com/mmynk/teamtab/internal/storage"
	"github.com/mmynk/teamtab/pkg/api/apiconnect"
)

type serverDeps struct {
	store   storage.Store
	hub     *notify.Hub
	events  notify.Publisher
	cache   cache.BalanceCache
	metrics *metrics.Metrics
	// jwt is nil when auth is disabled.
	jwt *auth.JWTManager
}

// newHandler mounts both Connect services plus /metrics and /healthz.
func newHandler(deps serverDeps) http.Handler {
	interceptors := []connect.Interceptor{middleware.LoggingInterceptor(deps.metrics)}
	if deps.jwt != nil {
		interceptors = append(interceptors, middleware.RequireAuth(deps.jwt))
	}
	opts := connect.WithInterceptors(interceptors...)

	mux := http.NewServeMux()

	teamPath, teamHandler := apiconnect.NewTeamServiceHandler(
		service.NewTeamService(deps.store, deps.events),
		opts,
	)
	mux.Handle(teamPath, teamHandler)

	ledgerPath, ledgerHandler := apiconnect.NewLedgerServiceHandler(
		service.NewLedgerService(deps.store, service.LedgerOptions{
			Cache:   deps.cache,
			Hub:     deps.hub,
			Events:  deps.events,
			Metrics: deps.metrics,
		}),
		opts,
	)
	mux.Handle(ledgerPath, ledgerHandler)

	if deps.metrics != nil {
		mux.Handle("GET /metrics", deps.metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return loggingMiddleware(corsMiddleware(mux))
}

// loggingMiddleware logs plain HTTP requests. RPCs are logged by the
// Connect interceptor.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, Teamtab-Field, Teamtab-Difference")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
