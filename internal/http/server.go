// Package http exposes the dashboard as a JSON API with a server-sent
// event feed.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"paydeck/internal/auth"
	"paydeck/internal/cache"
	"paydeck/internal/feed"
	"paydeck/internal/log"
	"paydeck/internal/middleware/ratelimit"
	"paydeck/internal/middleware/trace"
	"paydeck/internal/services"
)

type Server struct {
	http.Server

	ledger *services.Ledger
	auth   *auth.Manager
	hub    *feed.Hub
	logger *log.Logger

	statsCache  *cache.LRU[statsResponse]
	sweepCancel context.CancelFunc
	limiter     *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger *services.Ledger, authMgr *auth.Manager, hub *feed.Hub, requestsPerMinute int, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           nil, // set below, after middleware wrapping
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:     ledger,
		auth:       authMgr,
		hub:        hub,
		logger:     logger,
		statsCache: cache.NewLRU[statsResponse](500, 5*time.Minute),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: requestsPerMinute}),
		tracer:     trace.NewMiddleware(clientIP),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	authed := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}
	mux.Handle("GET /api/transactions", authed(s.handleSnapshot))
	mux.Handle("GET /api/stats", authed(s.handleStats))
	mux.Handle("GET /api/feed", authed(s.handleFeed))

	mux.Handle("POST /api/incomes", authed(s.handleCreateIncome))
	mux.Handle("PATCH /api/incomes/{id}", authed(s.handleUpdateIncome))
	mux.Handle("POST /api/incomes/{id}/received", authed(s.handleReceived))
	mux.Handle("DELETE /api/incomes/{id}", authed(s.handleDeleteIncome))

	mux.Handle("POST /api/expenses", authed(s.handleCreateExpense))
	mux.Handle("PATCH /api/expenses/{id}", authed(s.handleUpdateExpense))
	mux.Handle("POST /api/expenses/{id}/funded", authed(s.handleFunded))
	mux.Handle("DELETE /api/expenses/{id}", authed(s.handleDeleteExpense))

	handler := securityHeaders(mux)
	handler = s.limitMutations(handler)
	handler = s.tracer.Middleware(handler)
	s.Server.Handler = handler

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	s.sweepCancel = sweepCancel
	s.statsCache.StartSweeper(sweepCtx, time.Minute)

	return s
}

// limitMutations rate-limits writes per client IP. Reads pass through.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodDelete:
			if !s.limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// InvalidateStats drops the cached stats response for a user. Local
// mutations invalidate through their handlers; this is for mutations
// that happened on another node.
func (s *Server) InvalidateStats(userID string) {
	s.statsCache.Delete(userID)
}

// Shutdown stops the HTTP server and the background middleware
// goroutines. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.sweepCancel()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
