// Package http exposes the JSON surface around the engine. Authentication
// lives in a fronting proxy; the owner arrives in the X-Owner-ID header.
// Before any handler runs, the engine performs its best-effort catch-up pass
// for that owner; failures there are logged and swallowed, never surfaced.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"kopilka/internal/clock"
	"kopilka/internal/services"
	"kopilka/internal/storage"
)

// OwnerHeader names the header carrying the authenticated owner ID.
const OwnerHeader = "X-Owner-ID"

type contextKey string

const (
	ownerKey     contextKey = "owner_id"
	requestIDKey contextKey = "request_id"
)

type Server struct {
	storage *storage.Repository
	engine  *services.Engine
	ledger  *services.Ledger
	debts   *services.DebtService
	clock   clock.Clock
	limiter *rateLimiter
	mux     *http.ServeMux
}

func NewServer(storage *storage.Repository, engine *services.Engine, ledger *services.Ledger, debts *services.DebtService, clk clock.Clock) *Server {
	s := &Server{
		storage: storage,
		engine:  engine,
		ledger:  ledger,
		clock:   clk,
		debts:   debts,
		limiter: newRateLimiter(0),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Close releases background resources held by the server's middleware.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("GET /api/notifications", s.owned(s.handleListNotifications))
	s.mux.Handle("POST /api/notifications/{id}/read", s.owned(s.handleMarkNotificationRead))
	s.mux.Handle("POST /api/notifications/read-all", s.owned(s.handleMarkAllNotificationsRead))

	s.mux.Handle("GET /api/achievements", s.owned(s.handleListAchievements))

	s.mux.Handle("GET /api/accounts", s.owned(s.handleListAccounts))
	s.mux.Handle("POST /api/accounts", s.owned(s.handleCreateAccount))

	s.mux.Handle("GET /api/transactions", s.owned(s.handleListTransactions))
	s.mux.Handle("POST /api/transactions", s.owned(s.handleCreateTransaction))
	s.mux.Handle("PUT /api/transactions/{id}", s.owned(s.handleUpdateTransaction))
	s.mux.Handle("DELETE /api/transactions/{id}", s.owned(s.handleDeleteTransaction))

	s.mux.Handle("GET /api/recurring", s.owned(s.handleListRules))
	s.mux.Handle("POST /api/recurring", s.owned(s.handleCreateRule))
	s.mux.Handle("DELETE /api/recurring/{id}", s.owned(s.handleDeleteRule))

	s.mux.Handle("POST /api/debts/{id}/payments", s.owned(s.handleRegisterDebtPayment))
}

func (s *Server) Handler() http.Handler {
	return s.trace(secureHeaders(s.mux))
}

// secureHeaders applies the standard hardening headers. The API serves JSON
// only, so the policy can be strict.
func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// owned authenticates the owner header and triggers the engine pass before
// the handler's own work.
func (s *Server) owned(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := strconv.ParseInt(r.Header.Get(OwnerHeader), 10, 64)
		if err != nil || ownerID <= 0 {
			respondError(w, http.StatusUnauthorized, "missing or invalid "+OwnerHeader+" header")
			return
		}

		if !s.limiter.allow(ownerID) {
			respondRateLimited(w)
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, ownerID)

		// Best-effort background maintenance; the engine logs and swallows
		// its own failures.
		s.engine.RunForOwner(ctx, ownerID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// trace assigns a request ID and logs every request with timing.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r.WithContext(ctx))

		slog.InfoContext(ctx, "Request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ownerFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ownerKey).(int64)
	return id
}
