// Package server exposes the HTTP API. Handlers stay thin: decode, call the
// application core, map errors to statuses.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"convoai/internal/app"
	"convoai/internal/quota"
	"convoai/internal/ratelimit"
	"convoai/internal/util"
	"convoai/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	Redis                      *redis.Client
	TrustedProxies             *util.TrustedProxies
	CORSOrigin                 string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	VerifyRateLimitPerMinute   int
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trusted         *util.TrustedProxies
	corsOrigin      string
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	verifyLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("server: redis client required")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	verifyLimit := cfg.VerifyRateLimitPerMinute
	if verifyLimit <= 0 {
		verifyLimit = 20
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	verifyLimiter, err := newLimiter("verify", verifyLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		trusted:         cfg.TrustedProxies,
		corsOrigin:      cfg.CORSOrigin,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		verifyLimiter:   verifyLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware stack applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	h = util.WithCORS(s.corsOrigin, h)
	return util.WithSecurityHeaders(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/verify-email", s.handleVerifyEmail)
	s.mux.HandleFunc("/api/auth/resend-verification", s.handleResendVerification)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// chat
	s.mux.Handle("/api/chat", s.authenticated(s.handleChat))
	s.mux.Handle("/api/chat/stream", s.authenticated(s.handleChatStream))

	// conversations
	s.mux.Handle("/api/conversations", s.authenticated(s.handleConversations))
	s.mux.Handle("/api/conversations/", s.authenticated(s.handleConversationByID))

	// subscriptions
	s.mux.HandleFunc("/api/subscriptions/plans", s.handlePlans)
	s.mux.Handle("/api/subscriptions/me", s.authenticated(s.handleMySubscription))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.token", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			s.audit(r, "auth.token", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter.Allow(s.clientIP(r)) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
		return "", false
	}
	return authHeader[len(prefix):], true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors to HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var denied *app.QuotaDeniedError
	var genErr *app.GenerationError
	switch {
	case errors.Is(err, app.ErrInvalidEmail),
		errors.Is(err, app.ErrWeakPassword),
		errors.Is(err, app.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrEmailNotVerified),
		errors.Is(err, app.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &denied):
		if denied.Decision.Reason == quota.ReasonNoSubscription {
			writeError(w, http.StatusPaymentRequired, denied.Error())
			return
		}
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, denied.Error())
	case errors.As(err, &genErr):
		writeError(w, http.StatusInternalServerError, "generation failed")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
