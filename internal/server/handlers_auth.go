package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"convoai/internal/app"
	"convoai/pkg/domain"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many signup attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "auth.register", "fail", "reason", "invalid_json")
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "auth.login", "fail", "reason", "invalid_json")
		return
	}
	token, user, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.verifyLimiter, "too many verification attempts") {
		s.audit(r, "auth.verify", "rate_limited")
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" && r.Method == http.MethodPost {
		var req struct {
			Token string `json:"token"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "verification token required")
		return
	}
	user, err := s.app.VerifyEmail(r.Context(), token)
	if err != nil {
		s.audit(r, "auth.verify", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.verify", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.verifyLimiter, "too many verification attempts") {
		s.audit(r, "auth.resend", "rate_limited")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.ResendVerification(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	plans, err := s.app.ListPlans(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleMySubscription(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sub, err := s.app.ActiveSubscription(r.Context(), user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
