package server

import (
	"net/http"
	"strconv"
	"strings"

	"convoai/pkg/domain"
)

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		convs, err := s.app.ListConversations(r.Context(), user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		conv, err := s.app.CreateConversation(r.Context(), user, req.Title)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	if idStr == "" || strings.Contains(idStr, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		conv, err := s.app.GetConversation(r.Context(), user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	case http.MethodPatch:
		var req struct {
			Title string `json:"title"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if err := s.app.RenameConversation(r.Context(), user, id, req.Title); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.app.DeleteConversation(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
