package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"convoai/internal/app"
	"convoai/pkg/domain"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAppError(w, app.ErrEmptyMessage)
		return
	}
	result, err := s.app.Chat(r.Context(), user, req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleChatStream responds with Server-Sent Events: one metadata frame, the
// generated chunks, and a terminal complete or error frame. Admission and
// validation failures surface as plain JSON errors before the stream starts.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAppError(w, app.ErrEmptyMessage)
		return
	}
	events, err := s.app.ChatStream(r.Context(), user, req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; drain so the producer can roll back
			// and exit.
			for range events {
			}
			return
		}
		flusher.Flush()
	}
}
