package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to News Chatbot API",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.chat.CreateSession(r.Context())
	if err != nil {
		log.Printf("[server] failed to create session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(w, http.StatusOK, id)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.requireSession(w, r, sessionID) {
		return
	}

	messages, err := s.chat.Messages(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] failed to read session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.requireSession(w, r, sessionID) {
		return
	}

	if err := s.chat.Clear(r.Context(), sessionID); err != nil {
		log.Printf("[server] failed to clear session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Session cleared successfully"})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.requireSession(w, r, sessionID) {
		return
	}

	var payload messageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	assistant, err := s.chat.ProcessMessage(r.Context(), sessionID, payload.Content)
	if err != nil {
		log.Printf("[server] failed to process message for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	respondJSON(w, http.StatusOK, assistant)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	if _, err := s.pipeline.Run(r.Context()); err != nil {
		log.Printf("[server] ingestion failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "News ingestion completed successfully"})
}

// requireSession writes a 404 and returns false when the session is unknown.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	exists, err := s.chat.Exists(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] failed to check session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "failed to check session")
		return false
	}
	if !exists {
		respondError(w, http.StatusNotFound, "Session not found")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
