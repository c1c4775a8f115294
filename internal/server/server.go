// Package server exposes the chat endpoint and its companions over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"threex/internal/models"
)

// maxRequestBytes bounds a chat request body, images included.
const maxRequestBytes = 16 << 20

// Resolver maps model ids to backends.
type Resolver interface {
	Resolve(modelID string) (models.Model, error)
	Catalog() []models.CatalogEntry
	Enabled() []string
}

// Config holds server settings.
type Config struct {
	AllowedOrigins []string
}

// Server serves the chat API.
type Server struct {
	cfg      Config
	models   Resolver
	started  time.Time
	upgrader websocket.Upgrader
}

// New constructs a server over the given backends.
func New(cfg Config, resolver Resolver) *Server {
	s := &Server{
		cfg:     cfg,
		models:  resolver,
		started: time.Now(),
	}
	s.upgrader = newUpgrader(cfg.AllowedOrigins)
	return s
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return withRequestLogging(mux)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"models": s.models.Catalog()},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"status":    "ok",
			"providers": s.models.Enabled(),
			"uptime_s":  int64(time.Since(s.started).Seconds()),
		},
	})
}

// readChatRequest decodes and validates a request, resolving its model.
func (s *Server) readChatRequest(body io.Reader) (models.ChatRequest, models.Model, error) {
	var req models.ChatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, nil, &models.ValidationError{Field: "body", Problem: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := req.Validate(); err != nil {
		return req, nil, err
	}
	model, err := s.models.Resolve(req.Model)
	if err != nil {
		return req, nil, err
	}
	return req, model, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// requestStatus picks the HTTP status for a rejected request.
func requestStatus(err error) int {
	if models.IsValidationError(err) || errors.Is(err, models.ErrUnknownModel) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
