// Package server exposes the REST and websocket API: documents and their
// chat threads, the memory confirmation surface, the admin config/skill/
// template CRUD, asset catalogs, and file upload/download.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coscribe/pkg/model"
	"coscribe/pkg/runner"
	"coscribe/pkg/store"
)

// Server serves the REST API and chat websocket.
type Server struct {
	stores   runner.Stores
	sel      store.SelectionStore
	files    store.FileStore
	provider model.Provider
	runner   *runner.Runner
	srv      *http.Server
}

// New creates a new Server.
func New(
	stores runner.Stores,
	sel store.SelectionStore,
	files store.FileStore,
	provider model.Provider,
	r *runner.Runner,
) *Server {
	return &Server{
		stores:   stores,
		sel:      sel,
		files:    files,
		provider: provider,
		runner:   r,
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Documents
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/documents", s.handleCreateDocument)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("PUT /api/documents/{id}/content", s.handleSetDocumentContent)
	mux.HandleFunc("POST /api/documents/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("POST /api/documents/{id}/clear-pending", s.handleClearPending)
	mux.HandleFunc("GET /api/documents/{id}/messages", s.handleListMessages)

	// Selections
	mux.HandleFunc("POST /api/documents/{id}/selections", s.handleCreateSelection)
	mux.HandleFunc("GET /api/documents/{id}/selections", s.handleListSelections)
	mux.HandleFunc("POST /api/selections/{id}/status", s.handleSetSelectionStatus)

	// Memories
	mux.HandleFunc("GET /api/memories", s.handleListConfirmedMemories)
	mux.HandleFunc("GET /api/documents/{id}/memories/pending", s.handleListPendingMemories)
	mux.HandleFunc("POST /api/memories/{id}/confirm", s.handleConfirmMemory)
	mux.HandleFunc("POST /api/memories/{id}/reject", s.handleRejectMemory)

	// Admin: agent configs, skills, templates
	mux.HandleFunc("GET /api/agent-configs", s.handleListConfigs)
	mux.HandleFunc("POST /api/agent-configs", s.handleCreateConfig)
	mux.HandleFunc("GET /api/agent-configs/{id}", s.handleGetConfig)
	mux.HandleFunc("PUT /api/agent-configs/{id}", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/agent-configs/{id}/archive", s.handleArchiveConfig)
	mux.HandleFunc("POST /api/agent-configs/{id}/restore", s.handleRestoreConfig)
	mux.HandleFunc("GET /api/agent-configs/{id}/skills", s.handleListSkills)
	mux.HandleFunc("POST /api/agent-configs/{id}/skills", s.handleCreateSkill)
	mux.HandleFunc("PUT /api/skills/{id}", s.handleUpdateSkill)
	mux.HandleFunc("POST /api/skills/{id}/archive", s.handleArchiveSkill)
	mux.HandleFunc("POST /api/skills/{id}/restore", s.handleRestoreSkill)
	mux.HandleFunc("GET /api/skills/{id}/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/skills/{id}/templates", s.handleCreateTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)

	// Asset catalogs
	mux.HandleFunc("GET /api/avatars", s.handleListAvatars)
	mux.HandleFunc("POST /api/avatars/seed", s.handleSeedAvatars)
	mux.HandleFunc("GET /api/scene-layouts", s.handleListSceneLayouts)
	mux.HandleFunc("POST /api/scene-layouts/seed", s.handleSeedSceneLayouts)

	// Files
	mux.HandleFunc("POST /api/files", s.handleUploadFile)
	mux.HandleFunc("GET /api/files/{id}", s.handleDownloadFile)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// WebSocket
	mux.HandleFunc("/api/documents/{id}/chat", s.handleChatWebSocket)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.corsMiddleware(mux),
	}

	slog.Info("Starting API server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// userID extracts the caller identity. Authentication is handled upstream;
// the proxy forwards the identity in this header.
func (s *Server) userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := s.userID(r)
	if uid == "" {
		s.jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "missing X-User-ID header"})
		return "", false
	}
	return uid, true
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// storeError maps store sentinels to HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrDuplicateSlug):
		s.errorResponse(w, http.StatusConflict, err)
	default:
		s.errorResponse(w, http.StatusInternalServerError, err)
	}
}
