// Package api exposes the jdc backend over HTTP: workspace CRUD,
// replace-all item sync, label extraction, and the streaming chat
// endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/llm"
	"github.com/pbaille/jdc/internal/logging"
	"github.com/pbaille/jdc/internal/store"
)

// Server handles HTTP requests for the JD workspace API
type Server struct {
	store     *store.Store
	providers *llm.Registry
	addr      string
	logger    *slog.Logger
}

// New creates a new API server
func New(s *store.Store, providers *llm.Registry, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{store: s, providers: providers, addr: addr, logger: logger}
}

// Handler builds the route table. Split from Run so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Workspaces
	mux.HandleFunc("GET /jd-sets", s.listSets)
	mux.HandleFunc("POST /jd-sets", s.createSet)
	mux.HandleFunc("GET /jd-sets/{id}", s.getSet)
	mux.HandleFunc("PUT /jd-sets/{id}", s.renameSet)
	mux.HandleFunc("DELETE /jd-sets/{id}", s.deleteSet)
	mux.HandleFunc("PUT /jd-sets/{id}/items", s.syncItems)

	// AI
	mux.HandleFunc("POST /labels/extract", s.extractLabel)
	mux.HandleFunc("POST /chat/stream", s.streamChat)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("starting server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.store.ListSets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sets == nil {
		sets = []domain.WorkspaceSummary{}
	}
	writeJSON(w, http.StatusOK, sets)
}

// CreateSetRequest is the request body for creating a workspace
type CreateSetRequest struct {
	Name *string `json:"name"`
}

func (s *Server) createSet(w http.ResponseWriter, r *http.Request) {
	var req CreateSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}

	detail, err := s.store.CreateSet(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) getSet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetSet(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RenameSetRequest is the request body for renaming a workspace
type RenameSetRequest struct {
	Name string `json:"name"`
}

func (s *Server) renameSet(w http.ResponseWriter, r *http.Request) {
	var req RenameSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	detail, err := s.store.RenameSet(r.PathValue("id"), req.Name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) deleteSet(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSet(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SyncItemsRequest is the replace-all item payload
type SyncItemsRequest struct {
	Items []domain.ItemSnapshot `json:"items"`
}

func (s *Server) syncItems(w http.ResponseWriter, r *http.Request) {
	var req SyncItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.store.ReplaceItems(r.PathValue("id"), req.Items)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ExtractLabelRequest is the request body for label extraction
type ExtractLabelRequest struct {
	Text     string          `json:"text"`
	Provider domain.Provider `json:"provider"`
}

func (s *Server) extractLabel(w http.ResponseWriter, r *http.Request) {
	var req ExtractLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider, err := s.providers.Get(domain.ParseProvider(string(req.Provider)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := provider.ExtractLabel(r.Context(), req.Text)
	if err != nil {
		s.logger.Debug("label extraction failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}

	provider, err := s.providers.Get(domain.ParseProvider(string(req.Provider)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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

	if req.JDSetID != nil {
		if _, err := s.store.AppendMessage(*req.JDSetID, string(domain.RoleUser), req.UserMessage); err != nil {
			s.logger.Debug("persist user message failed", "error", err)
		}
	}

	parts := llm.BuildPromptParts(req)
	var full strings.Builder
	streamErr := provider.StreamChat(r.Context(), parts, func(token string) {
		writeFrame(w, map[string]any{"token": token})
		flusher.Flush()
		full.WriteString(token)
	})
	if streamErr != nil {
		writeFrame(w, map[string]any{"error": streamErr.Error()})
		flusher.Flush()
		return
	}

	writeFrame(w, map[string]any{"done": true})
	flusher.Flush()

	if req.JDSetID != nil && full.Len() > 0 {
		if _, err := s.store.AppendMessage(*req.JDSetID, string(domain.RoleAssistant), full.String()); err != nil {
			s.logger.Debug("persist assistant message failed", "error", err)
		}
	}
}

func writeFrame(w http.ResponseWriter, frame map[string]any) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
