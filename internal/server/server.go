// Package server exposes the preview display surface: an HTTP server
// with a per-template preview page, a WebSocket endpoint that streams
// render payloads, and a document overlay endpoint through which editors
// push unsaved buffer content.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/johnmschoonover/tmplview/internal/config"
	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
	"github.com/johnmschoonover/tmplview/internal/session"
)

const shutdownTimeout = 5 * time.Second

// PreviewServer serves the display surface for all preview sessions.
type PreviewServer struct {
	cfg      *config.Config
	registry *session.Registry
	store    *document.Store
	contexts *config.ContextResolver
	logger   logging.Logger
	http     *http.Server

	// Reveal, when set, is invoked for diagnostic.select interactions
	// instead of the default logging behavior.
	Reveal RevealFunc
}

// New creates a preview server.
func New(cfg *config.Config, registry *session.Registry, store *document.Store, contexts *config.ContextResolver, logger logging.Logger) *PreviewServer {
	s := &PreviewServer{
		cfg:      cfg,
		registry: registry,
		store:    store,
		contexts: contexts,
		logger:   logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /preview", s.handlePreviewPage)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /documents", s.handleDocumentUpdate)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Addr returns the configured listen address.
func (s *PreviewServer) Addr() string {
	return s.http.Addr
}

// Run serves until ctx is done, then shuts down gracefully and disposes
// all sessions.
func (s *PreviewServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.registry.DisposeAll()
	return err
}

// documentUpdate is the overlay push from an editor. Saved updates clear
// the overlay (disk is now authoritative); unsaved ones replace it.
type documentUpdate struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Saved   bool   `json:"saved"`
}

func (s *PreviewServer) handleDocumentUpdate(w http.ResponseWriter, r *http.Request) {
	var update documentUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&update); err != nil {
		http.Error(w, "malformed document update", http.StatusBadRequest)
		return
	}
	if update.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	if update.Saved {
		s.store.ClearOverlay(update.Path)
		s.registry.RouteDocumentSave(update.Path)
	} else {
		s.store.SetOverlay(update.Path, []byte(update.Content))
		s.registry.RouteDocumentChange(update.Path)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}
