package session

import (
	"sync"
	"time"

	"github.com/johnmschoonover/tmplview/internal/diagnostics"
	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
)

// Registry owns all live preview sessions, keyed by normalized template
// identity, and routes document change/save notifications to every
// session the document affects. At most one session exists per key.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	renderer  Renderer
	mapper    *diagnostics.Mapper
	store     *document.Store
	presenter *Presenter
	debounce  time.Duration
	logger    logging.Logger
}

// NewRegistry creates a registry. A non-positive debounce falls back to
// DefaultDebounce.
func NewRegistry(renderer Renderer, mapper *diagnostics.Mapper, store *document.Store, presenter *Presenter, debounce time.Duration, logger logging.Logger) *Registry {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		renderer:  renderer,
		mapper:    mapper,
		store:     store,
		presenter: presenter,
		debounce:  debounce,
		logger:    logger.WithComponent("session"),
	}
}

// Open creates the session for templatePath or reuses the existing one,
// binds the context document and display surface, and always forces a
// render: an explicit open must never be skipped by the change-detection
// optimization. A surface already attached to a reused session is closed
// and replaced.
func (r *Registry) Open(templatePath, contextPath string, markup bool, surface Surface) *Session {
	key := document.Key(templatePath)

	r.mu.Lock()
	s, exists := r.sessions[key]
	if !exists {
		s = &Session{
			key:          key,
			templatePath: templatePath,
			renderer:     r.renderer,
			mapper:       r.mapper,
			store:        r.store,
			presenter:    r.presenter,
			debounce:     r.debounce,
			logger:       r.logger,
			onDispose:    r.remove,
		}
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	previous := s.surface
	s.surface = surface
	s.contextPath = contextPath
	s.contextKey = ""
	if contextPath != "" {
		s.contextKey = document.Key(contextPath)
	}
	s.markup = markup
	s.mu.Unlock()

	if previous != nil && previous != surface {
		previous.Close()
	}

	r.logger.Info("preview opened", "template", templatePath, "context", contextPath, "reused", exists)
	s.ForceRender()
	return s
}

// Get returns the session for templatePath, if one is open.
func (r *Registry) Get(templatePath string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[document.Key(templatePath)]
	return s, ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RouteDocumentChange schedules a debounced render on every session that
// references path as its template or its context. A context document
// shared by several templates schedules all of their sessions.
func (r *Registry) RouteDocumentChange(path string) {
	for _, s := range r.matching(path) {
		s.ScheduleRender()
	}
}

// RouteDocumentSave handles an on-disk save. The render itself is still
// debounced and signature-checked: a save with unchanged content since
// the last render is a no-op.
func (r *Registry) RouteDocumentSave(path string) {
	r.RouteDocumentChange(path)
}

func (r *Registry) matching(path string) []*Session {
	key := document.Key(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Session
	for _, s := range r.sessions {
		s.mu.Lock()
		relevant := s.key == key || s.contextKey == key
		s.mu.Unlock()
		if relevant {
			matched = append(matched, s)
		}
	}
	return matched
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.key]; ok && current == s {
		delete(r.sessions, s.key)
	}
}

// DisposeAll tears down every session and waits for in-flight renders to
// drain. Used on server shutdown.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Dispose()
		s.renders.Wait()
	}
}
