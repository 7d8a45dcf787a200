// Package session implements the preview session manager: one long-lived
// state machine per open template document, plus the registry that routes
// document events to the sessions they affect.
//
// A session owns its template/context association, the content signatures
// of the last successful render, a single pending debounce timer, and the
// last-known-good output used as fallback when a render fails. All render
// work happens off the caller's goroutine; session state is guarded by a
// mutex and a disposed session discards any in-flight result rather than
// delivering it to a closed surface.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/johnmschoonover/tmplview/internal/diagnostics"
	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
	"github.com/johnmschoonover/tmplview/internal/protocol"
)

// DefaultDebounce is the window within which rapid consecutive edits
// coalesce into a single render. A tuning constant, not a contract.
const DefaultDebounce = 200 * time.Millisecond

// Renderer is the session's view of the renderer client.
type Renderer interface {
	Render(ctx context.Context, templatePath, contextPath string) (*protocol.RenderResponse, error)
}

// Surface receives presentation payloads for one session. Send must be
// safe for concurrent use; Close releases the surface and is called
// exactly once, on disposal.
type Surface interface {
	Send(msg Message) error
	Close()
}

// Output is a successfully rendered result retained for stale fallback.
type Output struct {
	Content  string
	IsMarkup bool
}

// Session drives the render lifecycle for one open template preview.
type Session struct {
	key string

	mu           sync.Mutex
	templatePath string
	contextPath  string
	contextKey   string
	markup       bool
	templateSig  string
	contextSig   string
	timer        *time.Timer
	lastGood     *Output
	surface      Surface
	disposed     bool

	renderer  Renderer
	mapper    *diagnostics.Mapper
	store     *document.Store
	presenter *Presenter
	debounce  time.Duration
	logger    logging.Logger
	onDispose func(*Session)

	// renders lets tests and DisposeAll wait for in-flight work.
	renders sync.WaitGroup
}

// Key returns the session's normalized template identity.
func (s *Session) Key() string {
	return s.key
}

// TemplatePath returns the template document path the session renders.
func (s *Session) TemplatePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templatePath
}

// ContextPath returns the currently bound context document path, or "".
func (s *Session) ContextPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextPath
}

// SetContext rebinds the session's context document and forces a render.
func (s *Session) SetContext(contextPath string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.contextPath = contextPath
	s.contextKey = ""
	if contextPath != "" {
		s.contextKey = document.Key(contextPath)
	}
	s.mu.Unlock()

	s.ForceRender()
}

// ForceRender renders regardless of whether content signatures changed.
// Explicit opens and context rebinds use it; change notifications go
// through ScheduleRender instead.
func (s *Session) ForceRender() {
	s.startRender(true)
}

// ScheduleRender arms the debounce timer. At most one timer is pending
// per session: each call cancels and reschedules the previous one, so a
// burst of edits produces a single render once the window elapses.
func (s *Session) ScheduleRender() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if s.timer == t {
			s.timer = nil
		}
		s.mu.Unlock()
		s.startRender(false)
	})
	s.timer = t
}

// Dispose tears the session down: cancels any pending timer, closes the
// surface, and removes the session from its registry. Terminal; further
// triggers are ignored. An in-flight render is not cancelled, but its
// result is discarded instead of being delivered.
func (s *Session) Dispose() {
	s.dispose(nil)
}

// DisposeIfSurface disposes the session only while surface is still the
// one attached to it. A connection whose surface was replaced by a newer
// open of the same template must not tear the session down on its way
// out; the session now belongs to the replacement.
func (s *Session) DisposeIfSurface(surface Surface) {
	s.dispose(surface)
}

func (s *Session) dispose(onlyFor Surface) {
	s.mu.Lock()
	if s.disposed || (onlyFor != nil && s.surface != onlyFor) {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	surface := s.surface
	s.surface = nil
	s.mu.Unlock()

	if surface != nil {
		surface.Close()
	}
	if s.onDispose != nil {
		s.onDispose(s)
	}
	s.logger.Debug("session disposed", "key", s.key)
}

func (s *Session) startRender(forced bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.renders.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.renders.Done()
		s.render(forced)
	}()
}

// render executes one render pass: signature check, engine invocation,
// diagnostic mapping, payload emission. Signatures are read fresh at
// invocation time, so a trigger that fires while another render is in
// flight self-corrects: the later pass sees the later content.
func (s *Session) render(forced bool) {
	s.mu.Lock()
	templatePath := s.templatePath
	contextPath := s.contextPath
	markup := s.markup
	s.mu.Unlock()

	templateSig, err := s.store.ContentSignature(templatePath)
	if err != nil {
		// Unreadable template: let the engine report it as a render
		// failure so the surface shows something actionable.
		templateSig = ""
	}
	contextSig := ""
	if contextPath != "" {
		contextSig, _ = s.store.ContentSignature(contextPath)
	}

	if !forced {
		s.mu.Lock()
		unchanged := templateSig != "" &&
			templateSig == s.templateSig && contextSig == s.contextSig
		s.mu.Unlock()
		if unchanged {
			s.logger.Debug("render skipped, content unchanged", "key", s.key)
			return
		}
	}

	resp, err := s.renderer.Render(context.Background(), templatePath, contextPath)
	if err != nil {
		// Transport failure: nothing the engine said can be trusted.
		s.mapper.Clear(templatePath, contextPath)
		s.logger.Error(err, "engine invocation failed", "key", s.key)
		s.deliver(s.presenter.TransportFailure(err))
		return
	}

	mapped := s.mapper.Publish(templatePath, contextPath, resp.Diagnostics)

	if resp.Error == "" {
		out := Output{Content: resp.Rendered, IsMarkup: markup}
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return
		}
		s.templateSig = templateSig
		s.contextSig = contextSig
		s.lastGood = &out
		s.mu.Unlock()
		s.deliver(s.presenter.Success(out, mapped, resp.DurationMs))
		return
	}

	s.mu.Lock()
	lastGood := s.lastGood
	s.mu.Unlock()

	if lastGood != nil {
		s.deliver(s.presenter.Stale(*lastGood, mapped, resp.DurationMs, resp.Error))
		return
	}
	s.deliver(s.presenter.Failure(resp.Error))
}

// deliver sends a payload unless the session was disposed meanwhile.
func (s *Session) deliver(msg Message) {
	s.mu.Lock()
	surface := s.surface
	disposed := s.disposed
	s.mu.Unlock()

	if disposed || surface == nil {
		s.logger.Debug("render result discarded after disposal", "key", s.key)
		return
	}
	if err := surface.Send(msg); err != nil {
		s.logger.Warn("surface send failed", "key", s.key, "error", err.Error())
	}
}
