package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/johnmschoonover/tmplview/internal/diagnostics"
	"github.com/johnmschoonover/tmplview/internal/session"
)

const (
	// Time allowed to write a message to the surface.
	writeWait = 10 * time.Second

	// Inbound surface messages are rate limited; the surface only sends
	// user-driven interactions, so this is generous.
	inboundRate  = rate.Limit(20)
	inboundBurst = 40
)

// surfaceMessage is the envelope for messages from the display surface.
type surfaceMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// diagnosticSelect asks the host to reveal a diagnostic's location in the
// corresponding source document.
type diagnosticSelect struct {
	Line      int                `json:"line"`
	Character int                `json:"character"`
	Source    diagnostics.Source `json:"source"`
}

// contextSet rebinds the session's context document.
type contextSet struct {
	Path string `json:"path"`
}

// RevealFunc is invoked when the surface selects a diagnostic. The
// default implementation logs the resolved location; an embedding host
// can point this at its editor.
type RevealFunc func(path string, line, character int)

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	templatePath := r.URL.Query().Get("template")
	if templatePath == "" {
		http.Error(w, "template query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err.Error())
		return
	}

	contextPath := r.URL.Query().Get("context")
	if contextPath == "" {
		contextPath = s.contexts.Resolve(templatePath)
	}

	surface := &wsSurface{conn: conn}
	sess := s.registry.Open(templatePath, contextPath, s.cfg.IsMarkup(templatePath), surface)

	s.readLoop(r.Context(), conn, sess)
	// A reload or duplicate tab replaces this surface through Open; only
	// the connection still owning the session may tear it down.
	sess.DisposeIfSurface(surface)
}

// originPatterns returns the host patterns coder/websocket accepts
// cross-origin upgrades from, beyond the server's own host.
func (s *PreviewServer) originPatterns() []string {
	patterns := []string{
		fmt.Sprintf("localhost:%d", s.cfg.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port),
	}
	return append(patterns, s.cfg.Server.AllowedOrigins...)
}

// readLoop consumes surface messages until the connection drops.
func (s *PreviewServer) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	limiter := rate.NewLimiter(inboundRate, inboundBurst)

	for {
		var msg surfaceMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if !limiter.Allow() {
			s.logger.Warn("surface message rate limit exceeded", "session", sess.Key())
			continue
		}
		s.handleSurfaceMessage(sess, msg)
	}
}

func (s *PreviewServer) handleSurfaceMessage(sess *session.Session, msg surfaceMessage) {
	switch msg.Type {
	case "diagnostic.select":
		var sel diagnosticSelect
		if err := json.Unmarshal(msg.Payload, &sel); err != nil {
			s.logger.Warn("malformed diagnostic.select payload", "session", sess.Key())
			return
		}
		path := sess.TemplatePath()
		if sel.Source == diagnostics.SourceContext && sess.ContextPath() != "" {
			path = sess.ContextPath()
		}
		s.reveal(path, sel.Line, sel.Character)
	case "context.set":
		var set contextSet
		if err := json.Unmarshal(msg.Payload, &set); err != nil {
			s.logger.Warn("malformed context.set payload", "session", sess.Key())
			return
		}
		sess.SetContext(set.Path)
	default:
		s.logger.Debug("ignoring unknown surface message", "type", msg.Type)
	}
}

func (s *PreviewServer) reveal(path string, line, character int) {
	if s.Reveal != nil {
		s.Reveal(path, line, character)
		return
	}
	s.logger.Info("diagnostic selected", "path", path, "line", line, "character", character)
}

// wsSurface adapts a websocket connection to the session.Surface
// contract. Writes are serialized; wsjson does not allow concurrent
// writers on one connection.
type wsSurface struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ session.Surface = (*wsSurface)(nil)

func (ws *wsSurface) Send(msg session.Message) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return wsjson.Write(ctx, ws.conn, msg)
}

func (ws *wsSurface) Close() {
	_ = ws.conn.Close(websocket.StatusNormalClosure, "session disposed")
}
