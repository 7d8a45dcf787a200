package session

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/johnmschoonover/tmplview/internal/diagnostics"
)

// Message is the envelope pushed to a display surface.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	// MessageTypeRender carries a RenderPayload: fresh or stale content
	// plus the mapped diagnostics for this render.
	MessageTypeRender = "render"
	// MessageTypeError carries an ErrorPayload and no renderable content:
	// either a transport failure or a first render that failed before any
	// output existed to fall back on.
	MessageTypeError = "error"
)

// RenderPayload is the renderable outcome of one render pass.
type RenderPayload struct {
	Rendered     string                   `json:"rendered"`
	Diagnostics  []diagnostics.Diagnostic `json:"diagnostics"`
	IsHTML       bool                     `json:"isHtml"`
	DurationMs   int64                    `json:"durationMs"`
	IsStale      bool                     `json:"isStale"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
}

// ErrorPayload reports a failure with nothing to display.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Presenter turns render outcomes into surface messages. With
// sanitization enabled, markup content is run through an HTML sanitizer
// before it reaches the surface.
type Presenter struct {
	policy *bluemonday.Policy
}

// NewPresenter creates a presenter. sanitize enables HTML sanitization of
// markup output.
func NewPresenter(sanitize bool) *Presenter {
	p := &Presenter{}
	if sanitize {
		p.policy = bluemonday.UGCPolicy()
	}
	return p
}

// Success builds the payload for a render that produced fresh output.
// Diagnostics may be non-empty: warnings accompany successful renders.
func (p *Presenter) Success(out Output, diags []diagnostics.Diagnostic, durationMs int64) Message {
	return Message{
		Type: MessageTypeRender,
		Payload: RenderPayload{
			Rendered:    p.content(out),
			Diagnostics: nonNil(diags),
			IsHTML:      out.IsMarkup,
			DurationMs:  durationMs,
			IsStale:     false,
		},
	}
}

// Stale builds the payload for a failed render backed by a previous
// success: the viewer keeps the last valid output, explicitly marked
// outdated, alongside the new error and diagnostics.
func (p *Presenter) Stale(last Output, diags []diagnostics.Diagnostic, durationMs int64, errorMessage string) Message {
	return Message{
		Type: MessageTypeRender,
		Payload: RenderPayload{
			Rendered:     p.content(last),
			Diagnostics:  nonNil(diags),
			IsHTML:       last.IsMarkup,
			DurationMs:   durationMs,
			IsStale:      true,
			ErrorMessage: errorMessage,
		},
	}
}

// Failure builds the payload for a failed render with no prior success.
func (p *Presenter) Failure(errorMessage string) Message {
	return Message{
		Type:    MessageTypeError,
		Payload: ErrorPayload{Message: errorMessage},
	}
}

// TransportFailure builds the payload for an engine process failure.
func (p *Presenter) TransportFailure(err error) Message {
	return Message{
		Type:    MessageTypeError,
		Payload: ErrorPayload{Message: err.Error()},
	}
}

func (p *Presenter) content(out Output) string {
	if out.IsMarkup && p.policy != nil {
		return p.policy.Sanitize(out.Content)
	}
	return out.Content
}

func nonNil(diags []diagnostics.Diagnostic) []diagnostics.Diagnostic {
	if diags == nil {
		return []diagnostics.Diagnostic{}
	}
	return diags
}
