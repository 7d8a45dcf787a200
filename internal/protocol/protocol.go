// Package protocol defines the wire contract between the preview system
// and the rendering engine process.
//
// The engine is invoked with a template path and an optional context path
// and writes a single JSON RenderResponse to stdout when it exits. A
// non-zero exit code is a transport failure and is distinct from the
// Error field being set: template-level failures (parse errors, execution
// errors) exit zero with Error populated so the caller can still read the
// diagnostics that accompany them.
package protocol

// Severity classifies an engine-reported diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single engine-reported problem. Line and Column are
// 1-based when present; zero means the engine did not determine them and
// the location may instead be embedded in the message text.
type Diagnostic struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

// RenderRequest describes one engine invocation.
type RenderRequest struct {
	TemplatePath string `json:"templatePath"`
	ContextPath  string `json:"contextPath,omitempty"`
}

// RenderResponse is the engine's reply. Error being non-empty signals an
// engine-level failure independent of the diagnostics list; both may be
// present at once.
type RenderResponse struct {
	Rendered    string       `json:"rendered,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	DurationMs  int64        `json:"durationMs"`
	Error       string       `json:"error,omitempty"`
}
