// Package diagnostics converts engine-reported diagnostics into
// per-document preview diagnostics and maintains the index the editor UI
// reads them from.
//
// The engine reports locations two ways: structured file/line/column
// fields, or a location prefix embedded in the message text of the form
// "template: <name>:<line>[:<column>]: <message>". Both are supported;
// the prefix form is best-effort and coupled to the Go template engine's
// error format, so diagnostics that match neither still surface at line
// zero of the template document rather than being dropped.
package diagnostics

import (
	"regexp"
	"strconv"

	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/protocol"
)

// Source identifies which of a session's two documents a diagnostic
// belongs to.
type Source string

const (
	SourceTemplate Source = "template"
	SourceContext  Source = "context"
)

// Diagnostic is a mapped, display-ready diagnostic. Line is 0-based and
// always set (defaulting to 0 when the engine gave no location).
// Character is 0-based and nil when the engine only identified a line, in
// which case the display range spans the whole line.
type Diagnostic struct {
	Message   string            `json:"message"`
	Severity  protocol.Severity `json:"severity"`
	Line      int               `json:"line"`
	Character *int              `json:"character,omitempty"`
	Source    Source            `json:"source"`
}

// messageLocation matches the Go template engine's error prefix:
// "template: name:line: msg" or "template: name:line:col: msg". The name
// is the template's base file name and may itself contain dots.
var messageLocation = regexp.MustCompile(`^template: (.+?):(\d+)(?::(\d+))?: ?(.*)$`)

// Mapper maps engine diagnostics onto the template/context documents of a
// session and publishes them to a shared per-document index.
type Mapper struct {
	index *Index
}

// NewMapper creates a mapper publishing into index. A nil index is
// replaced with a fresh one.
func NewMapper(index *Index) *Mapper {
	if index == nil {
		index = NewIndex()
	}
	return &Mapper{index: index}
}

// Index returns the per-document index this mapper publishes into.
func (m *Mapper) Index() *Index {
	return m.index
}

// Map converts engine diagnostics for a render of templatePath (and
// optionally contextPath) into preview diagnostics. Every input produces
// exactly one output. Map is pure; use Publish to also update the index.
func (m *Mapper) Map(templatePath, contextPath string, in []protocol.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(in))
	for _, d := range in {
		out = append(out, mapOne(templatePath, contextPath, d))
	}
	return out
}

// Publish maps the diagnostics and replaces the index entries for both of
// the session's documents wholesale. A document that stopped producing
// diagnostics therefore stops showing them: publishing an empty list
// clears everything previously recorded for both documents.
func (m *Mapper) Publish(templatePath, contextPath string, in []protocol.Diagnostic) []Diagnostic {
	mapped := m.Map(templatePath, contextPath, in)

	byTemplate := make([]Diagnostic, 0)
	byContext := make([]Diagnostic, 0)
	for _, d := range mapped {
		if d.Source == SourceContext {
			byContext = append(byContext, d)
		} else {
			byTemplate = append(byTemplate, d)
		}
	}

	m.index.Replace(templatePath, byTemplate)
	if contextPath != "" {
		m.index.Replace(contextPath, byContext)
	}
	return mapped
}

// Clear drops all recorded diagnostics for the session's documents. Used
// when a transport failure means none of the previous diagnostics can be
// trusted.
func (m *Mapper) Clear(templatePath, contextPath string) {
	m.index.Replace(templatePath, nil)
	if contextPath != "" {
		m.index.Replace(contextPath, nil)
	}
}

func mapOne(templatePath, contextPath string, d protocol.Diagnostic) Diagnostic {
	source := resolveSource(templatePath, contextPath, d.File)

	message := d.Message
	line := d.Line
	column := d.Column

	// The engine sometimes reports location only inside the message.
	if line <= 0 {
		if parsedLine, parsedColumn, rest, ok := parseMessageLocation(message); ok {
			line = parsedLine
			column = parsedColumn
			message = rest
		}
	}

	mapped := Diagnostic{
		Message:  message,
		Severity: d.Severity,
		Source:   source,
	}
	if line >= 1 {
		mapped.Line = line - 1
	}
	if column >= 1 {
		character := column - 1
		mapped.Character = &character
	}
	return mapped
}

// resolveSource matches the engine's file hint against the session's two
// documents. No hint, or a hint naming some other file, resolves to the
// template document.
func resolveSource(templatePath, contextPath, hint string) Source {
	if hint == "" {
		return SourceTemplate
	}
	if contextPath != "" && document.Same(hint, contextPath) {
		return SourceContext
	}
	return SourceTemplate
}

func parseMessageLocation(message string) (line, column int, rest string, ok bool) {
	matches := messageLocation.FindStringSubmatch(message)
	if matches == nil {
		return 0, 0, "", false
	}

	line, err := strconv.Atoi(matches[2])
	if err != nil || line < 1 {
		return 0, 0, "", false
	}
	if matches[3] != "" {
		column, _ = strconv.Atoi(matches[3])
	}
	return line, column, matches[4], true
}
