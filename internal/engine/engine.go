// Package engine renders a Go template file against a JSON context
// document and reports the outcome as a protocol.RenderResponse.
//
// Templates with an .html or .htm extension are executed through
// html/template so the output is contextually escaped; everything else
// goes through text/template. Both variants share the helper function map
// defined in funcs.go. The engine runs inside the "tmplview engine"
// subcommand so that template execution is isolated from the preview
// server process.
package engine

import (
	"encoding/json"
	"errors"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/johnmschoonover/tmplview/internal/protocol"
)

// Render reads, compiles, and executes the template at templatePath
// against the JSON document at contextPath. An empty contextPath renders
// against an empty map. All failures are reported in the response rather
// than returned: callers get a response with Error set and, for
// template-level failures, a diagnostic carrying the engine's message.
func Render(templatePath, contextPath string) protocol.RenderResponse {
	start := time.Now()
	resp := render(templatePath, contextPath)
	resp.DurationMs = time.Since(start).Milliseconds()
	return resp
}

func render(templatePath, contextPath string) protocol.RenderResponse {
	if templatePath == "" {
		return protocol.RenderResponse{Error: "template path is required"}
	}

	source, err := os.ReadFile(templatePath)
	if err != nil {
		return protocol.RenderResponse{Error: err.Error()}
	}

	data, err := loadContext(contextPath)
	if err != nil {
		return protocol.RenderResponse{Error: err.Error()}
	}

	rendered, err := execute(templatePath, string(source), data)
	if err != nil {
		return protocol.RenderResponse{
			Diagnostics: []protocol.Diagnostic{{
				Message:  err.Error(),
				Severity: protocol.SeverityError,
			}},
			Error: err.Error(),
		}
	}

	return protocol.RenderResponse{Rendered: rendered}
}

// IsMarkupPath reports whether the template at path produces markup and
// should be executed with contextual HTML escaping.
func IsMarkupPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func loadContext(contextPath string) (any, error) {
	if strings.TrimSpace(contextPath) == "" {
		return map[string]any{}, nil
	}

	raw, err := os.ReadFile(contextPath)
	if err != nil {
		return nil, err
	}
	return ParseContext(raw)
}

// ParseContext decodes a JSON context document. Blank documents decode to
// an empty map so a freshly created context file renders cleanly.
func ParseContext(raw []byte) (any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return map[string]any{}, nil
	}

	var data any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, errors.New("failed to parse context JSON")
	}
	return data, nil
}

// execute compiles and runs the template. The template is named after the
// file's base name, which is the name the engine embeds in error messages
// ("template: <name>:<line>: ...") and which the diagnostic mapper parses
// back out.
func execute(path, source string, data any) (string, error) {
	name := filepath.Base(path)
	var out strings.Builder

	if IsMarkupPath(path) {
		tmpl, err := htmltemplate.New(name).Funcs(htmlFuncs()).Parse(source)
		if err != nil {
			return "", err
		}
		if err := tmpl.Execute(&out, data); err != nil {
			return "", err
		}
		return out.String(), nil
	}

	tmpl, err := texttemplate.New(name).Funcs(textFuncs()).Parse(source)
	if err != nil {
		return "", err
	}
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
