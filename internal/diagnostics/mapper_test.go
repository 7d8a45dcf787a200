package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnmschoonover/tmplview/internal/protocol"
)

func TestMap_MessageLocationPrefix(t *testing.T) {
	m := NewMapper(nil)

	tests := []struct {
		name          string
		message       string
		wantLine      int
		wantCharacter *int
		wantMessage   string
	}{
		{
			name:        "line only",
			message:     "template: page.tmpl:2: unexpected EOF",
			wantLine:    1,
			wantMessage: "unexpected EOF",
		},
		{
			name:          "line and column",
			message:       "template: page.tmpl:12:5: undefined variable",
			wantLine:      11,
			wantCharacter: intPtr(4),
			wantMessage:   "undefined variable",
		},
		{
			name:        "template name containing dots",
			message:     "template: page.api.v2.tmpl:3: bad range",
			wantLine:    2,
			wantMessage: "bad range",
		},
		{
			name:        "no prefix defaults to line zero",
			message:     "something went wrong",
			wantLine:    0,
			wantMessage: "something went wrong",
		},
		{
			name:        "prefix with zero line is not a location",
			message:     "template: p:0: odd",
			wantLine:    0,
			wantMessage: "template: p:0: odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := m.Map("/src/page.tmpl", "", []protocol.Diagnostic{{
				Message:  tt.message,
				Severity: protocol.SeverityError,
			}})

			require.Len(t, mapped, 1)
			d := mapped[0]
			assert.Equal(t, tt.wantLine, d.Line)
			assert.Equal(t, tt.wantCharacter, d.Character)
			assert.Equal(t, tt.wantMessage, d.Message)
			assert.Equal(t, SourceTemplate, d.Source)
			assert.Equal(t, protocol.SeverityError, d.Severity)
		})
	}
}

func TestMap_StructuredFieldsWinOverPrefix(t *testing.T) {
	m := NewMapper(nil)

	mapped := m.Map("/src/page.tmpl", "", []protocol.Diagnostic{{
		Message:  "template: page.tmpl:9: inner location ignored",
		Severity: protocol.SeverityWarning,
		Line:     4,
		Column:   7,
	}})

	require.Len(t, mapped, 1)
	assert.Equal(t, 3, mapped[0].Line)
	require.NotNil(t, mapped[0].Character)
	assert.Equal(t, 6, *mapped[0].Character)
	assert.Equal(t, "template: page.tmpl:9: inner location ignored", mapped[0].Message,
		"message stays intact when the engine gave structured fields")
}

func TestMap_SourceResolution(t *testing.T) {
	m := NewMapper(nil)
	templatePath := "/src/page.tmpl"
	contextPath := "/src/page.tmpl.json"

	tests := []struct {
		name string
		file string
		want Source
	}{
		{name: "no hint defaults to template", file: "", want: SourceTemplate},
		{name: "template hint", file: "/src/page.tmpl", want: SourceTemplate},
		{name: "context hint", file: "/src/page.tmpl.json", want: SourceContext},
		{name: "unnormalized context hint", file: "/src/../src/page.tmpl.json", want: SourceContext},
		{name: "unrelated hint falls back to template", file: "/etc/passwd", want: SourceTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := m.Map(templatePath, contextPath, []protocol.Diagnostic{{
				Message:  "boom",
				Severity: protocol.SeverityError,
				File:     tt.file,
			}})
			require.Len(t, mapped, 1)
			assert.Equal(t, tt.want, mapped[0].Source)
		})
	}
}

func TestMap_ContextHintWithoutContextDocument(t *testing.T) {
	m := NewMapper(nil)

	mapped := m.Map("/src/page.tmpl", "", []protocol.Diagnostic{{
		Message:  "boom",
		Severity: protocol.SeverityError,
		File:     "/src/page.tmpl.json",
	}})

	require.Len(t, mapped, 1)
	assert.Equal(t, SourceTemplate, mapped[0].Source)
}

func TestMap_EveryDiagnosticProducesExactlyOne(t *testing.T) {
	m := NewMapper(nil)

	in := []protocol.Diagnostic{
		{Message: "a", Severity: protocol.SeverityError},
		{Message: "b", Severity: protocol.SeverityWarning, Line: 3},
		{Message: "template: x:1: c", Severity: protocol.SeverityError},
	}

	mapped := m.Map("/src/page.tmpl", "", in)
	assert.Len(t, mapped, len(in))
}

func TestPublish_ReplacesIndexEntriesWholesale(t *testing.T) {
	m := NewMapper(nil)
	templatePath := "/src/page.tmpl"
	contextPath := "/src/page.tmpl.json"

	m.Publish(templatePath, contextPath, []protocol.Diagnostic{
		{Message: "template error", Severity: protocol.SeverityError},
		{Message: "context error", Severity: protocol.SeverityError, File: contextPath},
	})

	require.Len(t, m.Index().Get(templatePath), 1)
	require.Len(t, m.Index().Get(contextPath), 1)

	// A clean render clears everything previously recorded for both
	// documents.
	m.Publish(templatePath, contextPath, nil)
	assert.Empty(t, m.Index().Get(templatePath))
	assert.Empty(t, m.Index().Get(contextPath))
	assert.Empty(t, m.Index().Documents())
}

func TestPublish_DoesNotTouchOtherDocuments(t *testing.T) {
	m := NewMapper(nil)

	m.Publish("/src/a.tmpl", "", []protocol.Diagnostic{
		{Message: "a", Severity: protocol.SeverityError},
	})
	m.Publish("/src/b.tmpl", "", []protocol.Diagnostic{
		{Message: "b", Severity: protocol.SeverityError},
	})

	m.Publish("/src/a.tmpl", "", nil)
	assert.Empty(t, m.Index().Get("/src/a.tmpl"))
	assert.Len(t, m.Index().Get("/src/b.tmpl"), 1)
}

func TestClear_DropsBothDocuments(t *testing.T) {
	m := NewMapper(nil)
	templatePath := "/src/page.tmpl"
	contextPath := "/src/page.tmpl.json"

	m.Publish(templatePath, contextPath, []protocol.Diagnostic{
		{Message: "t", Severity: protocol.SeverityError},
		{Message: "c", Severity: protocol.SeverityError, File: contextPath},
	})

	m.Clear(templatePath, contextPath)
	assert.Empty(t, m.Index().Get(templatePath))
	assert.Empty(t, m.Index().Get(contextPath))
}

func intPtr(v int) *int {
	return &v
}
