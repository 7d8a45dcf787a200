package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnmschoonover/tmplview/internal/protocol"
)

func TestRouteDocumentChange_TemplateDocument(t *testing.T) {
	fake := &fakeRenderer{respond: func(int, string) (*protocol.RenderResponse, error) {
		return success("A"), nil
	}}
	registry, _, _ := newTestRegistry(t, fake)
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, "page.tmpl", "v1")
	surface := newFakeSurface()

	registry.Open(templatePath, "", false, surface)
	waitMessage(t, surface)

	writeTemplate(t, dir, "page.tmpl", "v2")
	registry.RouteDocumentChange(templatePath)

	waitMessage(t, surface)
	assert.Equal(t, 2, fake.callCount())
}

func TestRouteDocumentChange_SharedContextSchedulesAllSessions(t *testing.T) {
	fake := &fakeRenderer{respond: func(int, string) (*protocol.RenderResponse, error) {
		return success("A"), nil
	}}
	registry, _, _ := newTestRegistry(t, fake)
	dir := t.TempDir()
	templateA := writeTemplate(t, dir, "a.tmpl", "A")
	templateB := writeTemplate(t, dir, "b.tmpl", "B")
	contextPath := writeTemplate(t, dir, "shared.json", `{"v":1}`)

	surfaceA := newFakeSurface()
	surfaceB := newFakeSurface()
	registry.Open(templateA, contextPath, false, surfaceA)
	registry.Open(templateB, contextPath, false, surfaceB)
	waitMessage(t, surfaceA)
	waitMessage(t, surfaceB)
	require.Equal(t, 2, fake.callCount())

	writeTemplate(t, dir, "shared.json", `{"v":2}`)
	registry.RouteDocumentSave(contextPath)

	waitMessage(t, surfaceA)
	waitMessage(t, surfaceB)
	assert.Equal(t, 4, fake.callCount(), "both sessions sharing the context must re-render")
}

func TestRouteDocumentChange_IrrelevantDocumentIsIgnored(t *testing.T) {
	fake := &fakeRenderer{respond: func(int, string) (*protocol.RenderResponse, error) {
		return success("A"), nil
	}}
	registry, _, _ := newTestRegistry(t, fake)
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, "page.tmpl", "v1")
	other := writeTemplate(t, dir, "other.tmpl", "other")
	surface := newFakeSurface()

	registry.Open(templatePath, "", false, surface)
	waitMessage(t, surface)

	registry.RouteDocumentChange(other)
	assertNoMessage(t, surface, 4*testDebounce)
	assert.Equal(t, 1, fake.callCount())
}

func TestDisposeAll_DrainsEverySession(t *testing.T) {
	fake := &fakeRenderer{respond: func(int, string) (*protocol.RenderResponse, error) {
		return success("A"), nil
	}}
	registry, _, _ := newTestRegistry(t, fake)
	dir := t.TempDir()
	surfaceA := newFakeSurface()
	surfaceB := newFakeSurface()

	registry.Open(writeTemplate(t, dir, "a.tmpl", "A"), "", false, surfaceA)
	registry.Open(writeTemplate(t, dir, "b.tmpl", "B"), "", false, surfaceB)
	waitMessage(t, surfaceA)
	waitMessage(t, surfaceB)

	registry.DisposeAll()

	assert.Equal(t, 0, registry.Len())
	assert.True(t, surfaceA.isClosed())
	assert.True(t, surfaceB.isClosed())
}

func TestNewRegistry_DefaultsDebounce(t *testing.T) {
	fake := &fakeRenderer{respond: func(int, string) (*protocol.RenderResponse, error) {
		return success("A"), nil
	}}
	registry, _, _ := newTestRegistry(t, fake)
	assert.Equal(t, testDebounce, registry.debounce)

	registry = NewRegistry(fake, registry.mapper, registry.store, registry.presenter, 0, registry.logger)
	assert.Equal(t, DefaultDebounce, registry.debounce)

	// Sanity: the default sits inside the acceptable debounce window.
	assert.GreaterOrEqual(t, DefaultDebounce, 150*time.Millisecond)
	assert.LessOrEqual(t, DefaultDebounce, 250*time.Millisecond)
}
