package diagnostics

import (
	"sync"

	"github.com/johnmschoonover/tmplview/internal/document"
)

// Index is the shared, per-document diagnostics record the editor UI
// reads. Entries are keyed by normalized document identity and are always
// replaced wholesale, never merged, so stale diagnostics cannot survive a
// render that no longer produces them.
type Index struct {
	mu    sync.RWMutex
	byDoc map[string][]Diagnostic
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byDoc: make(map[string][]Diagnostic)}
}

// Replace sets the full diagnostic list for path. Nil or empty clears the
// document's entry.
func (i *Index) Replace(path string, diags []Diagnostic) {
	key := document.Key(path)
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(diags) == 0 {
		delete(i.byDoc, key)
		return
	}
	i.byDoc[key] = append([]Diagnostic(nil), diags...)
}

// Get returns the current diagnostics for path.
func (i *Index) Get(path string) []Diagnostic {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Diagnostic(nil), i.byDoc[document.Key(path)]...)
}

// Documents returns the keys of all documents that currently have
// diagnostics recorded.
func (i *Index) Documents() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	keys := make([]string, 0, len(i.byDoc))
	for key := range i.byDoc {
		keys = append(keys, key)
	}
	return keys
}
