// Package watcher observes template and context documents on disk and
// feeds change/save notifications into the session registry.
//
// The watcher does no debouncing of its own: coalescing of rapid edits
// is the preview session's job, so events are routed as they arrive.
// Unsaved in-editor content never passes through here; editors push that
// through the server's document overlay endpoint.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/johnmschoonover/tmplview/internal/logging"
)

// Router receives routed document events. Satisfied by session.Registry.
type Router interface {
	RouteDocumentChange(path string)
	RouteDocumentSave(path string)
}

// FileFilter reports whether a path is interesting to the watcher.
type FileFilter func(path string) bool

// DocumentWatcher wires fsnotify into the Router.
type DocumentWatcher struct {
	watcher *fsnotify.Watcher
	router  Router
	filters []FileFilter
	logger  logging.Logger
}

// New creates a watcher routing into router. Filters are conjunctive:
// every filter must accept a path for its events to be routed.
func New(router Router, logger logging.Logger) (*DocumentWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DocumentWatcher{
		watcher: fsw,
		router:  router,
		logger:  logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter. Not safe to call after Start.
func (w *DocumentWatcher) AddFilter(filter FileFilter) {
	w.filters = append(w.filters, filter)
}

// AddRecursive watches root and all subdirectories.
func (w *DocumentWatcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Start runs the event loop until ctx is done.
func (w *DocumentWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err.Error())
		}
	}
}

// Close releases the underlying watcher.
func (w *DocumentWatcher) Close() error {
	return w.watcher.Close()
}

func (w *DocumentWatcher) handle(event fsnotify.Event) {
	// New directories need watching before any filter gets a say;
	// directory names rarely pass the extension filter.
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err.Error())
			}
			return
		}
	}

	for _, filter := range w.filters {
		if !filter(event.Name) {
			return
		}
	}

	switch {
	case event.Op.Has(fsnotify.Write):
		// A write on disk is a completed save.
		w.router.RouteDocumentSave(event.Name)
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
		w.router.RouteDocumentChange(event.Name)
	}
}

// ExtensionFilter accepts only paths with one of the given extensions.
func ExtensionFilter(extensions []string) FileFilter {
	normalized := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		normalized[strings.ToLower(ext)] = struct{}{}
	}
	return func(path string) bool {
		_, ok := normalized[strings.ToLower(filepath.Ext(path))]
		return ok
	}
}

// IgnoreFilter rejects paths containing any of the given directory names.
func IgnoreFilter(names []string) FileFilter {
	return func(path string) bool {
		for _, name := range names {
			if name == "" {
				continue
			}
			if strings.Contains(path, string(filepath.Separator)+name+string(filepath.Separator)) ||
				strings.HasPrefix(path, name+string(filepath.Separator)) {
				return false
			}
		}
		return true
	}
}

// NoHiddenFilter rejects dotfiles and files inside dot-directories.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return false
		}
	}
	return true
}
