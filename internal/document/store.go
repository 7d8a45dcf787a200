package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store provides content access for documents, overlaying unsaved
// in-editor buffers on top of the filesystem. Overlay content is keyed by
// normalized document identity, so a change pushed under a differently
// cased path still reaches the right document on case-insensitive
// platforms.
type Store struct {
	mu       sync.RWMutex
	overlays map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{overlays: make(map[string][]byte)}
}

// SetOverlay records unsaved buffer content for path.
func (s *Store) SetOverlay(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays[Key(path)] = append([]byte(nil), content...)
}

// ClearOverlay drops the unsaved buffer for path, typically after the
// editor reports a save. Subsequent reads fall through to disk.
func (s *Store) ClearOverlay(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlays, Key(path))
}

// Read returns the current content of path and whether it came from an
// overlay rather than disk.
func (s *Store) Read(path string) ([]byte, bool, error) {
	s.mu.RLock()
	overlay, ok := s.overlays[Key(path)]
	s.mu.RUnlock()
	if ok {
		return append([]byte(nil), overlay...), true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return content, false, nil
}

// ContentSignature fingerprints the current content of path, overlay
// included.
func (s *Store) ContentSignature(path string) (string, error) {
	content, _, err := s.Read(path)
	if err != nil {
		return "", err
	}
	return Signature(content), nil
}

// Snapshot returns a path the engine process can read for the current
// content of path. Clean documents are handed over as-is; dirty documents
// are written to a temporary file that preserves the original extension,
// since the engine selects its escaping mode from it. The returned
// cleanup func must always be called and removes any temporary artifact;
// it is safe to call when Snapshot failed partway through.
func (s *Store) Snapshot(path string) (string, func(), error) {
	s.mu.RLock()
	overlay, dirty := s.overlays[Key(path)]
	s.mu.RUnlock()

	if !dirty {
		return path, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "tmplview-*"+filepath.Ext(path))
	if err != nil {
		return "", func() {}, fmt.Errorf("creating snapshot for %s: %w", path, err)
	}

	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(overlay); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("writing snapshot for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("closing snapshot for %s: %w", path, err)
	}

	return tmp.Name(), cleanup, nil
}
