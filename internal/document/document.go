// Package document handles document identity and content access for the
// preview system.
//
// Two documents are the same document when their normalized keys match:
// absolute, cleaned paths, case-folded on platforms whose filesystems
// compare paths case-insensitively. The Store layers unsaved in-editor
// content (overlays) over the filesystem, computes content signatures for
// change detection, and produces on-disk snapshots of dirty documents so
// the out-of-process engine can read them.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"runtime"
	"strings"
)

// foldCase is true on platforms where the default filesystem compares
// paths case-insensitively.
var foldCase = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// Key returns the normalized identity of a document path. Keys are what
// sessions, the diagnostics index, and routing compare; raw paths are
// only ever displayed or handed to the engine.
func Key(path string) string {
	return normalize(path, foldCase)
}

// Same reports whether two paths identify the same document.
func Same(a, b string) bool {
	return Key(a) == Key(b)
}

func normalize(path string, fold bool) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)
	if fold {
		abs = strings.ToLower(abs)
	}
	return abs
}

// Signature fingerprints document content for no-op render detection.
func Signature(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
