package ingest

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// walkAction tells a directory walk what to do with one entry.
type walkAction int

const (
	walkIgnore walkAction = iota
	walkSkipDir
	walkDescend
	walkContract
)

// classify decides how a walk rooted at root treats path. The root itself is
// never treated as hidden.
func classify(root, path string, d fs.DirEntry, skipHidden bool) walkAction {
	if skipHidden && path != root && IsHidden(path) {
		if d.IsDir() {
			return walkSkipDir
		}
		return walkIgnore
	}
	if d.IsDir() {
		return walkDescend
	}
	if !AllowedExt(filepath.Ext(path)) {
		return walkIgnore
	}
	return walkContract
}

// AllowedExt reports whether ext names a contract format (pdf, images, docx).
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden reports whether the final path element is a dotfile.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && base != ".." && strings.HasPrefix(base, ".")
}
