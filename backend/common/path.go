package common

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrPathOutsideRoot = errors.New("path resolves outside of root")

// SafeJoin joins a caller supplied, slash separated relative path onto root
// and guarantees the result stays inside root.
func SafeJoin(root string, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimLeft(rel, "/")
	if filepath.VolumeName(filepath.FromSlash(rel)) != "" {
		return "", ErrPathOutsideRoot
	}
	full := filepath.Join(absRoot, filepath.FromSlash(rel))
	if !within(absRoot, full) {
		return "", ErrPathOutsideRoot
	}
	// symlinks below root must not lead out of it
	if !within(resolveExisting(absRoot), resolveExisting(full)) {
		return "", ErrPathOutsideRoot
	}
	return full, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and appends the part that does not exist yet.
func resolveExisting(path string) string {
	tail := ""
	for current := path; ; {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(resolved, tail)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		tail = filepath.Join(filepath.Base(current), tail)
		current = parent
	}
}

// RelativeURL renders path relative to root with forward slashes.
func RelativeURL(root string, path string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return filepath.ToSlash(filepath.Base(path))
	}
	return filepath.ToSlash(rel)
}
