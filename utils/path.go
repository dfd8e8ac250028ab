package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathGuard answers whether paths resolve inside a fixed set of roots.
type PathGuard struct {
	roots []string
}

// NewPathGuard resolves roots once. Roots that cannot be made absolute are
// ignored.
func NewPathGuard(roots []string) *PathGuard {
	g := &PathGuard{roots: make([]string, 0, len(roots))}
	for _, root := range roots {
		if abs, ok := resolve(root); ok {
			g.roots = append(g.roots, abs)
		}
	}
	return g
}

// Contains reports whether path is one of the roots or below one.
func (g *PathGuard) Contains(path string) bool {
	if g == nil {
		return false
	}
	abs, ok := resolve(path)
	if !ok {
		return false
	}
	for _, root := range g.roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IsPathWithin returns true if the given path is within any of the roots.
func IsPathWithin(path string, roots []string) bool {
	return NewPathGuard(roots).Contains(path)
}

// JoinWithin joins name onto root and rejects results that leave root. The
// target need not exist yet: containment is checked on its parent directory,
// so a root reached through a symlink is accepted.
func JoinWithin(root, name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", name, root)
	}
	joined := filepath.Join(root, clean)
	if !IsPathWithin(filepath.Dir(joined), []string{root}) {
		return "", fmt.Errorf("path %q escapes %s", name, root)
	}
	return joined, nil
}

func resolve(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	return abs, true
}
