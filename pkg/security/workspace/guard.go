// Package workspace provides security mechanisms for enforcing directory
// boundaries on file system operations. It prevents path traversal and
// symlink escapes out of a designated root, such as the knowledge base root.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard enforces boundary restrictions on file paths under a root directory.
type Guard struct {
	root string // Absolute, symlink-resolved root
}

// NewGuard creates a guard for root. The root may not exist yet; the
// existing part of its path is symlink-resolved.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	return &Guard{root: resolveSymlinks(absPath)}, nil
}

// ValidatePath checks that path resolves inside the root.
// Relative paths are taken relative to the root.
func (g *Guard) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !g.IsWithinRoot(g.ResolvePath(path)) {
		return fmt.Errorf("path '%s' is outside '%s'", path, g.root)
	}
	return nil
}

// ResolvePath converts path to an absolute, cleaned, symlink-resolved path.
// Relative paths are joined to the root.
func (g *Guard) ResolvePath(path string) string {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(g.root, cleanPath)
	}
	return resolveSymlinks(cleanPath)
}

// IsWithinRoot reports whether absPath is the root or a child of it.
func (g *Guard) IsWithinRoot(absPath string) bool {
	evalPath := resolveSymlinks(absPath)
	return evalPath == g.root ||
		strings.HasPrefix(evalPath+string(filepath.Separator), g.root+string(filepath.Separator))
}

// IsStrictlyWithinRoot reports whether absPath is inside the root and is
// not the root itself.
func (g *Guard) IsStrictlyWithinRoot(absPath string) bool {
	return g.IsWithinRoot(absPath) && resolveSymlinks(absPath) != g.root
}

// Root returns the absolute path of the root directory.
func (g *Guard) Root() string {
	return g.root
}

// MakeRelative converts an absolute path to a path relative to the root.
func (g *Guard) MakeRelative(absPath string) (string, error) {
	if !g.IsWithinRoot(absPath) {
		return "", fmt.Errorf("path '%s' is not within '%s'", absPath, g.root)
	}

	relPath, err := filepath.Rel(g.root, resolveSymlinks(absPath))
	if err != nil {
		return "", fmt.Errorf("failed to make path relative: %w", err)
	}
	return relPath, nil
}

// resolveSymlinks resolves symlinks in a path, handling non-existent paths
// by resolving the nearest existing parent and re-appending the rest.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	currentPath := path

	for {
		if resolved, err := filepath.EvalSymlinks(currentPath); err == nil {
			result := resolved
			for i := len(components) - 1; i >= 0; i-- {
				result = filepath.Join(result, components[i])
			}
			return result
		}

		dir := filepath.Dir(currentPath)
		if dir == currentPath || dir == "." {
			return filepath.Clean(path)
		}

		components = append(components, filepath.Base(currentPath))
		currentPath = dir
	}
}
