package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Placeholders understood by path settings.
const (
	PlaceholderExeDir = "{exe}" // directory containing the running executable
	PlaceholderCwd    = "{cwd}" // process working directory at startup
)

// Paths carries the values substituted into path templates.
type Paths struct {
	ExeDir string
	Cwd    string
}

// ExpandPath substitutes {exe}, {cwd} and a leading ~ in tmpl and returns a
// cleaned, OS-native path.
func (p Paths) ExpandPath(tmpl string) string {
	out := strings.ReplaceAll(tmpl, PlaceholderExeDir, p.ExeDir)
	out = strings.ReplaceAll(out, PlaceholderCwd, p.Cwd)

	if out == "~" || strings.HasPrefix(out, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			out = home + out[1:]
		}
	}
	return filepath.Clean(filepath.FromSlash(out))
}
