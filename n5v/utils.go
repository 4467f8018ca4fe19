package n5v

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// NumCPU is the number of logical CPUs the process may use.  It can be lowered
// from the command line.
var NumCPU = runtime.NumCPU()

// ConvertToAbsolute returns an absolute path for p, treating relative paths as
// relative to baseDir.
func ConvertToAbsolute(p, baseDir string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path cannot be made absolute")
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(filepath.Join(baseDir, p))
}

// NormalizePath cleans a container path so that the root is "" and no path has a
// leading or trailing slash.
func NormalizePath(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimPrefix(p, "/")
}

// JoinPath joins container path components.
func JoinPath(elem ...string) string {
	return NormalizePath(path.Join(elem...))
}

// BaseName returns the last element of a container path.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}
