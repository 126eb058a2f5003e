//go:build windows

package utils

import (
	"path/filepath"
	"strings"
)

// virtualPath returns path in the form used for prefix comparisons:
// slash separated, rooted at "/" and lower-cased, since drive paths such
// as C:\src\App are case insensitive.
func virtualPath(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.ToLower(path)
}

// IsAbs reports whether path is absolute, as a workspace path ("/c:/src")
// or a native one ("C:\src").
func IsAbs(path string) bool {
	return strings.HasPrefix(path, "/") || filepath.IsAbs(path)
}
