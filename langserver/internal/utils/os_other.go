//go:build !windows

package utils

import "path/filepath"

// virtualPath returns path in the form used for prefix comparisons. Paths
// are already slash separated and case sensitive here.
func virtualPath(path string) string { return path }

// IsAbs reports whether path is absolute.
func IsAbs(path string) bool { return filepath.IsAbs(path) }
