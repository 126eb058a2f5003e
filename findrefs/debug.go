//go:build findrefs_debug

package findrefs

const debug = true
