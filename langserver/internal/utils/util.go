package utils

import (
	"bytes"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/sourcegraph/go-lsp"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

func PathHasPrefix(s, prefix string) bool {
	prefix = virtualPath(prefix)
	var prefixSlash string
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefixSlash = prefix + "/"
	} else {
		prefixSlash = prefix
	}
	s = virtualPath(s)
	return s == prefix || strings.HasPrefix(s, prefixSlash)
}

func PathTrimPrefix(s, prefix string) string {
	s = virtualPath(s)
	prefix = virtualPath(prefix)
	if s == prefix {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.TrimPrefix(s, prefix)
}

func PathEqual(a, b string) bool {
	return PathTrimPrefix(a, b) == ""
}

// IsURI tells if s denotes an URI
func IsURI(s lsp.DocumentURI) bool {
	return strings.HasPrefix(string(s), "file:///")
}

// PathToURI converts given absolute path to file URI
func PathToURI(path string) lsp.DocumentURI {
	path = virtualPath(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return lsp.DocumentURI("file://" + path)
}

// UriToPath converts given file URI to path
func UriToPath(uri lsp.DocumentURI) string {
	if !IsURI(uri) {
		return string(uri)
	}
	u, err := url.Parse(string(uri))
	if err != nil {
		return strings.TrimPrefix(string(uri), "file://")
	}
	return u.Path
}

// OffsetForPosition converts an LSP position, whose character is counted in
// UTF-16 code units, to a byte offset in content. Positions past the end of
// a line clamp to the line end.
func OffsetForPosition(content []byte, pos lsp.Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("invalid position %d:%d", pos.Line, pos.Character)
	}
	offset := 0
	for line := 0; line < pos.Line; line++ {
		i := bytes.IndexByte(content[offset:], '\n')
		if i < 0 {
			return 0, fmt.Errorf("line %d out of range (%d lines)", pos.Line, line+1)
		}
		offset += i + 1
	}
	for units := 0; units < pos.Character && offset < len(content); {
		r, size := utf8.DecodeRune(content[offset:])
		if r == '\n' {
			break
		}
		if utf16.IsSurrogate(r) || r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		offset += size
	}
	return offset, nil
}

// PositionForOffset is the inverse of OffsetForPosition.
func PositionForOffset(content []byte, offset int) lsp.Position {
	if offset > len(content) {
		offset = len(content)
	}
	var pos lsp.Position
	for i := 0; i < offset; {
		r, size := utf8.DecodeRune(content[i:])
		i += size
		switch {
		case r == '\n':
			pos.Line++
			pos.Character = 0
		case r > 0xFFFF:
			pos.Character += 2
		default:
			pos.Character++
		}
	}
	return pos
}

// Panicf takes the return value of recover() and outputs data to the log with
// the stack trace appended. Arguments are handled in the manner of
// fmt.Printf. Arguments should format to a string which identifies what the
// panic code was doing. Returns a non-nil error if it recovered from a panic.
func Panicf(r interface{}, format string, v ...interface{}) error {
	if r != nil {
		// Same as net/http
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		id := fmt.Sprintf(format, v...)
		log15.Error("panic serving "+id, "panic", r, "stack", string(buf))
		return fmt.Errorf("unexpected panic: %v", r)
	}
	return nil
}
