package utils

import (
	"testing"

	"github.com/sourcegraph/go-lsp"
)

func TestPathHasPrefix(t *testing.T) {
	tests := []struct {
		s, prefix string
		want      bool
	}{
		{"/a/b.cs", "/a", true},
		{"/a/b.cs", "/a/", true},
		{"/ab/c.cs", "/a", false},
		{"/a", "/a", true},
		{"x.cs", "", true},
	}
	for _, test := range tests {
		if got := PathHasPrefix(test.s, test.prefix); got != test.want {
			t.Errorf("PathHasPrefix(%q, %q) = %v, want %v", test.s, test.prefix, got, test.want)
		}
	}
}

func TestURIRoundTrip(t *testing.T) {
	for _, p := range []string{"/src/a.cs", "/chip and dale/b.cs"} {
		uri := PathToURI(p)
		if !IsURI(uri) {
			t.Fatalf("%s is not a URI", uri)
		}
		if got := UriToPath(uri); got != p {
			t.Errorf("UriToPath(%s) = %q, want %q", uri, got, p)
		}
	}
}

func TestPositionOffset(t *testing.T) {
	content := []byte("ab\nc\U0001F600d\n")
	tests := []struct {
		pos    lsp.Position
		offset int
	}{
		{lsp.Position{Line: 0, Character: 0}, 0},
		{lsp.Position{Line: 0, Character: 2}, 2},
		{lsp.Position{Line: 1, Character: 0}, 3},
		{lsp.Position{Line: 1, Character: 1}, 4},
		{lsp.Position{Line: 1, Character: 3}, 8},
		{lsp.Position{Line: 2, Character: 0}, 10},
	}
	for _, test := range tests {
		got, err := OffsetForPosition(content, test.pos)
		if err != nil {
			t.Fatal(err)
		}
		if got != test.offset {
			t.Errorf("OffsetForPosition(%v) = %d, want %d", test.pos, got, test.offset)
		}
		if back := PositionForOffset(content, test.offset); back != test.pos {
			t.Errorf("PositionForOffset(%d) = %v, want %v", test.offset, back, test.pos)
		}
	}
	if _, err := OffsetForPosition(content, lsp.Position{Line: 5}); err == nil {
		t.Error("expected error for line out of range")
	}
}
