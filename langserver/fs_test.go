package langserver

import (
	"testing"

	"github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editSource = "class C\n{\n    bool Same(C a, C b) => a == b;\n}\n"

func TestApplyContentChanges(t *testing.T) {
	tests := map[string]struct {
		changes []lsp.TextDocumentContentChangeEvent
		want    string
	}{
		"append line": {
			changes: []lsp.TextDocumentContentChangeEvent{
				contentChange(lspRange(4, 0, 4, 0), "// end\n"),
			},
			want: editSource + "// end\n",
		},
		"insert operator use": {
			changes: []lsp.TextDocumentContentChangeEvent{
				contentChange(lspRange(2, 33, 2, 33), " && b != a"),
			},
			want: "class C\n{\n    bool Same(C a, C b) => a == b && b != a;\n}\n",
		},
		"replace operator": {
			changes: []lsp.TextDocumentContentChangeEvent{
				contentChange(lspRange(2, 29, 2, 31), "!="),
			},
			want: "class C\n{\n    bool Same(C a, C b) => a != b;\n}\n",
		},
		"remove member line": {
			changes: []lsp.TextDocumentContentChangeEvent{
				contentChange(lspRange(2, 0, 3, 0), ""),
			},
			want: "class C\n{\n}\n",
		},
		"full replace then edit": {
			changes: []lsp.TextDocumentContentChangeEvent{
				{Text: "class D { }\n"},
				contentChange(lspRange(0, 10, 0, 10), "int X; "),
			},
			want: "class D { int X; }\n",
		},
		"edits apply in order": {
			changes: []lsp.TextDocumentContentChangeEvent{
				contentChange(lspRange(0, 6, 0, 7), "Cmp"),
				contentChange(lspRange(0, 0, 0, 5), "struct"),
			},
			want: "struct Cmp\n{\n    bool Same(C a, C b) => a == b;\n}\n",
		},
	}
	for label, test := range tests {
		t.Run(label, func(t *testing.T) {
			got, err := applyContentChanges("file:///ws/C.cs", []byte(editSource), test.changes)
			require.NoError(t, err)
			assert.Equal(t, test.want, string(got))
		})
	}
}

func TestApplyContentChanges_invalid(t *testing.T) {
	tests := map[string]lsp.Range{
		"line past end": lspRange(9, 0, 9, 1),
		"inverted":      lspRange(2, 10, 2, 4),
	}
	for label, r := range tests {
		t.Run(label, func(t *testing.T) {
			_, err := applyContentChanges("file:///ws/C.cs", []byte(editSource), []lsp.TextDocumentContentChangeEvent{contentChange(r, "x")})
			assert.Error(t, err)
		})
	}
}

func contentChange(r lsp.Range, text string) lsp.TextDocumentContentChangeEvent {
	return lsp.TextDocumentContentChangeEvent{Range: &r, Text: text}
}

func lspRange(sl, sc, el, ec int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: sl, Character: sc},
		End:   lsp.Position{Line: el, Character: ec},
	}
}
