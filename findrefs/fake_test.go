package findrefs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeDoc is an in-memory document with hand-written bindings.
type fakeDoc struct {
	doc     *Document
	src     string
	tokens  []Token
	aliases []AliasDirective
	attrs   []Attribute
	binds   map[int]SymbolInfo
	errs    map[int]error
}

// fakeWorkspace implements Workspace over fakeDocs.
type fakeWorkspace struct {
	mu    sync.Mutex
	docs  []*fakeDoc
	graph map[string][]string

	treeErr map[DocumentID]error
	// gate, when set, blocks SyntaxRoot until it is closed or the context
	// is done.
	gate        chan struct{}
	syntaxCalls int64
	bindCalls   int64
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{treeErr: map[DocumentID]error{}}
}

func (w *fakeWorkspace) add(project, path, src string) *fakeDoc {
	d := &fakeDoc{
		doc:    &Document{ID: DocumentID{Project: project, Path: path}, Version: 1, Length: len(src)},
		src:    src,
		tokens: lex(src),
		binds:  map[int]SymbolInfo{},
		errs:   map[int]error{},
	}
	w.mu.Lock()
	w.docs = append(w.docs, d)
	w.mu.Unlock()
	return d
}

// token returns the nth (0-based) token spelled text.
func (d *fakeDoc) token(text string, nth int) Token {
	for _, tok := range d.tokens {
		if tok.Text == text {
			if nth == 0 {
				return tok
			}
			nth--
		}
	}
	panic(fmt.Sprintf("no token %q in %s", text, d.doc.ID))
}

func (d *fakeDoc) bind(text string, nth int, info SymbolInfo) *fakeDoc {
	d.binds[d.token(text, nth).Span.Start] = info
	return d
}

func (d *fakeDoc) bindErr(text string, nth int, err error) *fakeDoc {
	d.errs[d.token(text, nth).Span.Start] = err
	return d
}

// alias records the alias directive spelled text, e.g. "using F = C.M;".
func (d *fakeDoc) alias(text string) *fakeDoc {
	start := strings.Index(d.src, text)
	if start < 0 {
		panic("alias not in source: " + text)
	}
	body := strings.TrimSuffix(text, ";")
	global := strings.HasPrefix(body, "global ")
	body = strings.TrimPrefix(body, "global ")
	body = strings.TrimPrefix(body, "using ")
	eq := strings.Index(body, "=")
	name := strings.TrimSpace(body[:eq])
	nameStart := start + strings.Index(text, name)
	d.aliases = append(d.aliases, AliasDirective{
		Name:     name,
		Target:   strings.TrimSpace(body[eq+1:]),
		Global:   global,
		NameSpan: Span{Start: nameStart, End: nameStart + len(name)},
		Span:     Span{Start: start, End: start + len(text)},
	})
	return d
}

// attribute records an attribute whose arguments are the given string
// literals; "Name=value" makes a named argument.
func (d *fakeDoc) attribute(name string, global bool, args ...string) *fakeDoc {
	a := Attribute{Name: name, Global: global}
	from := strings.Index(d.src, name)
	a.Span.Start = from
	for _, arg := range args {
		argName, value := "", arg
		if i := strings.Index(arg, "="); i >= 0 && !strings.HasPrefix(arg, "~") {
			argName, value = arg[:i], arg[i+1:]
		}
		i := strings.Index(d.src[from:], `"`+value+`"`) + from
		a.Arguments = append(a.Arguments, AttributeArgument{
			Name:      argName,
			Value:     value,
			ValueSpan: Span{Start: i + 1, End: i + 1 + len(value)},
			IsString:  true,
		})
		from = i + len(value) + 2
	}
	a.Span.End = from
	d.attrs = append(d.attrs, a)
	return d
}

func (w *fakeWorkspace) find(id DocumentID) *fakeDoc {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.docs {
		if d.doc.ID == id {
			return d
		}
	}
	return nil
}

func (w *fakeWorkspace) Documents(ctx context.Context, scope Scope) ([]*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if scope.IsAll() {
		docs := make([]*Document, len(w.docs))
		for i, d := range w.docs {
			docs[i] = d.doc
		}
		return docs, nil
	}
	var docs []*Document
	for _, id := range scope.Documents {
		for _, d := range w.docs {
			if d.doc.ID == id {
				docs = append(docs, d.doc)
			}
		}
	}
	return docs, nil
}

func (w *fakeWorkspace) SyntaxRoot(ctx context.Context, doc *Document) (SyntaxTree, error) {
	atomic.AddInt64(&w.syntaxCalls, 1)
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := w.treeErr[doc.ID]; err != nil {
		return nil, err
	}
	return fakeTree{w.find(doc.ID)}, nil
}

func (w *fakeWorkspace) SemanticModel(ctx context.Context, doc *Document) (SemanticModel, error) {
	return fakeModel{w: w, d: w.find(doc.ID)}, nil
}

func (w *fakeWorkspace) SyntaxFacts(doc *Document) SyntaxFacts { return fakeFacts{} }

type fakeGraphWorkspace struct{ *fakeWorkspace }

func (w fakeGraphWorkspace) DependentProjects(project string) []string { return w.graph[project] }

type fakeTree struct{ d *fakeDoc }

func (t fakeTree) Tokens(descendIntoTrivia bool) []Token {
	if descendIntoTrivia {
		return t.d.tokens
	}
	var toks []Token
	for _, tok := range t.d.tokens {
		if !tok.Trivia {
			toks = append(toks, tok)
		}
	}
	return toks
}

func (t fakeTree) AliasDirectives() []AliasDirective { return t.d.aliases }
func (t fakeTree) Attributes() []Attribute           { return t.d.attrs }

type fakeModel struct {
	w *fakeWorkspace
	d *fakeDoc
}

func (m fakeModel) SymbolInfo(ctx context.Context, tok Token) (SymbolInfo, error) {
	atomic.AddInt64(&m.w.bindCalls, 1)
	if err := ctx.Err(); err != nil {
		return SymbolInfo{}, err
	}
	if err := m.d.errs[tok.Span.Start]; err != nil {
		return SymbolInfo{}, err
	}
	return m.d.binds[tok.Span.Start], nil
}

type fakeFacts struct{}

var fakeOperators = map[string]PredefinedOperator{
	"+":  OpAddition,
	"+=": OpAddition,
	"-":  OpSubtraction,
	"*":  OpMultiplication,
	"==": OpEquality,
	"!=": OpInequality,
	"<":  OpLessThan,
	">":  OpGreaterThan,
	"++": OpIncrement,
	"!":  OpLogicalNot,
}

func (fakeFacts) PredefinedOperator(tok Token) PredefinedOperator {
	if tok.Kind != TokenPunctuation {
		return OpNone
	}
	return fakeOperators[tok.Text]
}

func (fakeFacts) IsSuppressionAttribute(name string) bool {
	return name == "SuppressMessage" || name == "SuppressMessageAttribute"
}

func (fakeFacts) IsCaseSensitive() bool { return true }

var fakeKeywords = map[string]bool{"using": true, "global": true, "if": true, "new": true, "return": true, "class": true, "var": true, "operator": true}

// lex splits src into tokens. Text after "///" up to the end of the line
// is trivia.
func lex(src string) []Token {
	var toks []Token
	trivia := false
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			trivia = false
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "///"):
			trivia = true
			i += 3
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			j := i
			for j < len(src) && (src[j] == '_' || src[j] >= 'a' && src[j] <= 'z' || src[j] >= 'A' && src[j] <= 'Z' || src[j] >= '0' && src[j] <= '9') {
				j++
			}
			kind := TokenIdentifier
			if fakeKeywords[src[i:j]] {
				kind = TokenKeyword
			}
			toks = append(toks, Token{Kind: kind, Text: src[i:j], Span: Span{i, j}, Trivia: trivia})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			toks = append(toks, Token{Kind: TokenNumber, Text: src[i:j], Span: Span{i, j}, Trivia: trivia})
			i = j
		case c == '"':
			j := strings.IndexByte(src[i+1:], '"') + i + 2
			toks = append(toks, Token{Kind: TokenString, Text: src[i:j], Span: Span{i, j}, Trivia: trivia})
			i = j
		default:
			j := i + 1
			if i+1 < len(src) {
				switch src[i : i+2] {
				case "==", "!=", "<=", ">=", "+=", "-=", "++", "--", "&&", "||":
					j = i + 2
				}
			}
			toks = append(toks, Token{Kind: TokenPunctuation, Text: src[i:j], Span: Span{i, j}, Trivia: trivia})
			i = j
		}
	}
	return toks
}
