// Package csharp is a C# front end for findrefs built on tree-sitter. It
// tokenizes documents, extracts declarations and binds tokens to symbols
// well enough to drive reference search over real sources.
package csharp

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	csharplang "github.com/smacker/go-tree-sitter/csharp"

	"github.com/sourcegraph/refsearch/findrefs"
)

// File is a parsed C# document. It implements findrefs.SyntaxTree. A File
// is immutable after Parse returns.
type File struct {
	Doc findrefs.DocumentID
	Src []byte

	tokens []findrefs.Token // source order, trivia included
	code   []findrefs.Token // tokens outside trivia
	codeAt map[int]int      // span start to index in code
	crefs  []*cref
	crefAt map[int]crefPos

	aliases      []findrefs.AliasDirective
	usings       []string
	globalUsings []string
	staticUsings []string
	attrs        []findrefs.Attribute

	namespaces []namespaceDecl
	// Types lists every type declared in the file, nested ones included.
	Types  []*TypeDecl
	locals []*LocalDecl

	// declAt maps the span start of declaring tokens to what they declare.
	declAt map[int]declRef
	// genericBrackets holds the span starts of '<' and '>' tokens that
	// delimit type argument or type parameter lists.
	genericBrackets map[int]bool
}

type namespaceDecl struct {
	Name string
	Span findrefs.Span
}

// cref is the tokenized value of a documentation cref attribute.
type cref struct {
	span   findrefs.Span
	tokens []findrefs.Token
}

type crefPos struct {
	cref  *cref
	index int
}

func (f *File) Tokens(descendIntoTrivia bool) []findrefs.Token {
	if descendIntoTrivia {
		return f.tokens
	}
	return f.code
}

func (f *File) AliasDirectives() []findrefs.AliasDirective { return f.aliases }

func (f *File) Attributes() []findrefs.Attribute { return f.attrs }

// Usings returns the namespaces imported by non-alias using directives.
func (f *File) Usings() []string { return f.usings }

// Parse parses src as the content of doc. Syntax errors do not fail the
// parse; the resulting File covers whatever tree-sitter recovered.
func Parse(ctx context.Context, doc findrefs.DocumentID, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(csharplang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "parse %s", doc.Path)
	}
	defer tree.Close()

	f := &File{
		Doc:             doc,
		Src:             src,
		codeAt:          make(map[int]int),
		crefAt:          make(map[int]crefPos),
		declAt:          make(map[int]declRef),
		genericBrackets: make(map[int]bool),
	}
	root := tree.RootNode()
	f.tokenize(root)
	f.mergeShifts()
	for _, tok := range f.tokens {
		if !tok.Trivia {
			f.codeAt[tok.Span.Start] = len(f.code)
			f.code = append(f.code, tok)
		}
	}
	w := &declWalker{f: f}
	w.walkChildren(root, "", nil, nil)
	f.collectDirectives(root)
	sort.SliceStable(f.locals, func(i, j int) bool { return f.locals[i].Scope.Len() < f.locals[j].Scope.Len() })
	return f, nil
}

func nodeSpan(n *sitter.Node) findrefs.Span {
	return findrefs.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func (f *File) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.Src)
}

var stringLiteralTypes = map[string]bool{
	"string_literal":          true,
	"verbatim_string_literal": true,
	"raw_string_literal":      true,
	"character_literal":       true,
}

var numericLiteralTypes = map[string]bool{
	"integer_literal": true,
	"real_literal":    true,
}

func (f *File) emit(kind findrefs.TokenKind, text string, span findrefs.Span, trivia bool) {
	f.tokens = append(f.tokens, findrefs.Token{Kind: kind, Text: text, Span: span, Trivia: trivia})
}

// tokenize appends the leaves of n in source order. String literals are
// single tokens; documentation comments contribute their cref contents as
// trivia tokens.
func (f *File) tokenize(n *sitter.Node) {
	typ := n.Type()
	span := nodeSpan(n)
	switch {
	case stringLiteralTypes[typ]:
		f.emit(findrefs.TokenString, f.text(n), span, false)
		return
	case typ == "identifier":
		if span.Len() > 0 {
			f.emit(findrefs.TokenIdentifier, f.text(n), span, false)
		}
		return
	case typ == "comment":
		f.comment(n)
		return
	case n.ChildCount() > 0:
		for i := 0; i < int(n.ChildCount()); i++ {
			f.tokenize(n.Child(i))
		}
		return
	}
	if span.Len() == 0 || n.IsMissing() {
		return
	}
	text := f.text(n)
	switch {
	case numericLiteralTypes[typ]:
		f.emit(findrefs.TokenNumber, text, span, false)
	case strings.Contains(typ, "string") || strings.Contains(typ, "content"):
		f.emit(findrefs.TokenString, text, span, false)
	case isWord(text):
		f.emit(findrefs.TokenKeyword, text, span, false)
	case n.IsNamed():
		f.emit(findrefs.TokenOther, text, span, false)
	default:
		if (text == "<" || text == ">") && isGenericList(n.Parent()) {
			f.genericBrackets[span.Start] = true
		}
		f.emit(findrefs.TokenPunctuation, text, span, false)
	}
}

func isGenericList(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "type_argument_list", "type_parameter_list", "function_pointer_type":
		return true
	}
	return false
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return true
}

// mergeShifts joins adjacent '>' tokens that tree-sitter split outside of
// type argument lists, so shift operators are seen as single tokens.
func (f *File) mergeShifts() {
	out := f.tokens[:0]
	for _, tok := range f.tokens {
		if n := len(out); n > 0 && !tok.Trivia && tok.Kind == findrefs.TokenPunctuation {
			prev := out[n-1]
			if prev.Kind == findrefs.TokenPunctuation && !prev.Trivia && prev.Span.End == tok.Span.Start &&
				strings.HasPrefix(prev.Text, ">") && strings.Trim(prev.Text, ">") == "" &&
				!f.genericBrackets[prev.Span.Start] && !f.genericBrackets[tok.Span.Start] {
				switch merged := prev.Text + tok.Text; merged {
				case ">>", ">>>", ">>=", ">>>=":
					out[n-1] = findrefs.Token{Kind: findrefs.TokenPunctuation, Text: merged, Span: findrefs.Span{Start: prev.Span.Start, End: tok.Span.End}}
					continue
				}
			}
		}
		out = append(out, tok)
	}
	f.tokens = out
}

var crefRe = regexp.MustCompile(`cref\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// comment tokenizes the cref values of a documentation comment.
func (f *File) comment(n *sitter.Node) {
	text := f.text(n)
	if !strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "/**") {
		return
	}
	base := int(n.StartByte())
	for _, m := range crefRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		c := &cref{span: findrefs.Span{Start: base + start, End: base + end}}
		c.tokens = lexCref(text[start:end], base+start)
		for i, tok := range c.tokens {
			f.crefAt[tok.Span.Start] = crefPos{cref: c, index: i}
			f.tokens = append(f.tokens, tok)
		}
		f.crefs = append(f.crefs, c)
	}
}

var crefEntities = []struct{ entity, text string }{
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&amp;", "&"},
	{"&quot;", `"`},
	{"&apos;", "'"},
}

var crefOperators = []string{
	">>>=", ">>>", "<<=", ">>=", "==", "!=", "<=", ">=", "&&", "||",
	"++", "--", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>",
}

// lexCref splits a cref value into trivia tokens. XML entities are decoded
// in token text while spans keep covering the encoded form.
func lexCref(s string, base int) []findrefs.Token {
	type ch struct {
		text  string
		start int
		end   int
	}
	var chars []ch
	for i := 0; i < len(s); {
		matched := false
		if s[i] == '&' {
			for _, e := range crefEntities {
				if strings.HasPrefix(s[i:], e.entity) {
					chars = append(chars, ch{e.text, i, i + len(e.entity)})
					i += len(e.entity)
					matched = true
					break
				}
			}
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(s[i:])
			chars = append(chars, ch{s[i : i+size], i, i + size})
			i += size
		}
	}

	var toks []findrefs.Token
	for i := 0; i < len(chars); {
		c := chars[i]
		r, _ := utf8.DecodeRuneInString(c.text)
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i
			var b strings.Builder
			for j < len(chars) {
				r, _ := utf8.DecodeRuneInString(chars[j].text)
				if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
					break
				}
				b.WriteString(chars[j].text)
				j++
			}
			kind := findrefs.TokenIdentifier
			if crefKeywords[b.String()] {
				kind = findrefs.TokenKeyword
			}
			toks = append(toks, findrefs.Token{Kind: kind, Text: b.String(), Span: findrefs.Span{Start: base + c.start, End: base + chars[j-1].end}, Trivia: true})
			i = j
		default:
			text, j := c.text, i+1
			for _, op := range crefOperators {
				n := utf8.RuneCountInString(op)
				if i+n > len(chars) {
					continue
				}
				var b strings.Builder
				for k := i; k < i+n; k++ {
					b.WriteString(chars[k].text)
				}
				if b.String() == op {
					text, j = op, i+n
					break
				}
			}
			toks = append(toks, findrefs.Token{Kind: findrefs.TokenPunctuation, Text: text, Span: findrefs.Span{Start: base + c.start, End: base + chars[j-1].end}, Trivia: true})
			i = j
		}
	}
	return toks
}

var crefKeywords = map[string]bool{
	"operator": true, "implicit": true, "explicit": true, "true": true, "false": true,
	"this": true, "ref": true, "out": true, "in": true, "checked": true,
}

// collectDirectives records using directives and attributes.
func (f *File) collectDirectives(root *sitter.Node) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "using_directive":
			f.usingDirective(n)
			return
		case "attribute":
			f.attribute(n)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
}

// codeTokens returns the code tokens inside span.
func (f *File) codeTokens(span findrefs.Span) []findrefs.Token {
	i := sort.Search(len(f.code), func(i int) bool { return f.code[i].Span.Start >= span.Start })
	j := i
	for j < len(f.code) && f.code[j].Span.End <= span.End {
		j++
	}
	return f.code[i:j]
}

func (f *File) usingDirective(n *sitter.Node) {
	span := nodeSpan(n)
	toks := f.codeTokens(span)
	global := false
	i := 0
	if i < len(toks) && toks[i].Text == "global" {
		global = true
		i++
	}
	if i >= len(toks) || toks[i].Text != "using" {
		return
	}
	i++
	if i < len(toks) && toks[i].Text == "unsafe" {
		i++
	}
	end := len(toks)
	if end > 0 && toks[end-1].Text == ";" {
		end--
	}
	if i < len(toks) && toks[i].Text == "static" {
		if i+1 < end {
			f.staticUsings = append(f.staticUsings, f.between(toks[i+1].Span.Start, toks[end-1].Span.End))
		}
		return
	}
	for eq := i; eq < end; eq++ {
		if toks[eq].Text != "=" {
			continue
		}
		if eq != i+1 || toks[i].Kind != findrefs.TokenIdentifier || eq+1 >= end {
			return
		}
		f.aliases = append(f.aliases, findrefs.AliasDirective{
			Name:     toks[i].Text,
			Target:   f.between(toks[eq+1].Span.Start, toks[end-1].Span.End),
			Global:   global,
			NameSpan: toks[i].Span,
			Span:     span,
		})
		return
	}
	if i < end {
		ns := f.between(toks[i].Span.Start, toks[end-1].Span.End)
		if global {
			f.globalUsings = append(f.globalUsings, ns)
		} else {
			f.usings = append(f.usings, ns)
		}
	}
}

// between returns the source text in [start, end) with whitespace removed.
func (f *File) between(start, end int) string {
	return strings.Join(strings.Fields(string(f.Src[start:end])), "")
}

func (f *File) attribute(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil && n.NamedChildCount() > 0 {
		name = n.NamedChild(0)
	}
	if name == nil {
		return
	}
	a := findrefs.Attribute{Name: f.between(int(name.StartByte()), int(name.EndByte())), Span: nodeSpan(n)}
	for p := n.Parent(); p != nil; p = p.Parent() {
		t := p.Type()
		if t == "global_attribute" || t == "global_attribute_list" {
			a.Global = true
			break
		}
		if t == "attribute_list" {
			for i := 0; i < int(p.NamedChildCount()); i++ {
				c := p.NamedChild(i)
				if c.Type() == "attribute_target_specifier" {
					target := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(f.text(c)), ":"))
					a.Global = target == "assembly" || target == "module"
				}
			}
			break
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		list := n.NamedChild(i)
		if list.Type() != "attribute_argument_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			if arg := list.NamedChild(j); arg.Type() == "attribute_argument" {
				a.Arguments = append(a.Arguments, f.attributeArgument(arg))
			}
		}
	}
	f.attrs = append(f.attrs, a)
}

func (f *File) attributeArgument(n *sitter.Node) findrefs.AttributeArgument {
	var arg findrefs.AttributeArgument
	toks := f.codeTokens(nodeSpan(n))
	if len(toks) >= 2 && toks[0].Kind == findrefs.TokenIdentifier && (toks[1].Text == "=" || toks[1].Text == ":") {
		arg.Name = toks[0].Text
	}
	if n.NamedChildCount() == 0 {
		return arg
	}
	value := n.NamedChild(int(n.NamedChildCount()) - 1)
	if value.Type() == "assignment_expression" {
		// Named arguments may parse as an assignment.
		if left := value.ChildByFieldName("left"); left != nil && arg.Name == "" {
			arg.Name = f.text(left)
		}
		right := value.ChildByFieldName("right")
		if right == nil {
			return arg
		}
		value = right
	}
	if !stringLiteralTypes[value.Type()] || value.Type() == "character_literal" {
		arg.Value = f.text(value)
		arg.ValueSpan = nodeSpan(value)
		return arg
	}
	raw := f.text(value)
	start := int(value.StartByte())
	prefix := strings.IndexByte(raw, '"')
	quotes := 1
	for prefix+quotes < len(raw) && raw[prefix+quotes] == '"' && value.Type() == "raw_string_literal" {
		quotes++
	}
	contentStart := prefix + quotes
	contentEnd := len(raw) - quotes
	if contentEnd < contentStart {
		contentEnd = contentStart
	}
	arg.IsString = true
	arg.Value = raw[contentStart:contentEnd]
	arg.ValueSpan = findrefs.Span{Start: start + contentStart, End: start + contentEnd}
	return arg
}
