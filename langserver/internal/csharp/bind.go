package csharp

import (
	"context"
	"sort"
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

// Model binds the tokens of one File against a project's declarations. It
// implements findrefs.SemanticModel and is safe for concurrent use.
type Model struct {
	resolver
}

var _ findrefs.SemanticModel = (*Model)(nil)

func NewModel(f *File, d *Declarations) *Model {
	return &Model{resolver{f: f, d: d}}
}

// maxBindDepth bounds the recursion of expression typing.
const maxBindDepth = 24

// binding is what a name or expression denotes.
type binding struct {
	syms []*findrefs.Symbol
	// ambiguous is set when syms are candidates rather than one symbol.
	ambiguous bool
	// typ is the resolved type of the value, or of the type itself when
	// isType is set.
	typ    string
	isType bool
	ns     string
	chain  []string
	event  bool
}

func (b binding) info() findrefs.SymbolInfo {
	var info findrefs.SymbolInfo
	switch {
	case len(b.syms) == 1 && !b.ambiguous:
		info.Symbol = b.syms[0]
		info.AliasChain = b.chain
	case len(b.syms) > 0:
		info.Candidates = b.syms
	}
	return info
}

func typeBinding(t *TypeDecl) binding {
	return binding{syms: []*findrefs.Symbol{t.Symbol()}, typ: t.FullName(), isType: true}
}

func (m *Model) SymbolInfo(ctx context.Context, tok findrefs.Token) (findrefs.SymbolInfo, error) {
	if err := ctx.Err(); err != nil {
		return findrefs.SymbolInfo{}, err
	}
	if tok.Trivia {
		return m.bindCref(tok).info(), nil
	}
	i, ok := m.f.codeAt[tok.Span.Start]
	if !ok || m.f.code[i].Span != tok.Span {
		return findrefs.SymbolInfo{}, nil
	}
	if _, ok := m.f.declAt[tok.Span.Start]; ok || m.inAliasDirective(tok.Span.Start) {
		return findrefs.SymbolInfo{}, nil
	}
	switch tok.Kind {
	case findrefs.TokenIdentifier:
		b := m.bindName(i, 0)
		if b.isType || b.ns != "" {
			return b.info(), nil
		}
		info := b.info()
		if info.Symbol != nil || len(info.Candidates) > 0 {
			info.Usage = m.usage(i)
		}
		return info, nil
	case findrefs.TokenPunctuation:
		return m.bindOperator(i).info(), nil
	}
	return findrefs.SymbolInfo{}, nil
}

func (m *Model) inAliasDirective(pos int) bool {
	for _, a := range m.f.aliases {
		if a.Span.Contains(pos) {
			return true
		}
	}
	return false
}

func (m *Model) text(i int) string {
	if i < 0 || i >= len(m.f.code) {
		return ""
	}
	return m.f.code[i].Text
}

// bindName binds the identifier at code index i.
func (m *Model) bindName(i, depth int) binding {
	if depth > maxBindDepth {
		return binding{}
	}
	tok := m.f.code[i]
	switch prev := m.text(i - 1); prev {
	case ".", "?.", "->":
		recv := m.exprType(i-2, depth+1)
		return m.memberAccess(recv, i, depth)
	case "::":
		full, ok := m.resolveType(m.text(i-2)+"::"+tok.Text, tok.Span.Start)
		return m.typeNamed(full, ok)
	case "new":
		full, ok := m.resolveType(tok.Text, tok.Span.Start)
		b := m.typeNamed(full, ok)
		b.isType = false
		b.typ = full
		return b
	case "(", ",":
		if m.text(i+1) == ":" {
			// Named argument.
			return binding{}
		}
		fallthrough
	case "{":
		if next := m.text(i + 1); next == "=" && (prev == "{" || prev == ",") {
			if t := m.initializedType(i - 1); t != "" {
				return m.memberAccess(binding{typ: t}, i, depth)
			}
		}
	}
	return m.simpleName(i, depth)
}

func (m *Model) typeNamed(full string, declared bool) binding {
	if !declared {
		return binding{typ: full, isType: true}
	}
	parts := m.d.Type(full)
	if len(parts) == 0 {
		return binding{typ: full, isType: true}
	}
	return typeBinding(parts[0])
}

// simpleName binds an unqualified name: locals, members of the enclosing
// types, types of the enclosing namespaces, aliases, other types and
// finally static usings.
func (m *Model) simpleName(i, depth int) binding {
	tok := m.f.code[i]
	name := strings.TrimPrefix(tok.Text, "@")
	pos := tok.Span.Start

	gotoLabel := m.text(i-1) == "goto"
	for _, l := range m.f.locals {
		if l.Name != name || !l.Scope.Contains(pos) || (l.Kind == findrefs.KindLabel) != gotoLabel {
			continue
		}
		if l.Kind == findrefs.KindLocal && pos < l.NameSpan.Start {
			continue
		}
		return binding{syms: []*findrefs.Symbol{l.Symbol()}, typ: m.localType(l, depth)}
	}
	if gotoLabel {
		return binding{}
	}

	enclosing := m.enclosingTypes(pos)
	for _, t := range enclosing {
		if ms := m.members(t.FullName(), name); len(ms) > 0 {
			return m.memberBinding(ms, i, depth)
		}
		if t.Name == name {
			return typeBinding(t)
		}
		if full := m.nestedType(t.FullName(), name, 0); full != "" {
			return m.typeNamed(full, true)
		}
	}
	for ns := m.namespaceAt(pos); ns != ""; ns = parentNamespace(ns) {
		if full := ns + "." + name; len(m.d.Type(full)) > 0 {
			return m.typeNamed(full, true)
		}
	}
	if a, ok := m.alias(name); ok {
		return m.aliasBinding(a, i, depth, map[string]bool{})
	}
	if len(m.d.Type(name)) > 0 {
		return m.typeNamed(name, true)
	}
	for _, u := range m.usings() {
		if full := u + "." + name; len(m.d.Type(full)) > 0 {
			return m.typeNamed(full, true)
		}
	}
	for _, su := range m.f.staticUsings {
		full, ok := m.resolveType(su, pos)
		if !ok {
			continue
		}
		if ms := m.members(full, name); len(ms) > 0 {
			return m.memberBinding(ms, i, depth)
		}
	}
	if full, ok := keywordTypes[name]; ok {
		return binding{typ: full, isType: true}
	}
	if m.d.IsNamespace(name) {
		return binding{ns: name}
	}
	return binding{}
}

// aliasBinding binds a use of alias a at code index i. Aliases of aliases
// extend the chain.
func (m *Model) aliasBinding(a findrefs.AliasDirective, i, depth int, seen map[string]bool) binding {
	if seen[a.Name] {
		return binding{}
	}
	seen[a.Name] = true
	target := strings.TrimPrefix(a.Target, "global::")
	var b binding
	if next, ok := m.alias(target); ok && !strings.Contains(target, ".") {
		b = m.aliasBinding(next, i, depth, seen)
	} else if full, ok := m.resolveTypeName(target, a.Span.Start, nil, 0); ok {
		b = m.typeNamed(full, true)
	} else if dot := strings.LastIndexByte(target, '.'); dot > 0 {
		qual, name := target[:dot], target[dot+1:]
		if full, ok := m.resolveTypeName(qual, a.Span.Start, nil, 0); ok {
			if ms := m.members(full, name); len(ms) > 0 {
				b = m.memberBinding(ms, i, depth)
			}
		}
		if len(b.syms) == 0 && m.d.IsNamespace(target) {
			b = binding{ns: target}
		}
	} else if m.d.IsNamespace(target) {
		b = binding{ns: target}
	}
	if len(b.syms) > 0 {
		b.chain = append([]string{a.Name}, b.chain...)
	}
	return b
}

// memberAccess binds the name at i as a member of recv.
func (m *Model) memberAccess(recv binding, i, depth int) binding {
	name := strings.TrimPrefix(m.text(i), "@")
	if recv.ns != "" {
		full := recv.ns + "." + name
		if len(m.d.Type(full)) > 0 {
			return m.typeNamed(full, true)
		}
		if m.d.IsNamespace(full) {
			return binding{ns: full}
		}
		return binding{}
	}
	if recv.typ == "" {
		var ms []*MemberDecl
		for _, md := range m.d.MembersNamed(name) {
			if md.MethodKind != findrefs.MethodUserDefinedOperator && md.MethodKind != findrefs.MethodConversion {
				ms = append(ms, md)
			}
		}
		if len(ms) == 0 {
			return binding{}
		}
		b := m.memberBinding(ms, i, depth)
		b.ambiguous = true
		b.typ = ""
		return b
	}
	if recv.isType {
		if full := m.nestedType(recv.typ, name, 0); full != "" {
			return m.typeNamed(full, true)
		}
	}
	if ms := m.members(recv.typ, name); len(ms) > 0 {
		return m.memberBinding(ms, i, depth)
	}
	if ms := m.extensionMethods(recv.typ, name); len(ms) > 0 && !recv.isType {
		return m.memberBinding(ms, i, depth)
	}
	return binding{}
}

// memberBinding picks among the members ms named by the token at i. Calls
// select an overload by arguments.
func (m *Model) memberBinding(ms []*MemberDecl, i, depth int) binding {
	next := -1
	if i >= 0 {
		next = m.skipTypeArguments(i + 1)
	}
	var methods []*MemberDecl
	for _, md := range ms {
		if md.Kind == findrefs.KindMethod {
			methods = append(methods, md)
		}
	}
	if len(methods) == 0 {
		md := ms[0]
		return binding{syms: []*findrefs.Symbol{m.d.MemberSymbol(md)}, typ: m.memberType(md), event: md.Kind == findrefs.KindEvent}
	}
	if m.text(next) != "(" {
		return m.membersBinding(methods, len(methods) > 1)
	}
	args := m.argumentTypes(next, depth)
	chosen, ambiguous := m.selectOverload(methods, args)
	b := m.membersBinding(chosen, ambiguous)
	if !ambiguous && len(chosen) == 1 {
		b.typ = m.memberType(chosen[0])
	}
	return b
}

func (m *Model) membersBinding(ms []*MemberDecl, ambiguous bool) binding {
	b := binding{ambiguous: ambiguous}
	for _, md := range ms {
		b.syms = append(b.syms, m.d.MemberSymbol(md))
	}
	sort.SliceStable(b.syms, func(i, j int) bool { return b.syms[i].ID() < b.syms[j].ID() })
	return b
}

// selectOverload returns the overload matching args, or the remaining
// candidates when there is no single best match. Unknown argument types
// are empty strings.
func (m *Model) selectOverload(methods []*MemberDecl, args []string) ([]*MemberDecl, bool) {
	var applicable []*MemberDecl
	for _, md := range methods {
		if arityMatches(md, len(args)) {
			applicable = append(applicable, md)
		}
	}
	if len(applicable) == 0 {
		return methods, true
	}
	best, bestScore := []*MemberDecl(nil), -1
	for _, md := range applicable {
		score, ok := m.argumentScore(md, args)
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore = []*MemberDecl{md}, score
		case score == bestScore:
			best = append(best, md)
		}
	}
	switch len(best) {
	case 0:
		return applicable, true
	case 1:
		return best, false
	}
	return best, true
}

func arityMatches(md *MemberDecl, n int) bool {
	ps := md.Params
	if len(ps) > 0 && ps[0].Modifier == "this" && md.Static {
		// Extension methods are called with the receiver outside the
		// argument list.
		ps = ps[1:]
	}
	if len(ps) > 0 && ps[len(ps)-1].Modifier == "params" && n >= len(ps)-1 {
		return true
	}
	if n > len(ps) {
		return false
	}
	for _, p := range ps[n:] {
		if !p.Optional {
			return false
		}
	}
	return true
}

// argumentScore counts the arguments whose type matches exactly. ok is
// false when a known argument type cannot convert to its parameter.
func (m *Model) argumentScore(md *MemberDecl, args []string) (int, bool) {
	ps := md.Params
	if len(ps) > 0 && ps[0].Modifier == "this" && md.Static {
		ps = ps[1:]
	}
	score := 0
	for i, arg := range args {
		if i >= len(ps) {
			break
		}
		p := ps[i]
		if arg == "" {
			continue
		}
		if sameType(p.Type, arg) {
			score++
			continue
		}
		if !m.convertible(md, p.Type, arg) {
			return 0, false
		}
	}
	return score, true
}

// convertible reports whether an argument of type arg may be passed for a
// parameter declared as param.
func (m *Model) convertible(md *MemberDecl, param, arg string) bool {
	tr := &resolver{f: md.Owner.File, d: m.d}
	full, declared := tr.resolveTypeIn(param, md.NameSpan.Start, append([]*TypeDecl{md.Owner}, outers(md.Owner)...), 0)
	if full == "System.Object" {
		return true
	}
	if isNumeric(full) && isNumeric(arg) {
		return numericRank[arg] <= numericRank[full]
	}
	if !declared && !isPredefined(full) {
		// Type parameters and types declared elsewhere.
		return true
	}
	return m.derivesFrom(arg, param)
}

// localType returns the resolved type of a local.
func (m *Model) localType(l *LocalDecl, depth int) string {
	if l.Type == "" {
		return ""
	}
	if l.Type != "var" {
		t, _ := m.resolveType(l.Type, l.NameSpan.Start)
		return t
	}
	if l.Init < 0 || depth > maxBindDepth {
		return ""
	}
	s, ok := m.f.codeAt[l.Init]
	if !ok {
		return ""
	}
	e := m.expressionEnd(s)
	t := m.rangeType(s, e, depth+1)
	if l.Element {
		return elementType(t)
	}
	return t
}

// usage classifies the reference at code index i as a read or a write.
func (m *Model) usage(i int) findrefs.ValueUsage {
	start := i
	for start >= 2 && (m.text(start-1) == "." || m.text(start-1) == "?.") {
		start -= 2
	}
	switch m.text(start - 1) {
	case "out":
		return findrefs.UsageWrite
	case "ref":
		return findrefs.UsageReadWrite
	case "++", "--":
		return findrefs.UsageReadWrite
	}
	switch next := m.text(i + 1); {
	case next == "=":
		return findrefs.UsageWrite
	case next == "??=" || compoundBase[next] != "":
		return findrefs.UsageReadWrite
	case next == "++" || next == "--":
		return findrefs.UsageReadWrite
	}
	return findrefs.UsageRead
}

// initializedType returns the type created by the object creation whose
// initializer contains the member assignment following code index i.
func (m *Model) initializedType(i int) string {
	depth := 0
	for j := i; j >= 0; j-- {
		switch m.text(j) {
		case "}", ")", "]":
			depth++
		case "(", "[":
			depth--
		case "{":
			if depth == 0 {
				return m.creationType(j - 1)
			}
			depth--
		case ";":
			return ""
		}
		if depth < 0 {
			return ""
		}
	}
	return ""
}

// creationType returns the type of `new T(...)` or `new T` ending at code
// index j.
func (m *Model) creationType(j int) string {
	if m.text(j) == ")" {
		j = m.matchBackward(j) - 1
	}
	if j >= 0 && m.f.genericBrackets[m.f.code[j].Span.Start] && m.text(j) == ">" {
		j = m.matchBackward(j) - 1
	}
	end := j
	for j >= 2 && m.text(j-1) == "." {
		j -= 2
	}
	if j < 1 || m.text(j-1) != "new" {
		return ""
	}
	var b strings.Builder
	for k := j; k <= end; k++ {
		b.WriteString(m.text(k))
	}
	t, _ := m.resolveType(b.String(), m.f.code[j].Span.Start)
	return t
}
