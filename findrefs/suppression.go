package findrefs

import (
	"context"
	"strings"
)

// suppressionFinder reports SuppressMessage attributes that name a member
// or type by display string. Operators are covered by operatorFinder.
type suppressionFinder struct{}

func (suppressionFinder) finder()      {}
func (suppressionFinder) Name() string { return "suppression" }

func (suppressionFinder) CanFind(sym *Symbol) bool {
	return memberFinder{}.CanFind(sym) || sym.IsAccessor()
}

func (suppressionFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	if !opts.ConsiderSuppressions {
		return nil, nil
	}
	return p.filter(p.mayHaveSuppressions), nil
}

func (suppressionFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	return findSuppressionReferences(ctx, sym, dc)
}

// findSuppressionReferences scans the suppression attributes of a document
// for targets naming sym. The Target named argument is used when present;
// otherwise every positional string argument after the category.
func findSuppressionReferences(ctx context.Context, sym *Symbol, dc *DocumentContext) ([]FinderLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var locs []FinderLocation
	aliases := visibleAliases(dc.Entry, dc.Project)
	for _, attr := range dc.Tree.Attributes() {
		if !isSuppressionAttribute(dc.Facts, attr.Name, aliases) {
			continue
		}
		for _, arg := range suppressionTargetArguments(attr) {
			t, ok := parseSuppressionTarget(arg.Value)
			if !ok || !t.matches(sym, dc.Facts.IsCaseSensitive()) {
				continue
			}
			start := arg.ValueSpan.Start + t.nameOffset
			locs = append(locs, FinderLocation{
				Document: dc.Document.ID,
				Span:     Span{Start: start, End: start + len(t.name)},
				Reason:   ReasonViaSuppression,
			})
		}
	}
	return locs, nil
}

// isSuppressionAttribute reports whether an attribute written as name
// denotes a suppression attribute, expanding a leading alias.
func isSuppressionAttribute(facts SyntaxFacts, name string, aliases []AliasDirective) bool {
	if facts.IsSuppressionAttribute(name) {
		return true
	}
	first, rest := name, ""
	if i := strings.IndexAny(name, ".:"); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	for _, a := range aliases {
		if a.Name == first {
			return facts.IsSuppressionAttribute(a.Target + rest)
		}
	}
	return false
}

func suppressionTargetArguments(attr Attribute) []AttributeArgument {
	for _, arg := range attr.Arguments {
		if arg.Name == "Target" && arg.IsString {
			return []AttributeArgument{arg}
		}
	}
	var args []AttributeArgument
	positional := 0
	for _, arg := range attr.Arguments {
		if arg.Name != "" {
			continue
		}
		positional++
		if positional > 1 && arg.IsString {
			args = append(args, arg)
		}
	}
	return args
}

// suppressionTarget is a parsed suppression target such as
// "~M:N.C.M(System.Int32)" or "C.M".
type suppressionTarget struct {
	kind       byte // documentation ID prefix, 0 if absent
	name       string
	nameOffset int
	params     []string
	hasParams  bool
}

func parseSuppressionTarget(s string) (suppressionTarget, bool) {
	var t suppressionTarget
	off := 0
	trimmed := strings.TrimLeft(s, " \t")
	off += len(s) - len(trimmed)
	s = strings.TrimRight(trimmed, " \t")
	if strings.HasPrefix(s, "~") {
		s = s[1:]
		off++
	}
	if len(s) >= 2 && s[1] == ':' && strings.IndexByte("NTFPME", s[0]) >= 0 {
		t.kind = s[0]
		s = s[2:]
		off += 2
	}
	if i := strings.IndexByte(s, '('); i >= 0 {
		j := strings.LastIndexByte(s, ')')
		if j < i {
			return t, false
		}
		t.hasParams = true
		t.params = splitParameters(s[i+1 : j])
		s = s[:i]
	}
	t.name = strings.TrimSpace(s)
	t.nameOffset = off + strings.Index(s, t.name)
	if t.name == "" || strings.ContainsAny(t.name, " \t\"") {
		return t, false
	}
	return t, true
}

func splitParameters(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var params []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '{', '[', '(':
			depth++
		case '>', '}', ']', ')':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(params, strings.TrimSpace(s[start:]))
}

var docIDKinds = map[SymbolKind]byte{
	KindNamespace: 'N',
	KindType:      'T',
	KindMethod:    'M',
	KindProperty:  'P',
	KindEvent:     'E',
	KindField:     'F',
}

// matches reports whether t names sym. The target must be at least
// qualified by the containing type; types need a namespace qualifier
// unless the T: prefix is given.
func (t suppressionTarget) matches(sym *Symbol, caseSensitive bool) bool {
	if t.kind != 0 && docIDKinds[sym.Kind] != t.kind {
		return false
	}
	segs := splitQualified(t.name)
	full := splitQualified(sym.QualifiedName())
	minSegs := 2
	if sym.Kind == KindType && t.kind == 'T' {
		minSegs = 1
	}
	if len(segs) < minSegs || len(segs) > len(full) {
		return false
	}
	tail := full[len(full)-len(segs):]
	for i := range segs {
		if foldName(segs[i], caseSensitive) != foldName(tail[i], caseSensitive) {
			return false
		}
	}
	if t.hasParams && sym.Kind == KindMethod {
		if len(t.params) != len(sym.Parameters) {
			return false
		}
		for i, p := range t.params {
			if !sameTypeName(p, sym.Parameters[i]) {
				return false
			}
		}
	}
	return true
}

func splitQualified(name string) []string {
	name = strings.TrimPrefix(name, "global::")
	segs := strings.Split(name, ".")
	for i, s := range segs {
		if j := strings.IndexByte(s, '`'); j >= 0 {
			s = s[:j]
		}
		if j := strings.IndexByte(s, '<'); j >= 0 {
			s = s[:j]
		}
		segs[i] = strings.TrimSpace(s)
	}
	return segs
}

// builtinTypeNames maps keyword type names to their runtime type names.
var builtinTypeNames = map[string]string{
	"bool":    "Boolean",
	"byte":    "Byte",
	"sbyte":   "SByte",
	"char":    "Char",
	"decimal": "Decimal",
	"double":  "Double",
	"float":   "Single",
	"int":     "Int32",
	"uint":    "UInt32",
	"long":    "Int64",
	"ulong":   "UInt64",
	"short":   "Int16",
	"ushort":  "UInt16",
	"object":  "Object",
	"string":  "String",
	"nint":    "IntPtr",
	"nuint":   "UIntPtr",
}

// sameTypeName compares parameter type names loosely: keyword aliases are
// expanded and only the last qualified segment is compared.
func sameTypeName(a, b string) bool {
	norm := func(s string) string {
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "ref ")
		s = strings.TrimSuffix(s, "@")
		suffix := ""
		for strings.HasSuffix(s, "[]") || strings.HasSuffix(s, "?") {
			if strings.HasSuffix(s, "?") {
				suffix = "?" + suffix
				s = s[:len(s)-1]
			} else {
				suffix = "[]" + suffix
				s = s[:len(s)-2]
			}
		}
		if n, ok := builtinTypeNames[s]; ok {
			return n + suffix
		}
		return lastSegment(s) + suffix
	}
	return norm(a) == norm(b)
}
