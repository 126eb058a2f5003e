package csharp

import (
	"sort"
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

// resolver resolves names in the context of one file.
type resolver struct {
	f *File
	d *Declarations
}

// maxBaseDepth bounds base type walks so cyclic inheritance terminates.
const maxBaseDepth = 16

// enclosingTypes returns the types declared around pos, innermost first.
func (r *resolver) enclosingTypes(pos int) []*TypeDecl {
	var types []*TypeDecl
	for _, t := range r.f.Types {
		if t.Span.Contains(pos) {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Span.Len() < types[j].Span.Len() })
	return types
}

func outers(t *TypeDecl) []*TypeDecl {
	var types []*TypeDecl
	for o := t.Outer; o != nil; o = o.Outer {
		types = append(types, o)
	}
	return types
}

func (r *resolver) namespaceAt(pos int) string {
	best := ""
	for _, ns := range r.f.namespaces {
		if ns.Span.Contains(pos) && len(ns.Name) > len(best) {
			best = ns.Name
		}
	}
	return best
}

func (r *resolver) usings() []string {
	us := append([]string(nil), r.f.usings...)
	return append(us, r.d.globalUsings...)
}

// aliases returns the aliases visible in the file.
func (r *resolver) aliases() []findrefs.AliasDirective {
	var as []findrefs.AliasDirective
	for _, a := range r.f.aliases {
		if !a.Global {
			as = append(as, a)
		}
	}
	return append(as, r.d.globalAliases...)
}

func (r *resolver) alias(name string) (findrefs.AliasDirective, bool) {
	for _, a := range r.aliases() {
		if a.Name == name {
			return a, true
		}
	}
	return findrefs.AliasDirective{}, false
}

// resolveType resolves a type as written at pos. It returns the resolved
// name and whether a declaration for it is known. Predefined types resolve
// to their System name; unknown names are returned as written.
func (r *resolver) resolveType(text string, pos int) (string, bool) {
	return r.resolveTypeIn(text, pos, r.enclosingTypes(pos), 0)
}

func (r *resolver) resolveTypeIn(text string, pos int, enclosing []*TypeDecl, depth int) (string, bool) {
	text = strings.Join(strings.Fields(text), "")
	if text == "" || depth > maxBaseDepth {
		return "", false
	}
	if strings.HasSuffix(text, "?") {
		return r.resolveTypeIn(text[:len(text)-1], pos, enclosing, depth)
	}
	if strings.HasSuffix(text, "]") {
		if i := strings.LastIndexByte(text, '['); i > 0 {
			elem, ok := r.resolveTypeIn(text[:i], pos, enclosing, depth)
			return elem + "[]", ok
		}
	}
	if strings.HasPrefix(text, "(") {
		return "", false
	}
	if full, ok := keywordTypes[text]; ok {
		return full, false
	}
	base, args := typeParts(text)
	if len(args) > 0 {
		resolved := make([]string, len(args))
		for i, a := range args {
			resolved[i], _ = r.resolveTypeIn(a, pos, enclosing, depth+1)
			if resolved[i] == "" {
				resolved[i] = a
			}
		}
		full, ok := r.resolveTypeName(base, pos, enclosing, depth)
		return full + "<" + strings.Join(resolved, ",") + ">", ok
	}
	return r.resolveTypeName(base, pos, enclosing, depth)
}

// resolveTypeName resolves a possibly qualified type name without type
// arguments.
func (r *resolver) resolveTypeName(name string, pos int, enclosing []*TypeDecl, depth int) (string, bool) {
	if i := strings.Index(name, "::"); i >= 0 {
		qual, rest := name[:i], name[i+2:]
		if qual == "global" {
			if len(r.d.Type(rest)) > 0 {
				return rest, true
			}
			return rest, false
		}
		if a, ok := r.alias(qual); ok {
			return r.resolveTypeName(a.Target+"."+rest, a.Span.Start, nil, depth+1)
		}
		return name, false
	}
	if !strings.Contains(name, ".") {
		if full := r.simpleType(name, pos, enclosing, depth); full != "" {
			return full, true
		}
		if full, ok := keywordTypes[name]; ok {
			return full, false
		}
		return name, false
	}

	first, rest := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		first, rest = name[:i], name[i+1:]
	}
	if outer := r.simpleType(first, pos, enclosing, depth); outer != "" {
		if full := outer + "." + rest; len(r.d.Type(full)) > 0 {
			return full, true
		}
	}
	for ns := r.namespaceAt(pos); ns != ""; ns = parentNamespace(ns) {
		if full := ns + "." + name; len(r.d.Type(full)) > 0 {
			return full, true
		}
	}
	if len(r.d.Type(name)) > 0 {
		return name, true
	}
	if a, ok := r.alias(first); ok {
		return r.resolveTypeName(a.Target+"."+rest, a.Span.Start, nil, depth+1)
	}
	return name, false
}

func parentNamespace(ns string) string {
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ""
}

// simpleType looks up an unqualified type name: nested types of the
// enclosing types and their bases, the namespace chain, aliases and using
// directives, in that order.
func (r *resolver) simpleType(name string, pos int, enclosing []*TypeDecl, depth int) string {
	for _, t := range enclosing {
		if t.Name == name {
			return t.FullName()
		}
		if full := r.nestedType(t.FullName(), name, depth); full != "" {
			return full
		}
	}
	for ns := r.namespaceAt(pos); ns != ""; ns = parentNamespace(ns) {
		if full := ns + "." + name; len(r.d.Type(full)) > 0 {
			return full
		}
	}
	if len(r.d.Type(name)) > 0 {
		return name
	}
	if a, ok := r.alias(name); ok {
		if full, ok := r.resolveTypeName(a.Target, a.Span.Start, nil, depth+1); ok {
			return full
		}
	}
	for _, u := range r.usings() {
		if full := u + "." + name; len(r.d.Type(full)) > 0 {
			return full
		}
	}
	return ""
}

// nestedType finds a type named name nested in full or one of its bases.
func (r *resolver) nestedType(full, name string, depth int) string {
	if depth > maxBaseDepth {
		return ""
	}
	if nested := full + "." + name; len(r.d.Type(nested)) > 0 {
		return nested
	}
	for _, b := range r.bases(full, depth) {
		if nested := r.nestedType(b, name, depth+1); nested != "" {
			return nested
		}
	}
	return ""
}

// bases returns the resolved, declared base types of full.
func (r *resolver) bases(full string, depth int) []string {
	var bases []string
	for _, t := range r.d.Type(full) {
		tr := &resolver{f: t.File, d: r.d}
		for _, b := range t.Bases {
			if resolved, ok := tr.resolveTypeIn(b, t.Span.Start, outers(t), depth+1); ok {
				bases = append(bases, resolved)
			}
		}
	}
	return bases
}

// members returns the members named name of type full and its bases.
// Members of a derived type hide those of its bases.
func (r *resolver) members(full, name string) []*MemberDecl {
	seen := make(map[string]bool)
	var visit func(t string, depth int) []*MemberDecl
	visit = func(t string, depth int) []*MemberDecl {
		base, _ := typeParts(t)
		if seen[base] || depth > maxBaseDepth {
			return nil
		}
		seen[base] = true
		var ms []*MemberDecl
		for _, part := range r.d.Type(base) {
			for _, m := range part.Members {
				if m.Name == name {
					ms = append(ms, m)
				}
			}
		}
		if len(ms) > 0 {
			return ms
		}
		for _, b := range r.bases(base, depth) {
			if ms := visit(b, depth+1); len(ms) > 0 {
				return ms
			}
		}
		return nil
	}
	return visit(full, 0)
}

// extensionMethods returns the extension methods named name applicable to
// receiver type recv.
func (r *resolver) extensionMethods(recv, name string) []*MemberDecl {
	var ms []*MemberDecl
	for _, m := range r.d.MembersNamed(name) {
		if m.Kind != findrefs.KindMethod || !m.Static || len(m.Params) == 0 || m.Params[0].Modifier != "this" {
			continue
		}
		if recv == "" || sameType(m.Params[0].Type, recv) || r.derivesFrom(recv, m.Params[0].Type) {
			ms = append(ms, m)
		}
	}
	return ms
}

// derivesFrom reports whether type full has a base written as target.
func (r *resolver) derivesFrom(full, target string) bool {
	seen := make(map[string]bool)
	var visit func(t string, depth int) bool
	visit = func(t string, depth int) bool {
		if seen[t] || depth > maxBaseDepth {
			return false
		}
		seen[t] = true
		for _, b := range r.bases(t, depth) {
			if sameType(target, b) || visit(b, depth+1) {
				return true
			}
		}
		return false
	}
	return visit(full, 0)
}

// memberType returns the resolved type of a member's value.
func (r *resolver) memberType(m *MemberDecl) string {
	if m.Kind == findrefs.KindField && m.Type == m.Owner.Name {
		return m.Owner.FullName()
	}
	tr := &resolver{f: m.Owner.File, d: r.d}
	t, _ := tr.resolveTypeIn(m.Type, m.NameSpan.Start, append([]*TypeDecl{m.Owner}, outers(m.Owner)...), 0)
	return t
}
