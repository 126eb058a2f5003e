package csharp

import (
	"context"
	"sort"
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

// SymbolAt returns the symbol declared or referenced by the token covering
// offset, with the token's span. Ambiguous references yield their first
// candidate.
func (m *Model) SymbolAt(ctx context.Context, offset int) (*findrefs.Symbol, findrefs.Span, error) {
	toks := m.f.tokens
	i := sort.Search(len(toks), func(i int) bool { return toks[i].Span.End > offset })
	if i == len(toks) || !toks[i].Span.Contains(offset) {
		// Positions just past an identifier still select it.
		if i > 0 && toks[i-1].Span.End == offset {
			i--
		} else if i == len(toks) || toks[i].Span.Start != offset {
			return nil, findrefs.Span{}, nil
		}
	}
	tok := toks[i]
	if ref, ok := m.f.declAt[tok.Span.Start]; ok && !tok.Trivia {
		return ref.symbol(m.d), tok.Span, nil
	}
	for _, a := range m.f.aliases {
		if a.NameSpan == tok.Span {
			info, err := m.aliasTarget(a)
			return info, tok.Span, err
		}
	}
	info, err := m.SymbolInfo(ctx, tok)
	if err != nil {
		return nil, findrefs.Span{}, err
	}
	if info.Symbol != nil {
		return info.Symbol, tok.Span, nil
	}
	if len(info.Candidates) > 0 {
		return info.Candidates[0], tok.Span, nil
	}
	return nil, tok.Span, nil
}

// aliasTarget returns the symbol an alias directive names.
func (m *Model) aliasTarget(a findrefs.AliasDirective) (*findrefs.Symbol, error) {
	b := m.aliasBinding(a, -1, 0, map[string]bool{})
	if len(b.syms) == 0 {
		return nil, nil
	}
	return b.syms[0], nil
}

// Lookup returns the symbols named by query. A query is a qualified name
// such as "N.C", "N.C.M" or "C.op_Equality", optionally followed by a
// parameter list "(System.Int32,N.C)" selecting overloads. Predefined
// operators are named by their System type: "System.Int32.op_Addition".
func (d *Declarations) Lookup(query string) []*findrefs.Symbol {
	query = strings.Join(strings.Fields(query), "")
	query = strings.TrimPrefix(query, "global::")
	if len(query) > 2 && query[1] == ':' {
		query = query[2:]
	}
	name, params, hasParams := query, []string(nil), false
	if i := strings.IndexByte(query, '('); i > 0 && strings.HasSuffix(query, ")") {
		name, hasParams = query[:i], true
		if inner := query[i+1 : len(query)-1]; inner != "" {
			params = splitTopLevel(inner, ',')
		}
	}

	var syms []*findrefs.Symbol
	if !hasParams {
		for _, t := range d.typesMatching(name) {
			syms = append(syms, t.Symbol())
		}
	}
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		owner, member := name[:dot], name[dot+1:]
		if sym := BuiltinOperator(canonicalType(owner), member); sym != nil {
			return []*findrefs.Symbol{sym}
		}
		for _, t := range d.typesMatching(owner) {
			for _, m := range t.Members {
				if m.Name != member || (hasParams && !d.paramsMatch(m, params)) {
					continue
				}
				syms = append(syms, d.MemberSymbol(m))
			}
		}
	}
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].ID() < syms[j].ID() })
	return dedupSymbols(syms)
}

// typesMatching returns the type parts whose full name is name or ends
// with "." + name.
func (d *Declarations) typesMatching(name string) []*TypeDecl {
	if parts := d.types[name]; len(parts) > 0 {
		return parts
	}
	var types []*TypeDecl
	for full, parts := range d.types {
		if strings.HasSuffix(full, "."+name) {
			types = append(types, parts...)
		}
	}
	return types
}

func (d *Declarations) paramsMatch(m *MemberDecl, params []string) bool {
	if len(m.Params) != len(params) {
		return false
	}
	for i, p := range d.parameterTypes(m) {
		if !sameType(p, canonicalType(params[i])) {
			return false
		}
	}
	return true
}

func dedupSymbols(syms []*findrefs.Symbol) []*findrefs.Symbol {
	var out []*findrefs.Symbol
	seen := make(map[string]bool)
	for _, s := range syms {
		if seen[s.ID()] {
			continue
		}
		seen[s.ID()] = true
		out = append(out, s)
	}
	return out
}

// DeclarationSites returns where sym is declared, one site per partial
// declaration. Builtin operators have none.
func (d *Declarations) DeclarationSites(sym *findrefs.Symbol) []findrefs.DeclarationSite {
	if sym == nil {
		return nil
	}
	if sym.Declaration != nil {
		return []findrefs.DeclarationSite{*sym.Declaration}
	}
	var sites []findrefs.DeclarationSite
	switch sym.Kind {
	case findrefs.KindType:
		for _, t := range d.Type(sym.QualifiedName()) {
			sites = append(sites, findrefs.DeclarationSite{Document: t.File.Doc, Span: t.NameSpan})
		}
	default:
		id := sym.ID()
		for _, t := range d.Type(sym.ContainingType) {
			for _, m := range t.Members {
				if d.MemberSymbol(m).ID() == id {
					sites = append(sites, findrefs.DeclarationSite{Document: t.File.Doc, Span: m.NameSpan})
				}
			}
		}
	}
	return sites
}
