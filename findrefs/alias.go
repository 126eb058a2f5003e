package findrefs

import (
	"context"
	"strings"
)

// aliasFinder reports references made through import aliases such as
// `using F = C.M;`, including aliases of aliases and project-wide global
// aliases.
type aliasFinder struct{}

func (aliasFinder) finder()      {}
func (aliasFinder) Name() string { return "alias" }

func (aliasFinder) CanFind(sym *Symbol) bool { return memberFinder{}.CanFind(sym) }

func (aliasFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	if !opts.CascadeThroughAliases {
		return nil, nil
	}
	var docs []*Document
	for i, e := range p.Entries {
		names := aliasNamesFor(sym, visibleAliases(e, p), e.caseSensitive)
		if len(names) == 0 {
			continue
		}
		keep := false
		for _, a := range e.Aliases {
			if !a.Global && names[foldName(a.Name, e.caseSensitive)] {
				keep = true
				break
			}
		}
		if !keep {
			for name := range names {
				if e.ContainsIdentifier(name) {
					keep = true
					break
				}
			}
		}
		if keep {
			docs = append(docs, p.Documents[i])
		}
	}
	return docs, nil
}

func (aliasFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	cs := dc.Facts.IsCaseSensitive()
	names := aliasNamesFor(sym, visibleAliases(dc.Entry, dc.Project), cs)
	if len(names) == 0 {
		return nil, nil
	}
	var toks []Token
	for _, tok := range dc.Tree.Tokens(true) {
		if tok.Kind == TokenIdentifier && names[foldName(tok.Text, cs)] && !dc.insideAliasDirective(tok.Span) {
			toks = append(toks, tok)
		}
	}
	locs, err := dc.findInTokens(ctx, sym, toks)
	if err != nil {
		return nil, err
	}
	var kept []FinderLocation
	for _, l := range locs {
		if l.Reason == ReasonViaAlias {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

// visibleAliases returns the aliases in effect in the entry's document:
// its own file-local aliases plus the project's global aliases.
func visibleAliases(e *IndexEntry, p *ProjectIndex) []AliasDirective {
	var as []AliasDirective
	for _, a := range e.Aliases {
		if !a.Global {
			as = append(as, a)
		}
	}
	if p != nil {
		as = append(as, p.GlobalAliases...)
	}
	return as
}

// aliasNamesFor returns the alias names that may denote sym: aliases whose
// target ends in sym's name, and transitively aliases whose target ends in
// one of those.
func aliasNamesFor(sym *Symbol, aliases []AliasDirective, caseSensitive bool) map[string]bool {
	if len(aliases) == 0 {
		return nil
	}
	want := map[string]bool{foldName(sym.Name, caseSensitive): true}
	names := map[string]bool{}
	for changed := true; changed; {
		changed = false
		for _, a := range aliases {
			n := foldName(a.Name, caseSensitive)
			if names[n] {
				continue
			}
			last := foldName(lastSegment(a.Target), caseSensitive)
			if want[last] || names[last] {
				names[n] = true
				changed = true
			}
		}
	}
	return names
}

func foldName(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// lastSegment returns the final identifier of a qualified name, ignoring
// generic arguments and an extern alias qualifier.
func lastSegment(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, "<"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "`"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
