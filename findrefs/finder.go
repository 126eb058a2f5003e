package findrefs

import (
	"context"
	"strings"

	log15 "gopkg.in/inconshreveable/log15.v2"
)

// Finder is the search logic for one family of symbol kinds. The set of
// finders is closed; SelectFinders picks the applicable ones.
type Finder interface {
	// Name identifies the finder in logs and traces.
	Name() string

	// CanFind reports whether the finder applies to sym.
	CanFind(sym *Symbol) bool

	// DetermineDocumentsToSearch prunes the documents of one project to
	// those whose index entry is consistent with a reference to sym.
	DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, project *ProjectIndex, opts SearchOptions) ([]*Document, error)

	// FindReferencesInDocument scans a narrowed document and returns the
	// semantically confirmed references to sym.
	FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error)

	finder()
}

// registry lists every finder in selection order.
var registry = []Finder{
	memberFinder{},
	accessorFinder{},
	operatorFinder{},
	localFinder{},
	aliasFinder{},
	suppressionFinder{},
}

// SelectFinders returns the finders applicable to sym in a fixed order.
func SelectFinders(sym *Symbol) []Finder {
	if sym == nil {
		return nil
	}
	var fs []Finder
	for _, f := range registry {
		if f.CanFind(sym) {
			fs = append(fs, f)
		}
	}
	return fs
}

// ProjectIndex is the index view of one project's documents in scope.
type ProjectIndex struct {
	Project   string
	Documents []*Document
	// Entries is parallel to Documents.
	Entries []*IndexEntry
	// GlobalAliases collects the global alias directives of every document
	// of the project.
	GlobalAliases []AliasDirective
	// SuppressionAliases are the global alias names that denote a
	// suppression attribute.
	SuppressionAliases []string
}

func newProjectIndex(project string, docs []*Document, entries []*IndexEntry) *ProjectIndex {
	p := &ProjectIndex{Project: project, Documents: docs, Entries: entries}
	for _, e := range entries {
		if !e.HasGlobalAliases {
			continue
		}
		for _, a := range e.Aliases {
			if a.Global {
				p.GlobalAliases = append(p.GlobalAliases, a)
			}
		}
		p.SuppressionAliases = append(p.SuppressionAliases, e.SuppressionAliases...)
	}
	return p
}

// mayHaveSuppressions reports whether the document of e may apply a
// suppression attribute, directly or through a global alias.
func (p *ProjectIndex) mayHaveSuppressions(e *IndexEntry) bool {
	if e.HasSuppressionAttributes {
		return true
	}
	for _, name := range p.SuppressionAliases {
		if e.ContainsIdentifier(name) {
			return true
		}
	}
	return false
}

// filter returns the documents whose entry satisfies keep.
func (p *ProjectIndex) filter(keep func(e *IndexEntry) bool) []*Document {
	var docs []*Document
	for i, e := range p.Entries {
		if keep(e) {
			docs = append(docs, p.Documents[i])
		}
	}
	return docs
}

// DocumentContext carries everything needed to verify one document.
type DocumentContext struct {
	Document *Document
	Tree     SyntaxTree
	Model    SemanticModel
	Facts    SyntaxFacts
	Entry    *IndexEntry
	Project  *ProjectIndex

	equal SymbolEquality
	log   log15.Logger
}

// bind binds tok. Binding failures are logged and reported as !ok; only
// cancellation is returned as an error.
func (dc *DocumentContext) bind(ctx context.Context, tok Token) (SymbolInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return SymbolInfo{}, false, err
	}
	info, err := dc.Model.SymbolInfo(ctx, tok)
	if err != nil {
		if isContextError(err) {
			return SymbolInfo{}, false, err
		}
		dc.log.Debug("bind failed, skipping token", "doc", dc.Document.ID, "token", tok.Text, "span", tok.Span, "err", err)
		return SymbolInfo{}, false, nil
	}
	return info, true, nil
}

// classify compares a binding result against the target.
func (dc *DocumentContext) classify(sym *Symbol, info SymbolInfo) (CandidateReason, bool) {
	if info.Symbol != nil {
		if !dc.equal(info.Symbol, sym) {
			return 0, false
		}
		if len(info.AliasChain) > 0 {
			return ReasonViaAlias, true
		}
		return ReasonDefinite, true
	}
	for _, c := range info.Candidates {
		if dc.equal(c, sym) {
			return ReasonPossible, true
		}
	}
	return 0, false
}

// insideAliasDirective reports whether span lies in one of the document's
// alias directives. Such tokens are never references.
func (dc *DocumentContext) insideAliasDirective(span Span) bool {
	for _, a := range dc.Entry.Aliases {
		if a.Span.Covers(span) {
			return true
		}
	}
	return false
}

func (dc *DocumentContext) sameName(a, b string) bool {
	if dc.Facts.IsCaseSensitive() {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// identifierTokens returns the identifier tokens named name, trivia
// included, excluding those inside alias directives.
func (dc *DocumentContext) identifierTokens(name string) []Token {
	var toks []Token
	for _, tok := range dc.Tree.Tokens(true) {
		if tok.Kind == TokenIdentifier && dc.sameName(tok.Text, name) && !dc.insideAliasDirective(tok.Span) {
			toks = append(toks, tok)
		}
	}
	return toks
}

// findInTokens binds each token and keeps those that denote sym.
func (dc *DocumentContext) findInTokens(ctx context.Context, sym *Symbol, toks []Token) ([]FinderLocation, error) {
	var locs []FinderLocation
	for _, tok := range toks {
		info, ok, err := dc.bind(ctx, tok)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		reason, ok := dc.classify(sym, info)
		if !ok {
			continue
		}
		locs = append(locs, FinderLocation{
			Document:   dc.Document.ID,
			Span:       tok.Span,
			Reason:     reason,
			AliasChain: info.AliasChain,
			Usage:      info.Usage,
		})
	}
	return locs, nil
}
