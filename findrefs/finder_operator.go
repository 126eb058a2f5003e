package findrefs

import "context"

// operatorFinder handles user-defined and builtin operators. Documents are
// pruned on the operator's token spelling; documents with suppression
// attributes are always searched as well.
type operatorFinder struct{}

func (operatorFinder) finder()      {}
func (operatorFinder) Name() string { return "operator" }

func (operatorFinder) CanFind(sym *Symbol) bool { return sym.IsOperator() }

func (operatorFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	op := GetPredefinedOperator(sym)
	return p.filter(func(e *IndexEntry) bool {
		if op != OpNone && e.ContainsPredefinedOperator(op) {
			return true
		}
		return opts.ConsiderSuppressions && p.mayHaveSuppressions(e)
	}), nil
}

func (operatorFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	var locs []FinderLocation
	if op := GetPredefinedOperator(sym); op != OpNone && dc.Entry.ContainsPredefinedOperator(op) {
		var toks []Token
		for _, tok := range dc.Tree.Tokens(true) {
			if dc.Facts.PredefinedOperator(tok) == op {
				toks = append(toks, tok)
			}
		}
		var err error
		locs, err = dc.findInTokens(ctx, sym, toks)
		if err != nil {
			return nil, err
		}
	}
	if opts.ConsiderSuppressions && dc.Project.mayHaveSuppressions(dc.Entry) {
		sup, err := findSuppressionReferences(ctx, sym, dc)
		if err != nil {
			return nil, err
		}
		locs = append(locs, sup...)
	}
	return locs, nil
}

// localFinder handles locals, parameters and labels. They are only
// visible in their declaring document.
type localFinder struct{}

func (localFinder) finder()      {}
func (localFinder) Name() string { return "local" }

func (localFinder) CanFind(sym *Symbol) bool { return sym.IsLocalFamily() }

func (localFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	if sym.Declaration == nil {
		return nil, contractViolation("%s symbol %q has no declaration site", sym.Kind, sym.Name)
	}
	decl := sym.Declaration.Document
	return p.filter(func(e *IndexEntry) bool {
		return e.Document == decl && e.ContainsIdentifier(sym.Name)
	}), nil
}

func (localFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	if dc.Document.ID != sym.Declaration.Document {
		return nil, contractViolation("local %q searched outside its declaring document %s", sym.Name, dc.Document.ID)
	}
	return dc.findInTokens(ctx, sym, dc.identifierTokens(sym.Name))
}
