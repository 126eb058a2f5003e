package findrefs

import "context"

// memberFinder handles ordinary methods, properties, events, fields and
// named types: references are identifier tokens spelling the name.
type memberFinder struct{}

func (memberFinder) finder()      {}
func (memberFinder) Name() string { return "member" }

func (memberFinder) CanFind(sym *Symbol) bool {
	switch sym.Kind {
	case KindType, KindProperty, KindEvent, KindField:
		return true
	case KindMethod:
		return sym.MethodKind == MethodOrdinary
	}
	return false
}

func (memberFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	return p.filter(func(e *IndexEntry) bool { return e.ContainsIdentifier(sym.Name) }), nil
}

func (memberFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	return dc.findInTokens(ctx, sym, dc.identifierTokens(sym.Name))
}

// accessorFinder handles property accessors. Reads of the property are
// references to the getter and writes to the setter.
type accessorFinder struct{}

func (accessorFinder) finder()      {}
func (accessorFinder) Name() string { return "accessor" }

func (accessorFinder) CanFind(sym *Symbol) bool {
	return sym.IsAccessor() && sym.AssociatedProperty != ""
}

func (accessorFinder) DetermineDocumentsToSearch(ctx context.Context, sym *Symbol, p *ProjectIndex, opts SearchOptions) ([]*Document, error) {
	if !opts.AssociatePropertyReferencesWithAccessors {
		return nil, nil
	}
	return p.filter(func(e *IndexEntry) bool { return e.ContainsIdentifier(sym.AssociatedProperty) }), nil
}

func (accessorFinder) FindReferencesInDocument(ctx context.Context, sym *Symbol, dc *DocumentContext, opts SearchOptions) ([]FinderLocation, error) {
	prop := &Symbol{
		Kind:           KindProperty,
		Name:           sym.AssociatedProperty,
		ContainingType: sym.ContainingType,
		Project:        sym.Project,
	}
	locs, err := dc.findInTokens(ctx, prop, dc.identifierTokens(sym.AssociatedProperty))
	if err != nil {
		return nil, err
	}
	var kept []FinderLocation
	for _, l := range locs {
		usage := l.Usage
		if usage == UsageNone {
			usage = UsageRead
		}
		if (sym.MethodKind == MethodPropertyGet && usage.IsRead()) || (sym.MethodKind == MethodPropertySet && usage.IsWrite()) {
			kept = append(kept, l)
		}
	}
	return kept, nil
}
