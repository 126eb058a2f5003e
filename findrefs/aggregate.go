package findrefs

import "sort"

type locationKey struct {
	doc  DocumentID
	span Span
}

// Merge combines per-finder results into one sequence with at most one
// entry per (document, span). When two entries collide the stronger
// reason wins (definite, alias, suppression, possible). The result is
// ordered by the position of the document in order, then span start, then
// span end, independent of the order of the inputs.
func Merge(order []DocumentID, results ...[]FinderLocation) []FinderLocation {
	rank := make(map[DocumentID]int, len(order))
	for i, id := range order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}

	best := make(map[locationKey]int)
	var merged []FinderLocation
	for _, locs := range results {
		for _, l := range locs {
			k := locationKey{doc: l.Document, span: l.Span}
			i, ok := best[k]
			if !ok {
				best[k] = len(merged)
				merged = append(merged, l)
				continue
			}
			if stronger(l, merged[i]) {
				merged[i] = l
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		ra, oka := rank[a.Document]
		rb, okb := rank[b.Document]
		switch {
		case oka != okb:
			return oka
		case ra != rb:
			return ra < rb
		case a.Document != b.Document:
			return a.Document.String() < b.Document.String()
		case a.Span.Start != b.Span.Start:
			return a.Span.Start < b.Span.Start
		}
		return a.Span.End < b.Span.End
	})
	return merged
}

// stronger reports whether a should replace b. Ties are broken on the
// alias chain so the result does not depend on input order.
func stronger(a, b FinderLocation) bool {
	if sa, sb := a.Reason.strength(), b.Reason.strength(); sa != sb {
		return sa > sb
	}
	if len(a.AliasChain) != len(b.AliasChain) {
		return len(a.AliasChain) < len(b.AliasChain)
	}
	for i := range a.AliasChain {
		if a.AliasChain[i] != b.AliasChain[i] {
			return a.AliasChain[i] < b.AliasChain[i]
		}
	}
	return a.Usage > b.Usage
}
