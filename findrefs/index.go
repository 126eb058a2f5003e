package findrefs

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// IndexEntry is a lexical summary of one document version. It is an
// over-approximation: a document whose entry rules out a match cannot
// contain one. Entries are immutable once built.
type IndexEntry struct {
	Document DocumentID
	Version  int64

	// Identifiers holds every identifier text, including those inside
	// trivia. Keys are lower-cased for case-insensitive languages.
	Identifiers map[string]struct{}
	Operators   OperatorSet
	Aliases     []AliasDirective

	HasSuppressionAttributes bool
	HasGlobalAliases         bool
	// SuppressionAliases are the global aliases declared here that name a
	// suppression attribute.
	SuppressionAliases []string

	caseSensitive bool
}

// ContainsIdentifier reports whether name occurs as an identifier.
func (e *IndexEntry) ContainsIdentifier(name string) bool {
	if !e.caseSensitive {
		name = strings.ToLower(name)
	}
	_, ok := e.Identifiers[name]
	return ok
}

// ContainsPredefinedOperator reports whether a token spelling op occurs.
func (e *IndexEntry) ContainsPredefinedOperator(op PredefinedOperator) bool {
	return e.Operators.Has(op)
}

type indexKey struct {
	doc     DocumentID
	version int64
}

type indexCell struct {
	ready chan struct{} // closed once entry or err is set
	entry *IndexEntry
	err   error
}

// Index caches IndexEntry values keyed by document identity and version.
// Concurrent requests for the same key share a single build. A new
// version is a new key; entries are never modified after being built.
type Index struct {
	mu     sync.Mutex
	cache  *lru.Cache
	builds int64
}

// DefaultIndexSize is the number of entries an Index holds by default.
const DefaultIndexSize = 50000

// NewIndex returns an Index holding at most size entries. Evicted entries
// are rebuilt on demand.
func NewIndex(size int) (*Index, error) {
	if size <= 0 {
		size = DefaultIndexSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create index cache")
	}
	return &Index{cache: c}, nil
}

// Len returns the number of cached entries.
func (x *Index) Len() int { return x.cache.Len() }

// Builds returns how many entries have been built.
func (x *Index) Builds() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.builds
}

// Purge drops every entry.
func (x *Index) Purge() {
	x.mu.Lock()
	x.cache.Purge()
	x.mu.Unlock()
}

// Entry returns the entry for doc, building it from ws on first use.
func (x *Index) Entry(ctx context.Context, ws Workspace, doc *Document) (*IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := indexKey{doc: doc.ID, version: doc.Version}

	x.mu.Lock()
	if v, ok := x.cache.Get(key); ok {
		// cache hit, wait until ready
		x.mu.Unlock()
		cell := v.(*indexCell)
		select {
		case <-cell.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if cell.err == nil {
			indexHits.Inc()
			return cell.entry, nil
		}
		// The filler failed; it has already removed the cell. Build again
		// under our own context.
		return x.Entry(ctx, ws, doc)
	}
	// cache miss. Add unready cell to cache and fill
	cell := &indexCell{ready: make(chan struct{})}
	x.cache.Add(key, cell)
	x.builds++
	x.mu.Unlock()

	cell.entry, cell.err = buildIndexEntry(ctx, ws, doc)
	if cell.err != nil {
		x.mu.Lock()
		if v, ok := x.cache.Peek(key); ok && v == cell {
			x.cache.Remove(key)
		}
		x.mu.Unlock()
	}
	close(cell.ready)
	indexBuilds.Inc()
	return cell.entry, cell.err
}

func buildIndexEntry(ctx context.Context, ws Workspace, doc *Document) (*IndexEntry, error) {
	tree, err := ws.SyntaxRoot(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	facts := ws.SyntaxFacts(doc)
	e := &IndexEntry{
		Document:      doc.ID,
		Version:       doc.Version,
		Identifiers:   make(map[string]struct{}),
		caseSensitive: facts.IsCaseSensitive(),
	}
	for _, tok := range tree.Tokens(true) {
		switch tok.Kind {
		case TokenIdentifier:
			text := tok.Text
			if !e.caseSensitive {
				text = strings.ToLower(text)
			}
			e.Identifiers[text] = struct{}{}
			if facts.IsSuppressionAttribute(tok.Text) {
				e.HasSuppressionAttributes = true
			}
		default:
			if op := facts.PredefinedOperator(tok); op != OpNone {
				e.Operators.Add(op)
			}
		}
	}
	e.Aliases = tree.AliasDirectives()
	for _, a := range tree.Attributes() {
		if isSuppressionAttribute(facts, a.Name, e.Aliases) {
			e.HasSuppressionAttributes = true
		}
	}
	for _, a := range e.Aliases {
		if !a.Global {
			continue
		}
		e.HasGlobalAliases = true
		if facts.IsSuppressionAttribute(a.Target) {
			e.SuppressionAliases = append(e.SuppressionAliases, a.Name)
		}
	}
	return e, nil
}
