// Package findrefs finds references to a symbol across the documents of a
// multi-project workspace.
//
// A search selects the finders that apply to the symbol, prunes documents
// using a per-document lexical Index, verifies the remaining documents by
// binding candidate tokens, and merges everything into one deduplicated,
// deterministically ordered list. Parsing and binding are supplied by the
// caller through the Workspace interface.
package findrefs

import (
	"context"
	"time"

	"github.com/neelance/parallel"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// Engine runs reference searches against a Workspace. It is safe for
// concurrent use.
type Engine struct {
	ws    Workspace
	index *Index
	equal SymbolEquality
	log   log15.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSymbolEquality replaces SymbolsEqual as the equality oracle.
func WithSymbolEquality(eq SymbolEquality) EngineOption {
	return func(e *Engine) { e.equal = eq }
}

// WithLogger sets the engine's logger.
func WithLogger(l log15.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an Engine searching ws. The index is owned by the
// caller and may be shared between engines over the same documents.
func NewEngine(ws Workspace, index *Index, options ...EngineOption) *Engine {
	e := &Engine{
		ws:    ws,
		index: index,
		equal: SymbolsEqual,
		log:   log15.New("pkg", "findrefs"),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Index returns the engine's index.
func (e *Engine) Index() *Index { return e.index }

// work is one narrowed document and the finders that selected it.
type work struct {
	doc     *Document
	entry   *IndexEntry
	project *ProjectIndex
	finders []Finder
}

// FindReferences returns every reference to sym in scope. On cancellation
// it returns a *CanceledError and no locations.
func (e *Engine) FindReferences(ctx context.Context, sym *Symbol, scope Scope, opts SearchOptions) (locs []FinderLocation, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "findrefs.FindReferences")
	start := time.Now()
	defer func() {
		searchDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if IsCanceled(err) {
				outcome = "canceled"
			}
			ext.Error.Set(span, true)
			span.SetTag("err", err.Error())
		}
		span.SetTag("locations", len(locs))
		searchCounter.WithLabelValues(outcome).Inc()
		span.Finish()
	}()

	if sym == nil {
		return nil, errors.New("findrefs: nil symbol")
	}
	span.SetTag("symbol", sym.ID())
	finders := SelectFinders(sym)
	if len(finders) == 0 {
		e.log.Debug("no finder applies", "symbol", sym.ID(), "kind", sym.Kind, "methodKind", sym.MethodKind)
		return nil, nil
	}

	docs, err := e.ws.Documents(ctx, scope)
	if err != nil {
		return nil, e.canceled(ctx, errors.Wrap(err, "list documents"))
	}
	order := make([]DocumentID, len(docs))
	for i, d := range docs {
		order[i] = d.ID
	}
	docs = e.visibleDocuments(sym, docs)

	projects, err := e.buildIndex(ctx, docs, opts)
	if err != nil {
		return nil, e.canceled(ctx, err)
	}
	works, err := e.narrow(ctx, sym, finders, projects, opts)
	if err != nil {
		return nil, e.canceled(ctx, err)
	}
	results, err := e.verify(ctx, sym, works, opts)
	if err != nil {
		return nil, e.canceled(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &CanceledError{Err: err}
	}

	locs = Merge(order, results...)
	for _, l := range locs {
		locationsCounter.WithLabelValues(l.Reason.String()).Inc()
	}
	e.log.Debug("search done", "symbol", sym.ID(), "documents", len(docs), "searched", len(works), "locations", len(locs), "elapsed", time.Since(start))
	return locs, nil
}

func (e *Engine) canceled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CanceledError{Err: ctxErr}
	}
	if isContextError(err) {
		return &CanceledError{Err: errors.Cause(err)}
	}
	return err
}

// visibleDocuments drops documents of projects that cannot reference the
// symbol's defining project.
func (e *Engine) visibleDocuments(sym *Symbol, docs []*Document) []*Document {
	g, ok := e.ws.(ProjectGraph)
	if !ok || sym.Project == "" || sym.IsLocalFamily() {
		return docs
	}
	allowed := map[string]bool{sym.Project: true}
	for _, p := range g.DependentProjects(sym.Project) {
		allowed[p] = true
	}
	var kept []*Document
	for _, d := range docs {
		if allowed[d.ID.Project] {
			kept = append(kept, d)
		}
	}
	return kept
}

// buildIndex fetches or builds the index entries of docs concurrently and
// groups them by project. Documents that cannot be read are skipped.
func (e *Engine) buildIndex(ctx context.Context, docs []*Document, opts SearchOptions) ([]*ProjectIndex, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "findrefs.index")
	defer span.Finish()
	span.SetTag("documents", len(docs))

	entries := make([]*IndexEntry, len(docs))
	errs := make([]error, len(docs))
	run := parallel.NewRun(opts.parallelism())
	for i, doc := range docs {
		run.Acquire()
		if ctx.Err() != nil {
			run.Release()
			break
		}
		go func(i int, doc *Document) {
			defer run.Release()
			entry, err := e.index.Entry(ctx, e.ws, doc)
			if err != nil {
				if isContextError(err) {
					errs[i] = err
					run.Error(err)
					return
				}
				e.log.Warn("skipping unreadable document", "doc", doc.ID, "version", doc.Version, "err", err)
				documentsCounter.WithLabelValues("unreadable").Inc()
				return
			}
			entries[i] = entry
		}(i, doc)
	}
	if err := run.Wait(); err != nil {
		return nil, firstError(errs, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byProject := make(map[string]int)
	var projDocs [][]*Document
	var projEntries [][]*IndexEntry
	for i, doc := range docs {
		if entries[i] == nil {
			continue
		}
		p, ok := byProject[doc.ID.Project]
		if !ok {
			p = len(projDocs)
			byProject[doc.ID.Project] = p
			projDocs = append(projDocs, nil)
			projEntries = append(projEntries, nil)
		}
		projDocs[p] = append(projDocs[p], doc)
		projEntries[p] = append(projEntries[p], entries[i])
	}
	projects := make([]*ProjectIndex, 0, len(projDocs))
	for p := range projDocs {
		projects = append(projects, newProjectIndex(projDocs[p][0].ID.Project, projDocs[p], projEntries[p]))
	}
	return projects, nil
}

// narrow asks every finder which documents of every project to search.
func (e *Engine) narrow(ctx context.Context, sym *Symbol, finders []Finder, projects []*ProjectIndex, opts SearchOptions) ([]*work, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "findrefs.narrow")
	defer span.Finish()

	var works []*work
	total := 0
	for _, p := range projects {
		total += len(p.Documents)
		pos := make(map[DocumentID]int, len(p.Documents))
		for i, d := range p.Documents {
			pos[d.ID] = i
		}
		byDoc := make([]*work, len(p.Documents))
		for _, f := range finders {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			docs, err := f.DetermineDocumentsToSearch(ctx, sym, p, opts)
			if err != nil {
				return nil, errors.Wrapf(err, "%s finder", f.Name())
			}
			for _, d := range docs {
				i, ok := pos[d.ID]
				if !ok {
					return nil, contractViolation("%s finder selected %s outside project %s", f.Name(), d.ID, p.Project)
				}
				if byDoc[i] == nil {
					byDoc[i] = &work{doc: p.Documents[i], entry: p.Entries[i], project: p}
				}
				byDoc[i].finders = append(byDoc[i].finders, f)
			}
		}
		for _, w := range byDoc {
			if w != nil {
				works = append(works, w)
			}
		}
	}
	documentsCounter.WithLabelValues("pruned").Add(float64(total - len(works)))
	documentsCounter.WithLabelValues("searched").Add(float64(len(works)))
	span.SetTag("searched", len(works))
	span.SetTag("pruned", total-len(works))
	return works, nil
}

// verify runs the selected finders on each narrowed document concurrently.
// Each task writes only its own slot of the result.
func (e *Engine) verify(ctx context.Context, sym *Symbol, works []*work, opts SearchOptions) ([][]FinderLocation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "findrefs.verify")
	defer span.Finish()

	results := make([][]FinderLocation, len(works))
	errs := make([]error, len(works))
	run := parallel.NewRun(opts.parallelism())
	for i, w := range works {
		run.Acquire()
		if ctx.Err() != nil {
			run.Release()
			break
		}
		go func(i int, w *work) {
			defer run.Release()
			locs, err := e.verifyDocument(ctx, sym, w, opts)
			if err != nil {
				errs[i] = err
				run.Error(err)
				return
			}
			results[i] = locs
		}(i, w)
	}
	if err := run.Wait(); err != nil {
		return nil, firstError(errs, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) verifyDocument(ctx context.Context, sym *Symbol, w *work, opts SearchOptions) ([]FinderLocation, error) {
	doc := w.doc
	tree, err := e.ws.SyntaxRoot(ctx, doc)
	if err == nil {
		var model SemanticModel
		model, err = e.ws.SemanticModel(ctx, doc)
		if err == nil {
			dc := &DocumentContext{
				Document: doc,
				Tree:     tree,
				Model:    model,
				Facts:    e.ws.SyntaxFacts(doc),
				Entry:    w.entry,
				Project:  w.project,
				equal:    e.equal,
				log:      e.log,
			}
			return e.runFinders(ctx, sym, dc, w.finders, opts)
		}
	}
	if isContextError(err) {
		return nil, err
	}
	e.log.Warn("skipping document without semantics", "doc", doc.ID, "err", err)
	return nil, nil
}

func (e *Engine) runFinders(ctx context.Context, sym *Symbol, dc *DocumentContext, finders []Finder, opts SearchOptions) ([]FinderLocation, error) {
	var all []FinderLocation
	for _, f := range finders {
		locs, err := f.FindReferencesInDocument(ctx, sym, dc, opts)
		if err != nil {
			return nil, err
		}
		for _, l := range locs {
			if l.Document != dc.Document.ID || l.Span.Start < 0 || l.Span.Start > l.Span.End || l.Span.End > dc.Document.Length {
				return nil, contractViolation("%s finder reported %s outside %s (length %d)", f.Name(), l, dc.Document.ID, dc.Document.Length)
			}
		}
		all = append(all, locs...)
	}
	return all, nil
}

// firstError returns the first recorded error in document order so that a
// failing search reports the same error on every run.
func firstError(errs []error, fallback error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return fallback
}
