package langserver

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sourcegraph/ctxvfs"
	"github.com/sourcegraph/go-lsp"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/langserver/internal/utils"
	"github.com/sourcegraph/refsearch/langserver/internal/workspace"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

// Searcher answers reference queries over one workspace. It is shared by
// the LSP handler, the MCP server and the command line.
type Searcher struct {
	ws     *workspace.Workspace
	engine *findrefs.Engine
	cfg    Config
	log    log15.Logger
}

// NewSearcher returns a Searcher over the workspace rooted at root, a slash
// separated absolute path within fs.
func NewSearcher(fs ctxvfs.FileSystem, root string, cfg Config, l log15.Logger) (*Searcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = log15.New()
	}
	index, err := findrefs.NewIndex(cfg.IndexSize)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(fs, workspace.Options{
		Root:        root,
		Projects:    cfg.Projects,
		Exclude:     cfg.Exclude,
		Parallelism: cfg.MaxParallelism,
		Logger:      l,
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid workspace configuration")
	}
	return &Searcher{
		ws:     ws,
		engine: findrefs.NewEngine(ws, index, findrefs.WithLogger(l.New("pkg", "findrefs"))),
		cfg:    cfg,
		log:    l,
	}, nil
}

// Config returns the searcher's configuration.
func (s *Searcher) Config() Config { return s.cfg }

// Root returns the workspace root.
func (s *Searcher) Root() string { return s.ws.Root() }

// Load discovers and reads the workspace documents.
func (s *Searcher) Load(ctx context.Context) error { return s.ws.Load(ctx) }

// DidChange tells the searcher the file at uri may have changed.
func (s *Searcher) DidChange(ctx context.Context, uri lsp.DocumentURI) error {
	rel, ok := s.ws.Path(utils.UriToPath(uri))
	if !ok {
		return nil
	}
	return s.ws.Invalidate(ctx, rel)
}

func (s *Searcher) documentID(uri lsp.DocumentURI) (findrefs.DocumentID, error) {
	rel, ok := s.ws.Path(utils.UriToPath(uri))
	if !ok {
		return findrefs.DocumentID{}, fmt.Errorf("%s is outside the workspace root %s", uri, s.ws.Root())
	}
	id, ok := s.ws.DocumentFor(rel)
	if !ok {
		return findrefs.DocumentID{}, fmt.Errorf("%s does not belong to any project", uri)
	}
	return id, nil
}

// DocumentURI returns the URI of the file at p, a native path either
// absolute or relative to the workspace root.
func (s *Searcher) DocumentURI(p string) lsp.DocumentURI {
	p = filepath.ToSlash(p)
	if !utils.IsAbs(p) {
		p = path.Join(s.ws.Root(), p)
	}
	return utils.PathToURI(p)
}

func (s *Searcher) uri(id findrefs.DocumentID) lsp.DocumentURI {
	return utils.PathToURI(path.Join(s.ws.Root(), id.Path))
}

// SymbolAt returns the symbol at pos in the document at uri, or nil.
func (s *Searcher) SymbolAt(ctx context.Context, uri lsp.DocumentURI, pos lsp.Position) (*findrefs.Symbol, error) {
	id, err := s.documentID(uri)
	if err != nil {
		return nil, err
	}
	_, content, err := s.ws.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	offset, err := utils.OffsetForPosition(content, pos)
	if err != nil {
		return nil, err
	}
	sym, _, err := s.ws.SymbolAt(ctx, id, offset)
	return sym, err
}

// Resolve returns the symbols a query names.
func (s *Searcher) Resolve(ctx context.Context, query string) ([]*findrefs.Symbol, error) {
	return s.ws.Resolve(ctx, query)
}

// Scope converts document URIs to a search scope. No URIs means the whole
// workspace.
func (s *Searcher) Scope(uris []lsp.DocumentURI) (findrefs.Scope, error) {
	if len(uris) == 0 {
		return findrefs.AllDocuments(), nil
	}
	ids := make([]findrefs.DocumentID, 0, len(uris))
	for _, uri := range uris {
		id, err := s.documentID(uri)
		if err != nil {
			return findrefs.Scope{}, err
		}
		ids = append(ids, id)
	}
	return findrefs.DocumentScope(ids...), nil
}

// FindReferences searches for sym and converts the results to LSP
// locations. With includeDeclaration the declaration sites come first.
func (s *Searcher) FindReferences(ctx context.Context, sym *findrefs.Symbol, scope findrefs.Scope, opts findrefs.SearchOptions, includeDeclaration bool) ([]lspext.ReferenceInformation, error) {
	locs, err := s.engine.FindReferences(ctx, sym, scope, opts)
	if err != nil {
		return nil, err
	}
	conv := &locationConverter{s: s, content: make(map[findrefs.DocumentID][]byte)}
	desc := lspext.NewSymbolDescriptor(sym)
	var refs []lspext.ReferenceInformation
	if includeDeclaration {
		sites, err := s.ws.DeclarationSites(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, site := range sites {
			if !inScope(scope, site.Document) {
				continue
			}
			loc, err := conv.location(ctx, site.Document, site.Span)
			if err != nil {
				return nil, err
			}
			refs = append(refs, lspext.ReferenceInformation{Reference: loc, Symbol: desc, Reason: "declaration"})
		}
	}
	for _, l := range locs {
		loc, err := conv.location(ctx, l.Document, l.Span)
		if err != nil {
			return nil, err
		}
		refs = append(refs, lspext.ReferenceInformation{
			Reference:  loc,
			Symbol:     desc,
			Reason:     l.Reason.String(),
			AliasChain: l.AliasChain,
			Usage:      l.Usage.String(),
		})
	}
	return refs, nil
}

// FindReferencesTo resolves query and searches for every symbol it names.
// Results are grouped by symbol in ID order.
func (s *Searcher) FindReferencesTo(ctx context.Context, query string, scope findrefs.Scope, opts findrefs.SearchOptions, includeDeclaration bool) ([]lspext.ReferenceInformation, error) {
	syms, err := s.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("no symbol matches %q", query)
	}
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].ID() < syms[j].ID() })
	var refs []lspext.ReferenceInformation
	for _, sym := range syms {
		r, err := s.FindReferences(ctx, sym, scope, opts, includeDeclaration)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r...)
	}
	return refs, nil
}

func inScope(scope findrefs.Scope, id findrefs.DocumentID) bool {
	if scope.IsAll() {
		return true
	}
	for _, d := range scope.Documents {
		if d == id {
			return true
		}
	}
	return false
}

// locationConverter turns byte spans into LSP locations, reading each
// document once.
type locationConverter struct {
	s       *Searcher
	content map[findrefs.DocumentID][]byte
}

func (c *locationConverter) location(ctx context.Context, id findrefs.DocumentID, span findrefs.Span) (lsp.Location, error) {
	content, ok := c.content[id]
	if !ok {
		_, data, err := c.s.ws.Document(ctx, id)
		if err != nil {
			return lsp.Location{}, err
		}
		content = data
		c.content[id] = content
	}
	return lsp.Location{
		URI: c.s.uri(id),
		Range: lsp.Range{
			Start: utils.PositionForOffset(content, span.Start),
			End:   utils.PositionForOffset(content, span.End),
		},
	}, nil
}
