package langserver

import (
	"context"
	"errors"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

func (h *LangHandler) handleTextDocumentReferences(ctx context.Context, conn JSONRPC2Conn, req *jsonrpc2.Request, params lsp.ReferenceParams) ([]lsp.Location, error) {
	s := h.getSearcher()
	if err := s.Load(ctx); err != nil {
		return nil, searchError(err)
	}
	sym, err := s.SymbolAt(ctx, params.TextDocument.URI, params.Position)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		// Nothing to search for at this position.
		return []lsp.Location{}, nil
	}
	if span := opentracing.SpanFromContext(ctx); span != nil {
		span.SetTag("symbol", sym.ID())
	}
	refs, err := s.FindReferences(ctx, sym, findrefs.AllDocuments(), s.Config().Search, params.Context.IncludeDeclaration)
	if err != nil {
		return nil, searchError(err)
	}
	locs := make([]lsp.Location, 0, len(refs))
	for _, r := range refs {
		locs = append(locs, r.Reference)
	}
	return locs, nil
}

func (h *LangHandler) handleXReferences(ctx context.Context, conn JSONRPC2Conn, req *jsonrpc2.Request, params lspext.FindReferencesParams) ([]lspext.ReferenceInformation, error) {
	if (params.Symbol == "") == (params.Position == nil) {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "exactly one of symbol and position is required"}
	}
	if params.Limit < 0 {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "limit must not be negative"}
	}
	s := h.getSearcher()
	if err := s.Load(ctx); err != nil {
		return nil, searchError(err)
	}
	scope, err := s.Scope(params.Documents)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	opts := params.Options.Apply(s.Config().Search)

	var refs []lspext.ReferenceInformation
	if params.Symbol != "" {
		refs, err = s.FindReferencesTo(ctx, params.Symbol, scope, opts, params.IncludeDeclaration)
	} else {
		var sym *findrefs.Symbol
		sym, err = s.SymbolAt(ctx, params.Position.TextDocument.URI, params.Position.Position)
		if err == nil && sym == nil {
			err = errors.New("no symbol at the given position")
		}
		if err == nil {
			refs, err = s.FindReferences(ctx, sym, scope, opts, params.IncludeDeclaration)
		}
	}
	if err != nil {
		return nil, searchError(err)
	}
	if refs == nil {
		refs = []lspext.ReferenceInformation{}
	}
	if params.Limit > 0 && len(refs) > params.Limit {
		refs = refs[:params.Limit]
	}
	return refs, nil
}
