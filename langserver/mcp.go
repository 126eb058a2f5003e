package langserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sourcegraph/go-lsp"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/langserver/internal/utils"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

// MCP tool names.
const (
	ToolFindReferences       = "find_references"
	ToolFindSymbolReferences = "find_symbol_references"
)

// NewMCPServer returns an MCP server exposing the searcher as tools.
func NewMCPServer(s *Searcher, name, version string) *server.MCPServer {
	srv := server.NewMCPServer(name, version)
	t := &mcpTools{s: s}
	srv.AddTool(mcp.NewTool(ToolFindReferences,
		mcp.WithDescription("Find all references to the C# symbol at a position"),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the file, absolute or relative to the workspace root")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Line number (1-based)")),
		mcp.WithNumber("character", mcp.Required(), mcp.Description("Column (1-based)")),
		mcp.WithBoolean("include_declaration", mcp.Description("Also list the declaration sites")),
	), t.findReferences)
	srv.AddTool(mcp.NewTool(ToolFindSymbolReferences,
		mcp.WithDescription("Find all references to a C# symbol by name, such as N.C.M, N.C.op_Equality or System.Int32.op_Addition"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Qualified symbol name, optionally with a parameter list")),
		mcp.WithBoolean("include_declaration", mcp.Description("Also list the declaration sites")),
		mcp.WithBoolean("cascade_through_aliases", mcp.Description("Report uses through using aliases (default true)")),
		mcp.WithBoolean("consider_suppressions", mcp.Description("Report suppression attributes naming the symbol (default true)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (0 for all)")),
	), t.findSymbolReferences)
	return srv
}

type mcpTools struct {
	s *Searcher
}

func (t *mcpTools) findReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file := mcp.ParseString(req, "file", "")
	line := int(mcp.ParseFloat64(req, "line", 0))
	character := int(mcp.ParseFloat64(req, "character", 0))
	if file == "" || line < 1 || character < 1 {
		return mcp.NewToolResultError("file, line and character are required; line and character are 1-based"), nil
	}
	if err := t.s.Load(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load workspace: %v", err)), nil
	}
	uri := t.s.DocumentURI(file)
	sym, err := t.s.SymbolAt(ctx, uri, lsp.Position{Line: line - 1, Character: character - 1})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve symbol: %v", err)), nil
	}
	if sym == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No symbol at %s:%d:%d", file, line, character)), nil
	}
	includeDecl := mcp.ParseBoolean(req, "include_declaration", false)
	refs, err := t.s.FindReferences(ctx, sym, findrefs.AllDocuments(), t.s.Config().Search, includeDecl)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find references: %v", err)), nil
	}
	return mcp.NewToolResultText(t.summary(sym.ID(), refs)), nil
}

func (t *mcpTools) findSymbolReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol := mcp.ParseString(req, "symbol", "")
	if symbol == "" {
		return mcp.NewToolResultError("symbol parameter is required"), nil
	}
	opts := t.s.Config().Search
	opts.CascadeThroughAliases = mcp.ParseBoolean(req, "cascade_through_aliases", opts.CascadeThroughAliases)
	opts.ConsiderSuppressions = mcp.ParseBoolean(req, "consider_suppressions", opts.ConsiderSuppressions)
	includeDecl := mcp.ParseBoolean(req, "include_declaration", false)
	limit := int(mcp.ParseFloat64(req, "limit", 0))

	if err := t.s.Load(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load workspace: %v", err)), nil
	}
	refs, err := t.s.FindReferencesTo(ctx, symbol, findrefs.AllDocuments(), opts, includeDecl)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find references: %v", err)), nil
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return mcp.NewToolResultText(t.summary(symbol, refs)), nil
}

func (t *mcpTools) summary(target string, refs []lspext.ReferenceInformation) string {
	if len(refs) == 0 {
		return fmt.Sprintf("No references found for '%s'", target)
	}
	lines := make([]string, 0, len(refs))
	for _, r := range refs {
		lines = append(lines, FormatReference(t.s.Root(), r))
	}
	return fmt.Sprintf("Found %d reference(s) to '%s':\n- %s", len(refs), target, strings.Join(lines, "\n- "))
}

// FormatReference renders r as "path:line:col reason [via alias chain]"
// with a 1-based position and path relative to root.
func FormatReference(root string, r lspext.ReferenceInformation) string {
	p := utils.UriToPath(r.Reference.URI)
	if utils.PathHasPrefix(p, root) {
		p = utils.PathTrimPrefix(p, root)
	}
	s := fmt.Sprintf("%s:%d:%d %s", p, r.Reference.Range.Start.Line+1, r.Reference.Range.Start.Character+1, r.Reason)
	if len(r.AliasChain) > 0 {
		s += " via " + strings.Join(r.AliasChain, " -> ")
	}
	return s
}
