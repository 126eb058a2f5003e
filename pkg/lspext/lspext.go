package lspext

import (
	"github.com/sourcegraph/go-lsp"

	"github.com/sourcegraph/refsearch/findrefs"
)

// FindReferencesParams is parameters for the `workspace/xreferences`
// extension. Exactly one of Symbol and Position selects the target.
type FindReferencesParams struct {
	// Symbol names the target: "N.C", "N.C.M", "N.C.M(int)",
	// "N.C.op_Equality" or a predefined operator such as
	// "System.Int32.op_Addition". Every matching overload is searched.
	Symbol string `json:"symbol,omitempty"`

	// Position selects the symbol declared or referenced at a position.
	Position *lsp.TextDocumentPositionParams `json:"position,omitempty"`

	// Documents restricts the search. Empty means the whole workspace.
	Documents []lsp.DocumentURI `json:"documents,omitempty"`

	// IncludeDeclaration adds the declaration sites of the symbol.
	IncludeDeclaration bool `json:"includeDeclaration,omitempty"`

	// Options overrides the server's search defaults.
	Options *SearchOptions `json:"options,omitempty"`

	// Limit caps the number of results. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// SearchOptions overrides individual search options. Nil fields keep the
// server default.
type SearchOptions struct {
	CascadeThroughAliases                    *bool `json:"cascadeThroughAliases,omitempty"`
	ConsiderSuppressions                     *bool `json:"considerSuppressions,omitempty"`
	AssociatePropertyReferencesWithAccessors *bool `json:"associatePropertyReferencesWithAccessors,omitempty"`
	MaxDegreeOfParallelism                   *int  `json:"maxDegreeOfParallelism,omitempty"`
}

// Apply returns opts with the overrides in o applied.
func (o *SearchOptions) Apply(opts findrefs.SearchOptions) findrefs.SearchOptions {
	if o == nil {
		return opts
	}
	if o.CascadeThroughAliases != nil {
		opts.CascadeThroughAliases = *o.CascadeThroughAliases
	}
	if o.ConsiderSuppressions != nil {
		opts.ConsiderSuppressions = *o.ConsiderSuppressions
	}
	if o.AssociatePropertyReferencesWithAccessors != nil {
		opts.AssociatePropertyReferencesWithAccessors = *o.AssociatePropertyReferencesWithAccessors
	}
	if o.MaxDegreeOfParallelism != nil {
		opts.MaxDegreeOfParallelism = *o.MaxDegreeOfParallelism
	}
	return opts
}

// ReferenceInformation is the array response type for the
// `workspace/xreferences` extension.
type ReferenceInformation struct {
	Reference lsp.Location     `json:"reference"`
	Symbol    SymbolDescriptor `json:"symbol"`

	// Reason is "definite", "possible", "alias", "suppression" or, for
	// declaration sites, "declaration".
	Reason     string   `json:"reason"`
	AliasChain []string `json:"aliasChain,omitempty"`
	Usage      string   `json:"usage,omitempty"`
}

// SymbolDescriptor identifies the symbol a reference denotes.
type SymbolDescriptor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	ContainerName string `json:"containerName,omitempty"`
	Project       string `json:"project,omitempty"`
}

// NewSymbolDescriptor describes sym.
func NewSymbolDescriptor(sym *findrefs.Symbol) SymbolDescriptor {
	d := SymbolDescriptor{
		ID:      sym.ID(),
		Name:    sym.Name,
		Kind:    sym.Kind.String(),
		Project: sym.Project,
	}
	switch {
	case sym.ContainingType != "":
		d.ContainerName = sym.ContainingType
	case sym.Namespace != "":
		d.ContainerName = sym.Namespace
	}
	return d
}
