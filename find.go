package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sourcegraph/ctxvfs"
	"github.com/sourcegraph/go-lsp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"github.com/sourcegraph/refsearch/langserver"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

var findFlags struct {
	root               string
	documents          []string
	noAliases          bool
	noSuppressions     bool
	accessors          bool
	includeDeclaration bool
	limit              int
	json               bool
}

var findCmd = &cobra.Command{
	Use:   "find SYMBOL",
	Short: "Print the references to a symbol",
	Long: `Print the references to a symbol as path:line:col reason, one per line.

SYMBOL is a qualified name such as N.C, N.C.M, N.C.M(int), N.C.op_Equality
or a predefined operator such as System.Int32.op_Addition. Every overload it
names is searched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFind(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	f := findCmd.Flags()
	f.StringVar(&findFlags.root, "root", ".", "workspace root")
	f.StringArrayVar(&findFlags.documents, "document", nil, "only search this file (repeatable)")
	f.BoolVar(&findFlags.noAliases, "no-aliases", false, "do not report uses through using aliases")
	f.BoolVar(&findFlags.noSuppressions, "no-suppressions", false, "do not report suppression attributes")
	f.BoolVar(&findFlags.accessors, "accessors", false, "report property uses when searching for an accessor")
	f.BoolVar(&findFlags.includeDeclaration, "include-declaration", false, "also print the declaration sites")
	f.IntVar(&findFlags.limit, "limit", 0, "print at most N references (0 for all)")
	f.BoolVar(&findFlags.json, "json", false, "print the references as JSON")
	rootCmd.AddCommand(findCmd)
}

// openSearcher returns a searcher over the workspace at root on the OS
// file system, configured by the workspace config file if any.
func openSearcher(ctx context.Context, root string) (*langserver.Searcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg, err := langserver.LoadConfig(afero.NewOsFs(), abs, langserver.NewDefaultConfig())
	if err != nil {
		return nil, err
	}
	s, err := langserver.NewSearcher(ctxvfs.OS("/"), filepath.ToSlash(abs), cfg, log15.New("pkg", "refsearch"))
	if err != nil {
		return nil, err
	}
	return s, s.Load(ctx)
}

func runFind(ctx context.Context, w io.Writer, symbol string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSearcher(ctx, findFlags.root)
	if err != nil {
		return err
	}
	opts := s.Config().Search
	opts.CascadeThroughAliases = opts.CascadeThroughAliases && !findFlags.noAliases
	opts.ConsiderSuppressions = opts.ConsiderSuppressions && !findFlags.noSuppressions
	opts.AssociatePropertyReferencesWithAccessors = opts.AssociatePropertyReferencesWithAccessors || findFlags.accessors

	var uris []lsp.DocumentURI
	for _, d := range findFlags.documents {
		uris = append(uris, s.DocumentURI(d))
	}
	scope, err := s.Scope(uris)
	if err != nil {
		return err
	}
	refs, err := s.FindReferencesTo(ctx, symbol, scope, opts, findFlags.includeDeclaration)
	if err != nil {
		return err
	}
	if findFlags.limit > 0 && len(refs) > findFlags.limit {
		refs = refs[:findFlags.limit]
	}
	return printReferences(w, s.Root(), refs, findFlags.json)
}

func printReferences(w io.Writer, root string, refs []lspext.ReferenceInformation, asJSON bool) error {
	if asJSON {
		if refs == nil {
			refs = []lspext.ReferenceInformation{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	}
	for _, r := range refs {
		if _, err := fmt.Fprintln(w, langserver.FormatReference(root, r)); err != nil {
			return err
		}
	}
	return nil
}

