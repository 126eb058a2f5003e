package workspace

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/ctxvfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegraph/refsearch/findrefs"
)

const libC = `using System.Diagnostics.CodeAnalysis;

namespace N
{
    public class C
    {
        public static void M() { }
        public int X { get; set; }
        public static bool operator ==(C a, C b) => true;
        public static bool operator !=(C a, C b) => false;
        public static bool operator true(C c) => true;
        public static bool operator false(C c) => false;
    }
}
`

const appUses = `using N;

namespace App
{
    class Uses
    {
        bool Same(C a, C b)
        {
            if (a == b) { return true; }
            a.X = 1;
            return a.X > 0;
        }
    }
}
`

const appSuppressed = `using System.Diagnostics.CodeAnalysis;

namespace App
{
    [SuppressMessage("Style", "N.C.M")]
    class Suppressed { }

    [SuppressMessage("Style", "N.C.op_True(N.C)")]
    class SuppressedOperator { }
}
`

const appAliased = `using F = N.C.M;

namespace App
{
    class Aliased
    {
        void Run() { F(); }
    }
}
`

var testFiles = map[string]string{
	"lib/C.cs":           libC,
	"app/Uses.cs":        appUses,
	"app/Suppressed.cs":  appSuppressed,
	"app/Aliased.cs":     appAliased,
	"app/obj/Gen.cs":     "class Generated { }",
	"app/Ignored.cs":     "class Ignored { }",
	"app/readme.md":      "not code",
	".gitignore":         "Ignored.cs\n",
	"tools/Unrelated.cs": "class Unrelated { void M() { } }",
}

var testProjects = []Project{
	{Name: "Lib", Dir: "lib"},
	{Name: "App", Dir: "app", References: []string{"Lib"}},
	{Name: "Tools", Dir: "tools"},
}

func mapFS(m map[string]string) ctxvfs.FileSystem {
	m2 := make(map[string][]byte, len(m))
	for k, v := range m {
		m2[k] = []byte(v)
	}
	return ctxvfs.Map(m2)
}

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(mapFS(testFiles), Options{Root: "/", Projects: testProjects})
	require.NoError(t, err)
	require.NoError(t, w.Load(context.Background()))
	return w
}

func doc(project, path string) findrefs.DocumentID {
	return findrefs.DocumentID{Project: project, Path: path}
}

// spanOf returns the span of the nth occurrence of needle in src, narrowed
// to the first occurrence of within inside it when within is non-empty.
func spanOf(t *testing.T, src, needle string, nth int, within string) findrefs.Span {
	t.Helper()
	off := -1
	for i := 0; i <= nth; i++ {
		j := strings.Index(src[off+1:], needle)
		require.True(t, j >= 0, "occurrence %d of %q not found", nth, needle)
		off += j + 1
	}
	if within == "" {
		return findrefs.Span{Start: off, End: off + len(needle)}
	}
	k := strings.Index(needle, within)
	require.True(t, k >= 0)
	return findrefs.Span{Start: off + k, End: off + k + len(within)}
}

func resolveOne(t *testing.T, w *Workspace, query string) *findrefs.Symbol {
	t.Helper()
	syms, err := w.Resolve(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, syms, 1, "query %q", query)
	return syms[0]
}

func search(t *testing.T, w *Workspace, sym *findrefs.Symbol, scope findrefs.Scope, opts findrefs.SearchOptions) []findrefs.FinderLocation {
	t.Helper()
	index, err := findrefs.NewIndex(64)
	require.NoError(t, err)
	locs, err := findrefs.NewEngine(w, index).FindReferences(context.Background(), sym, scope, opts)
	require.NoError(t, err)
	return locs
}

func checkLocations(t *testing.T, want []findrefs.FinderLocation, got []findrefs.FinderLocation) {
	t.Helper()
	lines := func(locs []findrefs.FinderLocation) []string {
		s := make([]string, len(locs))
		for i, l := range locs {
			s[i] = l.String()
		}
		return s
	}
	wantLines, gotLines := lines(want), lines(got)
	if reflect.DeepEqual(wantLines, gotLines) {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(wantLines, "\n") + "\n"),
		B:        difflib.SplitLines(strings.Join(gotLines, "\n") + "\n"),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	t.Fatalf("locations differ:\n%s", diff)
}

func TestLoad_discovery(t *testing.T) {
	w := newTestWorkspace(t)
	docs, err := w.Documents(context.Background(), findrefs.AllDocuments())
	require.NoError(t, err)
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID.String())
		assert.True(t, d.Length > 0)
	}
	assert.Equal(t, []string{
		"App:app/Aliased.cs",
		"App:app/Suppressed.cs",
		"App:app/Uses.cs",
		"Lib:lib/C.cs",
		"Tools:tools/Unrelated.cs",
	}, ids)
}

func TestNew_invalidProjects(t *testing.T) {
	tests := map[string][]Project{
		"duplicate": {{Name: "A"}, {Name: "A", Dir: "x"}},
		"unknown":   {{Name: "A", References: []string{"B"}}},
		"cycle":     {{Name: "A", Dir: "a", References: []string{"B"}}, {Name: "B", Dir: "b", References: []string{"A"}}},
		"unnamed":   {{Dir: "a"}},
	}
	for label, projects := range tests {
		t.Run(label, func(t *testing.T) {
			_, err := New(mapFS(nil), Options{Projects: projects})
			assert.Error(t, err)
		})
	}
}

func TestDependentProjects(t *testing.T) {
	w := newTestWorkspace(t)
	assert.Equal(t, []string{"App"}, w.DependentProjects("Lib"))
	assert.Empty(t, w.DependentProjects("App"))
	assert.Empty(t, w.DependentProjects("Tools"))
}

func TestResolve(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.op_Equality")
	assert.Equal(t, "M:N.C.op_Equality(N.C,N.C)", sym.ID())
	assert.Equal(t, "Lib", sym.Project)

	sites, err := w.DeclarationSites(context.Background(), sym)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, doc("Lib", "lib/C.cs"), sites[0].Document)
	assert.Equal(t, spanOf(t, libC, "operator ==", 0, "=="), sites[0].Span)

	syms, err := w.Resolve(context.Background(), "Nope.Missing")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

// An operator overload is found at its token.
func TestScenario_operator(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.op_Equality")
	got := search(t, w, sym, findrefs.AllDocuments(), findrefs.DefaultSearchOptions())
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Uses.cs"), Span: spanOf(t, appUses, "a == b", 0, "=="), Reason: findrefs.ReasonDefinite},
	}, got)
}

// A method named only by a suppression attribute is found there.
func TestScenario_suppression(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.M")
	opts := findrefs.DefaultSearchOptions()
	got := search(t, w, sym, findrefs.DocumentScope(doc("App", "app/Suppressed.cs")), opts)
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Suppressed.cs"), Span: spanOf(t, appSuppressed, `"N.C.M"`, 0, "N.C.M"), Reason: findrefs.ReasonViaSuppression},
	}, got)

	opts.ConsiderSuppressions = false
	got = search(t, w, sym, findrefs.DocumentScope(doc("App", "app/Suppressed.cs")), opts)
	assert.Empty(t, got)
}

// A call through a using alias is reported only when cascading.
func TestScenario_alias(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.M")
	scope := findrefs.DocumentScope(doc("App", "app/Aliased.cs"))
	opts := findrefs.DefaultSearchOptions()
	got := search(t, w, sym, scope, opts)
	checkLocations(t, []findrefs.FinderLocation{
		{
			Document:   doc("App", "app/Aliased.cs"),
			Span:       spanOf(t, appAliased, "F();", 0, "F"),
			Reason:     findrefs.ReasonViaAlias,
			AliasChain: []string{"F"},
			Usage:      findrefs.UsageRead,
		},
	}, got)
	require.Len(t, got[0].AliasChain, 1)

	opts.CascadeThroughAliases = false
	got = search(t, w, sym, scope, opts)
	assert.Empty(t, got)
}

// An operator without a textual form is only found through suppressions.
func TestScenario_operatorWithoutSpelling(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.op_True")
	assert.Equal(t, findrefs.OpNone, findrefs.GetPredefinedOperator(sym))

	opts := findrefs.DefaultSearchOptions()
	opts.ConsiderSuppressions = false
	assert.Empty(t, search(t, w, sym, findrefs.AllDocuments(), opts))

	opts.ConsiderSuppressions = true
	got := search(t, w, sym, findrefs.AllDocuments(), opts)
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Suppressed.cs"), Span: spanOf(t, appSuppressed, `"N.C.op_True(N.C)"`, 0, "N.C.op_True"), Reason: findrefs.ReasonViaSuppression},
	}, got)
}

const libOverloads = `namespace N
{
    public class C
    {
        public static void M(int a) { }
        public static void M(string s) { }
    }
}
`

const appSuppressionForms = `using System.Diagnostics.CodeAnalysis;
using SM = System.Diagnostics.CodeAnalysis.SuppressMessageAttribute;

[assembly: SuppressMessage("Style", "x", Scope = "member", Target = "~M:N.C.M(System.Int32)")]

namespace App
{
    [SuppressMessage("Style", "x", Target = "N.C.M(System.Int32)")]
    class Named { }

    [SuppressMessage("Style", "x", Target = "N.C.M(System.String)")]
    class OtherOverload { }

    [SM("Style", "N.C.M")]
    class Aliased { }
}
`

func TestFindReferences_suppressionForms(t *testing.T) {
	files := map[string]string{
		"lib/C.cs":     libOverloads,
		"app/Forms.cs": appSuppressionForms,
	}
	w, err := New(mapFS(files), Options{Root: "/", Projects: testProjects[:2]})
	require.NoError(t, err)
	sym := resolveOne(t, w, "N.C.M(System.Int32)")
	assert.Equal(t, "M:N.C.M(System.Int32)", sym.ID())

	id := doc("App", "app/Forms.cs")
	got := search(t, w, sym, findrefs.AllDocuments(), findrefs.DefaultSearchOptions())
	checkLocations(t, []findrefs.FinderLocation{
		{Document: id, Span: spanOf(t, appSuppressionForms, `"~M:N.C.M(System.Int32)"`, 0, "N.C.M"), Reason: findrefs.ReasonViaSuppression},
		{Document: id, Span: spanOf(t, appSuppressionForms, `"N.C.M(System.Int32)"`, 0, "N.C.M"), Reason: findrefs.ReasonViaSuppression},
		{Document: id, Span: spanOf(t, appSuppressionForms, `"N.C.M"`, 0, "N.C.M"), Reason: findrefs.ReasonViaSuppression},
	}, got)
}

func TestFindReferences_wholeWorkspace(t *testing.T) {
	w := newTestWorkspace(t)
	sym := resolveOne(t, w, "N.C.M")
	got := search(t, w, sym, findrefs.AllDocuments(), findrefs.DefaultSearchOptions())
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Aliased.cs"), Span: spanOf(t, appAliased, "F();", 0, "F"), Reason: findrefs.ReasonViaAlias, AliasChain: []string{"F"}, Usage: findrefs.UsageRead},
		{Document: doc("App", "app/Suppressed.cs"), Span: spanOf(t, appSuppressed, `"N.C.M"`, 0, "N.C.M"), Reason: findrefs.ReasonViaSuppression},
	}, got)
}

func TestFindReferences_accessors(t *testing.T) {
	w := newTestWorkspace(t)
	prop := resolveOne(t, w, "N.C.X")
	got := search(t, w, prop, findrefs.AllDocuments(), findrefs.DefaultSearchOptions())
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Uses.cs"), Span: spanOf(t, appUses, "a.X = 1", 0, "X"), Reason: findrefs.ReasonDefinite, Usage: findrefs.UsageWrite},
		{Document: doc("App", "app/Uses.cs"), Span: spanOf(t, appUses, "a.X > 0", 0, "X"), Reason: findrefs.ReasonDefinite, Usage: findrefs.UsageRead},
	}, got)

	d, err := w.Declarations(context.Background(), "Lib")
	require.NoError(t, err)
	var setter *findrefs.Symbol
	for _, m := range d.MembersNamed("X") {
		setter = d.AccessorSymbol(m, findrefs.MethodPropertySet)
	}
	require.NotNil(t, setter)
	opts := findrefs.DefaultSearchOptions()
	opts.AssociatePropertyReferencesWithAccessors = true
	got = search(t, w, setter, findrefs.AllDocuments(), opts)
	checkLocations(t, []findrefs.FinderLocation{
		{Document: doc("App", "app/Uses.cs"), Span: spanOf(t, appUses, "a.X = 1", 0, "X"), Reason: findrefs.ReasonDefinite, Usage: findrefs.UsageWrite},
	}, got)
}

func TestSymbolAt(t *testing.T) {
	w := newTestWorkspace(t)
	id := doc("App", "app/Uses.cs")
	span := spanOf(t, appUses, "a == b", 0, "==")
	sym, got, err := w.SymbolAt(context.Background(), id, span.Start)
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, "M:N.C.op_Equality(N.C,N.C)", sym.ID())
	assert.Equal(t, span, got)

	sym, _, err = w.SymbolAt(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Nil(t, sym)
}

func TestInvalidate(t *testing.T) {
	files := map[string][]byte{"a/A.cs": []byte("class A { void M() { } }")}
	w, err := New(ctxvfs.Map(files), Options{Root: "/"})
	require.NoError(t, err)
	ctx := context.Background()
	docs, err := w.Documents(ctx, findrefs.AllDocuments())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	before := docs[0]
	assert.Equal(t, "default", before.ID.Project)

	// Unchanged content keeps the version.
	require.NoError(t, w.Invalidate(ctx, "a/A.cs"))
	docs, _ = w.Documents(ctx, findrefs.AllDocuments())
	assert.Equal(t, before.Version, docs[0].Version)

	files["a/A.cs"] = []byte("class A { void M() { } void N() { } }")
	files["a/B.cs"] = []byte("class B { }")
	require.NoError(t, w.Invalidate(ctx, "a/A.cs"))
	require.NoError(t, w.Invalidate(ctx, "a/B.cs"))
	docs, _ = w.Documents(ctx, findrefs.AllDocuments())
	require.Len(t, docs, 2)
	assert.True(t, docs[0].Version > before.Version)
	assert.Equal(t, len(files["a/A.cs"]), docs[0].Length)

	// The stale snapshot can no longer be parsed.
	_, err = w.SyntaxRoot(ctx, before)
	assert.Error(t, err)

	syms, err := w.Resolve(ctx, "A.N")
	require.NoError(t, err)
	assert.Len(t, syms, 1)

	delete(files, "a/B.cs")
	require.NoError(t, w.Invalidate(ctx, "a/B.cs"))
	docs, _ = w.Documents(ctx, findrefs.AllDocuments())
	assert.Len(t, docs, 1)
}

func TestCache_fillOnce(t *testing.T) {
	c := newFileCache()
	calls := 0
	fill := func() interface{} { calls++; return calls }
	assert.Equal(t, 1, c.Get("k", fill))
	assert.Equal(t, 1, c.Get("k", fill))
	c.Forget("k")
	assert.Equal(t, 2, c.Get("k", fill))
	assert.Equal(t, 1, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
