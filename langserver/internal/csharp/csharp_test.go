package csharp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegraph/refsearch/findrefs"
)

const sampleSource = `using System.Diagnostics.CodeAnalysis;
using F = N.C.M;

namespace N
{
    public class C
    {
        public int X { get; set; }
        public static void M() { }
        public static void M(int a) { }
        public static void M(string s) { }
        public static bool operator ==(C a, C b) => true;
        public static bool operator !=(C a, C b) => false;

        /// <summary>See <see cref="operator =="/>.</summary>
        public void Use(C a, C b)
        {
            if (a == b) { }
            var n = 1 + 2;
            X = n;
            M(1);
            M("s");
            F();
            int local = X;
            local += 1;
        }
    }

    [SuppressMessage("Category", "N.C.M")]
    class D { }
}
`

type sample struct {
	f     *File
	decls *Declarations
	model *Model
}

func parseSample(t *testing.T, src string) *sample {
	t.Helper()
	f, err := Parse(context.Background(), findrefs.DocumentID{Project: "P", Path: "a.cs"}, []byte(src))
	require.NoError(t, err)
	d := NewDeclarations("P", []*File{f})
	return &sample{f: f, decls: d, model: NewModel(f, d)}
}

// token returns the nth token spelled text, trivia included.
func (s *sample) token(t *testing.T, text string, nth int) findrefs.Token {
	t.Helper()
	for _, tok := range s.f.Tokens(true) {
		if tok.Text != text {
			continue
		}
		if nth == 0 {
			return tok
		}
		nth--
	}
	t.Fatalf("token %q not found", text)
	return findrefs.Token{}
}

func (s *sample) bind(t *testing.T, text string, nth int) findrefs.SymbolInfo {
	t.Helper()
	info, err := s.model.SymbolInfo(context.Background(), s.token(t, text, nth))
	require.NoError(t, err)
	return info
}

func (s *sample) lookup(t *testing.T, query string) *findrefs.Symbol {
	t.Helper()
	syms := s.decls.Lookup(query)
	require.Len(t, syms, 1, query)
	return syms[0]
}

func TestParse(t *testing.T) {
	s := parseSample(t, sampleSource)

	aliases := s.f.AliasDirectives()
	require.Len(t, aliases, 1)
	assert.Equal(t, "F", aliases[0].Name)
	assert.Equal(t, "N.C.M", aliases[0].Target)
	assert.False(t, aliases[0].Global)
	assert.Equal(t, []string{"System.Diagnostics.CodeAnalysis"}, s.f.Usings())

	attrs := s.f.Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, "SuppressMessage", attrs[0].Name)
	require.Len(t, attrs[0].Arguments, 2)
	target := attrs[0].Arguments[1]
	assert.True(t, target.IsString)
	assert.Equal(t, "N.C.M", target.Value)
	assert.Equal(t, "N.C.M", sampleSource[target.ValueSpan.Start:target.ValueSpan.End])

	var trivia []string
	for _, tok := range s.f.Tokens(true) {
		if tok.Trivia {
			trivia = append(trivia, tok.Text)
		}
	}
	assert.Equal(t, []string{"operator", "=="}, trivia)
	for _, tok := range s.f.Tokens(false) {
		assert.False(t, tok.Trivia)
	}

	require.Len(t, s.f.Types, 2)
	assert.Equal(t, "N.C", s.f.Types[0].FullName())
	assert.Equal(t, "N.D", s.f.Types[1].FullName())
}

func TestParse_namedAttributeArguments(t *testing.T) {
	src := `using System.Diagnostics.CodeAnalysis;

[assembly: SuppressMessage("Style", "x", Scope = "member", Target = "~M:N.C.M")]
`
	s := parseSample(t, src)
	attrs := s.f.Attributes()
	require.Len(t, attrs, 1)
	a := attrs[0]
	assert.True(t, a.Global)
	require.Len(t, a.Arguments, 4)
	assert.Empty(t, a.Arguments[0].Name)
	assert.Equal(t, "Scope", a.Arguments[2].Name)
	assert.Equal(t, "member", a.Arguments[2].Value)

	target := a.Arguments[3]
	assert.Equal(t, "Target", target.Name)
	assert.True(t, target.IsString)
	assert.Equal(t, "~M:N.C.M", target.Value)
	assert.Equal(t, "~M:N.C.M", src[target.ValueSpan.Start:target.ValueSpan.End])
}

func TestDeclarations(t *testing.T) {
	s := parseSample(t, sampleSource)

	assert.Equal(t, "T:N.C", s.lookup(t, "N.C").ID())
	assert.Equal(t, "T:N.C", s.lookup(t, "C").ID())
	assert.Equal(t, "P:N.C.X", s.lookup(t, "N.C.X").ID())
	assert.Len(t, s.decls.Lookup("N.C.M"), 3)
	assert.Equal(t, "M:N.C.M(System.Int32)", s.lookup(t, "N.C.M(int)").ID())
	assert.Equal(t, "M:N.C.M()", s.lookup(t, "N.C.M()").ID())

	eq := s.lookup(t, "N.C.op_Equality")
	assert.Equal(t, findrefs.MethodUserDefinedOperator, eq.MethodKind)
	assert.Equal(t, findrefs.OpEquality, findrefs.GetPredefinedOperator(eq))
	require.NotNil(t, eq.Declaration)
	assert.Equal(t, "==", sampleSource[eq.Declaration.Span.Start:eq.Declaration.Span.End])

	add := s.lookup(t, "System.Int32.op_Addition")
	assert.Equal(t, findrefs.MethodBuiltinOperator, add.MethodKind)
	assert.Equal(t, "M:System.Int32.op_Addition(System.Int32,System.Int32)", add.ID())

	assert.Empty(t, s.decls.Lookup("N.Missing"))
	assert.Equal(t, "M:N.C.op_Equality(N.C,N.C)", eq.ID())
}

func TestDeclarations_qualifiedParameters(t *testing.T) {
	parse := func(path, src string) *File {
		f, err := Parse(context.Background(), findrefs.DocumentID{Project: "P", Path: path}, []byte(src))
		require.NoError(t, err)
		return f
	}
	a := parse("a.cs", "namespace N { public partial class C { public void Take(C c, D d) { } } }")
	b := parse("b.cs", "namespace N { public partial class C { public void Give(N.C c) { } } public class D { } }")
	use := parse("c.cs", "using N;\nclass U { void F(C c, D d) { c.Take(c, d); c.Give(c); } }")
	d := NewDeclarations("P", []*File{a, b, use})

	take := d.Lookup("N.C.Take")
	require.Len(t, take, 1)
	assert.Equal(t, "M:N.C.Take(N.C,N.D)", take[0].ID())
	give := d.Lookup("N.C.Give")
	require.Len(t, give, 1)
	assert.Equal(t, "M:N.C.Give(N.C)", give[0].ID())
	assert.Len(t, d.Lookup("N.C.Take(N.C,N.D)"), 1)

	s := &sample{f: use, decls: d, model: NewModel(use, d)}
	info := s.bind(t, "Take", 0)
	require.NotNil(t, info.Symbol)
	assert.Equal(t, take[0].ID(), info.Symbol.ID())
	info = s.bind(t, "Give", 0)
	require.NotNil(t, info.Symbol)
	assert.Equal(t, give[0].ID(), info.Symbol.ID())
}

func TestBind(t *testing.T) {
	s := parseSample(t, sampleSource)
	eq := s.lookup(t, "N.C.op_Equality")
	x := s.lookup(t, "N.C.X")
	m0 := s.lookup(t, "N.C.M()")
	mInt := s.lookup(t, "N.C.M(int)")
	mString := s.lookup(t, "N.C.M(string)")
	add := BuiltinOperator("System.Int32", "op_Addition")

	tests := []struct {
		name  string
		text  string
		nth   int
		want  *findrefs.Symbol
		chain []string
		usage findrefs.ValueUsage
	}{
		{name: "operator declaration", text: "==", nth: 0},
		{name: "operator cref", text: "==", nth: 1, want: eq},
		{name: "operator use", text: "==", nth: 2, want: eq},
		{name: "builtin addition", text: "+", nth: 0, want: add},
		{name: "compound addition", text: "+=", nth: 0, want: add},
		{name: "property declaration", text: "X", nth: 0},
		{name: "property write", text: "X", nth: 1, want: x, usage: findrefs.UsageWrite},
		{name: "property read", text: "X", nth: 2, want: x, usage: findrefs.UsageRead},
		{name: "alias target", text: "M", nth: 0},
		{name: "overload by int", text: "M", nth: 4, want: mInt, usage: findrefs.UsageRead},
		{name: "overload by string", text: "M", nth: 5, want: mString, usage: findrefs.UsageRead},
		{name: "alias declaration", text: "F", nth: 0},
		{name: "call through alias", text: "F", nth: 1, want: m0, chain: []string{"F"}, usage: findrefs.UsageRead},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			info := s.bind(t, test.text, test.nth)
			if test.want == nil {
				assert.Nil(t, info.Symbol)
				assert.Empty(t, info.Candidates)
				return
			}
			require.NotNil(t, info.Symbol, "candidates: %v", info.Candidates)
			assert.True(t, findrefs.SymbolsEqual(test.want, info.Symbol), "got %s, want %s", info.Symbol, test.want)
			assert.Equal(t, test.chain, info.AliasChain)
			if test.usage != findrefs.UsageNone {
				assert.Equal(t, test.usage, info.Usage)
			}
		})
	}
}

func TestBind_locals(t *testing.T) {
	s := parseSample(t, sampleSource)

	decl, span, err := s.model.SymbolAt(context.Background(), strings.Index(sampleSource, "local ="))
	require.NoError(t, err)
	require.NotNil(t, decl)
	assert.Equal(t, findrefs.KindLocal, decl.Kind)
	assert.Equal(t, "local", sampleSource[span.Start:span.End])

	info := s.bind(t, "local", 1)
	require.NotNil(t, info.Symbol)
	assert.Equal(t, decl.ID(), info.Symbol.ID())
	assert.Equal(t, findrefs.UsageReadWrite, info.Usage)

	param := s.bind(t, "a", 4)
	require.NotNil(t, param.Symbol)
	assert.Equal(t, findrefs.KindParameter, param.Symbol.Kind)
}

func TestBind_unknownReceiverYieldsCandidates(t *testing.T) {
	s := parseSample(t, `namespace N
{
    class C { public void Run() { } }
    class D { public void Run() { } }
    class E
    {
        void Use(dynamic x, Unknown y)
        {
            Other().Run();
        }
    }
}
`)
	info := s.bind(t, "Run", 2)
	assert.Nil(t, info.Symbol)
	var ids []string
	for _, c := range info.Candidates {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{"M:N.C.Run()", "M:N.D.Run()"}, ids)
}

func TestBind_userOperatorOperands(t *testing.T) {
	s := parseSample(t, `namespace N
{
    struct V
    {
        public static V operator +(V a, V b) => a;
        public static V operator -(V a) => a;
        public static V operator >>(V a, int n) => a;
    }
    class Use
    {
        V Field;
        void Run(V a, V b, int i)
        {
            var sum = a + b;
            var neg = -a;
            var shifted = a >> 2;
            var ints = i >> 2;
            Field += a;
            var mixed = sum + Field;
        }
    }
}
`)
	plus := s.lookup(t, "N.V.op_Addition")
	neg := s.lookup(t, "N.V.op_UnaryNegation")
	shift := s.lookup(t, "N.V.op_RightShift")

	tests := []struct {
		text string
		nth  int
		want *findrefs.Symbol
	}{
		{"+", 1, plus},
		{"-", 1, neg},
		{">>", 1, shift},
		{">>", 2, BuiltinOperator("System.Int32", "op_RightShift")},
		{"+=", 0, plus},
		{"+", 2, plus},
	}
	for _, test := range tests {
		info := s.bind(t, test.text, test.nth)
		require.NotNil(t, info.Symbol, "%s #%d", test.text, test.nth)
		assert.Equal(t, test.want.ID(), info.Symbol.ID(), "%s #%d", test.text, test.nth)
	}
}

func TestFacts(t *testing.T) {
	var facts Facts
	tests := []struct {
		tok  findrefs.Token
		want findrefs.PredefinedOperator
	}{
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: "=="}, findrefs.OpEquality},
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: "+="}, findrefs.OpAddition},
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: ">>>="}, findrefs.OpUnsignedRightShift},
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: "~"}, findrefs.OpComplement},
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: "&&"}, findrefs.OpNone},
		{findrefs.Token{Kind: findrefs.TokenPunctuation, Text: "=>"}, findrefs.OpNone},
		{findrefs.Token{Kind: findrefs.TokenIdentifier, Text: "+"}, findrefs.OpNone},
	}
	for _, test := range tests {
		if got := facts.PredefinedOperator(test.tok); got != test.want {
			t.Errorf("%q: got %s, want %s", test.tok.Text, got, test.want)
		}
	}
	assert.True(t, facts.IsSuppressionAttribute("SuppressMessage"))
	assert.True(t, facts.IsSuppressionAttribute("System.Diagnostics.CodeAnalysis.SuppressMessageAttribute"))
	assert.True(t, facts.IsSuppressionAttribute("UnconditionalSuppressMessage"))
	assert.False(t, facts.IsSuppressionAttribute("Obsolete"))
	assert.True(t, facts.IsCaseSensitive())
}

func TestLexCref(t *testing.T) {
	toks := lexCref("C.operator &lt;&lt;(C, int)", 100)
	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.Text)
		assert.True(t, tok.Trivia)
	}
	assert.Equal(t, []string{"C", ".", "operator", "<<", "(", "C", ",", "int", ")"}, texts)
	assert.Equal(t, findrefs.Span{Start: 111, End: 119}, toks[3].Span)
}

func TestCanonicalType(t *testing.T) {
	tests := map[string]string{
		"int":                        "System.Int32",
		"int[]":                      "System.Int32[]",
		"string?":                    "System.String?",
		"List<int>":                  "List<int>",
		"N.C":                        "N.C",
		" Dictionary< string , C > ": "Dictionary<string,C>",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalType(in), in)
	}
	assert.Equal(t, "System.Int64", promote("System.Int32", "System.Int64"))
	assert.Equal(t, "System.Int32", promote("System.Byte", "System.Int16"))
	assert.Equal(t, "System.Int64", promote("System.UInt32", "System.Int32"))
	assert.Equal(t, "", promote("System.String", "System.Int32"))
}
