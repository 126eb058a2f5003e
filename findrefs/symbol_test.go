package findrefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPredefinedOperator(t *testing.T) {
	tests := map[string]PredefinedOperator{
		"op_Addition":           OpAddition,
		"op_UnaryPlus":          OpAddition,
		"op_UnaryNegation":      OpSubtraction,
		"op_Subtraction":        OpSubtraction,
		"op_Equality":           OpEquality,
		"op_Inequality":         OpInequality,
		"op_Multiply":           OpMultiplication,
		"op_OnesComplement":     OpComplement,
		"op_LogicalNot":         OpLogicalNot,
		"op_UnsignedRightShift": OpUnsignedRightShift,
		"op_CheckedAddition":    OpAddition,
		"op_True":               OpNone,
		"op_False":              OpNone,
		"op_Implicit":           OpNone,
		"op_Explicit":           OpNone,
		"Equals":                OpNone,
	}
	for name, want := range tests {
		sym := &Symbol{Kind: KindMethod, MethodKind: MethodUserDefinedOperator, Name: name, ContainingType: "C"}
		if got := GetPredefinedOperator(sym); got != want {
			t.Errorf("%s: got %s, want %s", name, got, want)
		}
	}

	ordinary := &Symbol{Kind: KindMethod, Name: "op_Addition", ContainingType: "C"}
	assert.Equal(t, OpNone, GetPredefinedOperator(ordinary), "ordinary methods have no operator form")
	assert.Equal(t, OpNone, GetPredefinedOperator(nil))
}

func TestOperatorSet(t *testing.T) {
	var s OperatorSet
	s.Add(OpEquality)
	s.Add(OpUnsignedRightShift)
	s.Add(OpNone)
	assert.True(t, s.Has(OpEquality))
	assert.True(t, s.Has(OpUnsignedRightShift))
	assert.False(t, s.Has(OpNone))
	assert.False(t, s.Has(OpAddition))
	assert.Equal(t, "{Equality,UnsignedRightShift}", s.String())
}

func TestSymbolID(t *testing.T) {
	decl := &DeclarationSite{Document: DocumentID{Project: "P", Path: "a.cs"}, Span: Span{10, 11}}
	tests := []struct {
		sym  *Symbol
		want string
	}{
		{&Symbol{Kind: KindType, Name: "C", Namespace: "N"}, "T:N.C"},
		{&Symbol{Kind: KindType, Name: "Inner", ContainingType: "N.C"}, "T:N.C.Inner"},
		{&Symbol{Kind: KindMethod, Name: "M", ContainingType: "N.C"}, "M:N.C.M()"},
		{&Symbol{Kind: KindMethod, Name: "M", ContainingType: "N.C", Parameters: []string{"System.Int32", "N.C"}}, "M:N.C.M(System.Int32,N.C)"},
		{&Symbol{Kind: KindProperty, Name: "X", ContainingType: "C"}, "P:C.X"},
		{&Symbol{Kind: KindEvent, Name: "E", ContainingType: "C"}, "E:C.E"},
		{&Symbol{Kind: KindField, Name: "f", ContainingType: "C"}, "F:C.f"},
		{&Symbol{Kind: KindLocal, Name: "v", Declaration: decl}, "L:P:a.cs@10:v"},
	}
	for _, test := range tests {
		if got := test.sym.ID(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestSymbolsEqual(t *testing.T) {
	m := &Symbol{Kind: KindMethod, Name: "M", ContainingType: "C", Project: "P"}
	mCopy := *m
	mOther := &Symbol{Kind: KindMethod, Name: "M", ContainingType: "C", Project: "Q"}
	mNoProject := &Symbol{Kind: KindMethod, Name: "M", ContainingType: "C"}
	overload := &Symbol{Kind: KindMethod, Name: "M", ContainingType: "C", Parameters: []string{"int"}, Project: "P"}

	assert.True(t, SymbolsEqual(m, &mCopy))
	assert.False(t, SymbolsEqual(m, mOther))
	assert.True(t, SymbolsEqual(m, mNoProject))
	assert.False(t, SymbolsEqual(m, overload))
	assert.False(t, SymbolsEqual(m, nil))
	assert.True(t, SymbolsEqual(nil, nil))
}

func TestSelectFinders(t *testing.T) {
	decl := &DeclarationSite{Document: DocumentID{Project: "P", Path: "a.cs"}}
	tests := []struct {
		name string
		sym  *Symbol
		want []string
	}{
		{"method", &Symbol{Kind: KindMethod, Name: "M"}, []string{"member", "alias", "suppression"}},
		{"property", &Symbol{Kind: KindProperty, Name: "X"}, []string{"member", "alias", "suppression"}},
		{"event", &Symbol{Kind: KindEvent, Name: "E"}, []string{"member", "alias", "suppression"}},
		{"type", &Symbol{Kind: KindType, Name: "C"}, []string{"member", "alias", "suppression"}},
		{"operator", &Symbol{Kind: KindMethod, MethodKind: MethodUserDefinedOperator, Name: "op_Addition"}, []string{"operator"}},
		{"builtin operator", &Symbol{Kind: KindMethod, MethodKind: MethodBuiltinOperator, Name: "op_Addition"}, []string{"operator"}},
		{"getter", &Symbol{Kind: KindMethod, MethodKind: MethodPropertyGet, Name: "get_X", AssociatedProperty: "X"}, []string{"accessor", "suppression"}},
		{"local", &Symbol{Kind: KindLocal, Name: "v", Declaration: decl}, []string{"local"}},
		{"parameter", &Symbol{Kind: KindParameter, Name: "p", Declaration: decl}, []string{"local"}},
		{"label", &Symbol{Kind: KindLabel, Name: "done", Declaration: decl}, []string{"local"}},
		{"conversion", &Symbol{Kind: KindMethod, MethodKind: MethodConversion, Name: "op_Implicit"}, nil},
		{"namespace", &Symbol{Kind: KindNamespace, Name: "N"}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []string
			for _, f := range SelectFinders(test.sym) {
				got = append(got, f.Name())
			}
			assert.Equal(t, test.want, got)
			// Selection is stable across calls.
			var again []string
			for _, f := range SelectFinders(test.sym) {
				again = append(again, f.Name())
			}
			assert.Equal(t, got, again)
		})
	}
}
