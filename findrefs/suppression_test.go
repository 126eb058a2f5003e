package findrefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuppressionTarget(t *testing.T) {
	tests := []struct {
		in         string
		kind       byte
		name       string
		nameOffset int
		params     []string
		hasParams  bool
	}{
		{in: "C.M", name: "C.M"},
		{in: "N.C.M", name: "N.C.M"},
		{in: "~M:N.C.M", kind: 'M', name: "N.C.M", nameOffset: 3},
		{in: "M:N.C.M(System.Int32,System.String)", kind: 'M', name: "N.C.M", nameOffset: 2, params: []string{"System.Int32", "System.String"}, hasParams: true},
		{in: "~M:N.C.M()", kind: 'M', name: "N.C.M", nameOffset: 3, hasParams: true},
		{in: "N.C.M(System.Collections.Generic.Dictionary{System.Int32,System.String})", name: "N.C.M", params: []string{"System.Collections.Generic.Dictionary{System.Int32,System.String}"}, hasParams: true},
		{in: "  ~P:N.C.X", kind: 'P', name: "N.C.X", nameOffset: 5},
		{in: "~T:N.C", kind: 'T', name: "N.C", nameOffset: 3},
	}
	for _, test := range tests {
		got, ok := parseSuppressionTarget(test.in)
		require.True(t, ok, test.in)
		assert.Equal(t, test.kind, got.kind, test.in)
		assert.Equal(t, test.name, got.name, test.in)
		assert.Equal(t, test.nameOffset, got.nameOffset, test.in)
		assert.Equal(t, test.params, got.params, test.in)
		assert.Equal(t, test.hasParams, got.hasParams, test.in)
	}

	for _, bad := range []string{"", "~", "M:", "C.M)(", "Some message text"} {
		_, ok := parseSuppressionTarget(bad)
		assert.False(t, ok, bad)
	}
}

func TestSuppressionTargetMatches(t *testing.T) {
	m := &Symbol{Kind: KindMethod, Name: "M", ContainingType: "N.C", Parameters: []string{"System.Int32"}}
	x := &Symbol{Kind: KindProperty, Name: "X", ContainingType: "N.C"}
	c := &Symbol{Kind: KindType, Name: "C", Namespace: "N"}

	tests := []struct {
		target string
		sym    *Symbol
		want   bool
	}{
		{"C.M", m, true},
		{"N.C.M", m, true},
		{"~M:N.C.M(System.Int32)", m, true},
		{"N.C.M(int)", m, true},
		{"N.C.M(System.String)", m, false},
		{"N.C.M(System.Int32,System.Int32)", m, false},
		{"M", m, false},
		{"D.M", m, false},
		{"X.N.C.M", m, false},
		{"~P:N.C.M", m, false},
		{"~P:N.C.X", x, true},
		{"C.X", x, true},
		{"~T:N.C", c, true},
		{"N.C", c, true},
		{"~T:C", c, true},
		{"C", c, false},
	}
	for _, test := range tests {
		got, ok := parseSuppressionTarget(test.target)
		require.True(t, ok, test.target)
		assert.Equal(t, test.want, got.matches(test.sym, true), "%s vs %s", test.target, test.sym.ID())
	}
}

func TestSuppressionTargetArguments(t *testing.T) {
	withTarget := Attribute{Name: "SuppressMessage", Arguments: []AttributeArgument{
		{Value: "Category", IsString: true},
		{Value: "Id", IsString: true},
		{Name: "Scope", Value: "member", IsString: true},
		{Name: "Target", Value: "~M:N.C.M", IsString: true},
	}}
	args := suppressionTargetArguments(withTarget)
	require.Len(t, args, 1)
	assert.Equal(t, "~M:N.C.M", args[0].Value)

	positional := Attribute{Name: "SuppressMessage", Arguments: []AttributeArgument{
		{Value: "Category", IsString: true},
		{Value: "C.M", IsString: true},
		{Name: "Justification", Value: "N.C.M", IsString: true},
	}}
	args = suppressionTargetArguments(positional)
	require.Len(t, args, 1)
	assert.Equal(t, "C.M", args[0].Value)
}

func TestAliasNamesFor(t *testing.T) {
	aliases := []AliasDirective{
		{Name: "F", Target: "C.M"},
		{Name: "G", Target: "F"},
		{Name: "H", Target: "global::N.C.Other"},
		{Name: "K", Target: "N.C.M<int>"},
	}
	got := aliasNamesFor(&Symbol{Kind: KindMethod, Name: "M", ContainingType: "N.C"}, aliases, true)
	assert.Equal(t, map[string]bool{"F": true, "G": true, "K": true}, got)

	got = aliasNamesFor(&Symbol{Kind: KindMethod, Name: "m", ContainingType: "N.C"}, aliases, false)
	assert.Equal(t, map[string]bool{"f": true, "g": true, "k": true}, got)

	assert.Nil(t, aliasNamesFor(&Symbol{Kind: KindMethod, Name: "M"}, nil, true))
}
