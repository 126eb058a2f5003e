package lspext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegraph/refsearch/findrefs"
)

func TestSearchOptions_Apply(t *testing.T) {
	var params FindReferencesParams
	require.NoError(t, json.Unmarshal([]byte(`{"symbol":"N.C.M","options":{"considerSuppressions":false,"maxDegreeOfParallelism":2}}`), &params))

	base := findrefs.DefaultSearchOptions()
	got := params.Options.Apply(base)
	assert.False(t, got.ConsiderSuppressions)
	assert.True(t, got.CascadeThroughAliases)
	assert.Equal(t, 2, got.MaxDegreeOfParallelism)

	var none *SearchOptions
	assert.Equal(t, base, none.Apply(base))
}

func TestNewSymbolDescriptor(t *testing.T) {
	sym := &findrefs.Symbol{Kind: findrefs.KindMethod, Name: "M", ContainingType: "N.C", Project: "P"}
	d := NewSymbolDescriptor(sym)
	assert.Equal(t, SymbolDescriptor{ID: "M:N.C.M()", Name: "M", Kind: sym.Kind.String(), ContainerName: "N.C", Project: "P"}, d)
}
