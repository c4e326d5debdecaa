package sigma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSelections(names ...string) *Selections {
	s := NewSelections()
	for _, n := range names {
		s.Add(n, Item("Field_"+n, Str("value")))
	}
	return s
}

func TestParseConditionBoolean(t *testing.T) {
	sels := testSelections("selection", "filter")

	tree, agg, err := ParseCondition("selection and not filter", sels)
	require.NoError(t, err)
	require.Nil(t, agg)

	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, NodeItem, tree.Children[0].Kind)
	assert.Equal(t, "Field_selection", tree.Children[0].Field)
	require.Equal(t, NodeNot, tree.Children[1].Kind)
	assert.Equal(t, "Field_filter", tree.Children[1].Operand.Field)
}

func TestParseConditionParentheses(t *testing.T) {
	sels := testSelections("a", "b", "c")

	tree, _, err := ParseCondition("a and (b or c)", sels)
	require.NoError(t, err)
	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, NodeOr, tree.Children[1].Kind)
}

func TestParseConditionChainsFlatten(t *testing.T) {
	sels := testSelections("a", "b", "c")

	tree, _, err := ParseCondition("a or b or c", sels)
	require.NoError(t, err)
	require.Equal(t, NodeOr, tree.Kind)
	assert.Len(t, tree.Children, 3)
}

func TestParseConditionOfThem(t *testing.T) {
	sels := testSelections("sel1", "sel2", "filter_main")

	one, _, err := ParseCondition("1 of them", sels)
	require.NoError(t, err)
	require.Equal(t, NodeOr, one.Kind)
	assert.Len(t, one.Children, 3)

	all, _, err := ParseCondition("all of sel*", sels)
	require.NoError(t, err)
	require.Equal(t, NodeAnd, all.Kind)
	assert.Len(t, all.Children, 2)

	single, _, err := ParseCondition("1 of filter_*", sels)
	require.NoError(t, err)
	assert.Equal(t, NodeItem, single.Kind)

	_, _, err = ParseCondition("2 of them", sels)
	require.Error(t, err)

	_, _, err = ParseCondition("1 of nomatch_*", sels)
	require.Error(t, err)
}

func TestParseConditionUnknownIdentifier(t *testing.T) {
	_, _, err := ParseCondition("missing", testSelections("selection"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParseConditionKeywordsAreLowercaseOnly(t *testing.T) {
	sels := testSelections("AND")
	tree, _, err := ParseCondition("AND", sels)
	require.NoError(t, err)
	assert.Equal(t, NodeItem, tree.Kind)
}

func TestParseConditionAggregationSplit(t *testing.T) {
	sels := testSelections("selection")

	for text, fn := range map[string]AggregationFunc{
		"selection | count(uid) > 5":              AggCount,
		"selection | min(x) > 1":                  AggMin,
		"selection | max(x) > 1":                  AggMax,
		"selection | avg(x) > 1":                  AggAvg,
		"selection | sum(x) > 1":                  AggSum,
		"selection | near selection and filter2x": AggNear,
	} {
		tree, agg, err := ParseCondition(text, sels)
		require.NoError(t, err, text)
		require.NotNil(t, agg, text)
		assert.Equal(t, fn, agg.Func, text)
		assert.Equal(t, NodeItem, tree.Kind)
	}
}

func TestParseConditionUnknownAggregation(t *testing.T) {
	_, _, err := ParseCondition("selection | median(x) > 1", testSelections("selection"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "median")
}

func TestParseConditionTrailingTokens(t *testing.T) {
	_, _, err := ParseCondition("selection selection", testSelections("selection"))
	require.Error(t, err)
}

func TestMatchIdentPattern(t *testing.T) {
	assert.True(t, matchIdentPattern("sel*", "selection"))
	assert.True(t, matchIdentPattern("*tion", "selection"))
	assert.True(t, matchIdentPattern("s*on", "selection"))
	assert.True(t, matchIdentPattern("selection", "selection"))
	assert.False(t, matchIdentPattern("sel*", "filter"))
	assert.False(t, matchIdentPattern("s*z", "selection"))
}
