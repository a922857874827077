package grid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditableMask_LocksFormulas(t *testing.T) {
	display := Grid{
		{"Jan Sales", "1200", "1,200"},
		{"Total", "", "N/A"},
	}
	formula := Grid{
		{"Jan Sales", "=SUM(B1:B1)", "1200"},
		{"Total", "", " =not a formula"},
	}

	mask := EditableMask(display, formula)

	assert.Equal(t, Mask{
		{true, false, true},
		{true, true, true},
	}, mask)
	for r := range mask {
		for c := range mask[r] {
			assert.Equal(t, !IsFormula(formula[r][c]), mask[r][c], "cell %d,%d", r, c)
		}
	}
}

func TestEditableMask_RaggedTakesOverlap(t *testing.T) {
	display := Grid{{"a", "b", "c"}, {"d"}, {"e", "f"}}
	formula := Grid{{"a", "=B"}, {"d", "x", "y"}}

	mask := EditableMask(display, formula)

	require.Len(t, mask, 2)
	assert.Equal(t, []bool{true, false}, mask[0])
	assert.Equal(t, []bool{true}, mask[1])
	_, ok := mask.At(2, 0)
	assert.False(t, ok)
}

func TestEditableMask_Empty(t *testing.T) {
	assert.Empty(t, EditableMask(nil, Grid{{"=A1"}}))
	assert.Empty(t, EditableMask(Grid{}, Grid{}))
}

func TestMerge_OnlyEditableCells(t *testing.T) {
	current := Grid{
		{"Label", "=SUM(C1:C2)", "10"},
		{"Other", "5", "=C1*2"},
	}
	incoming := Grid{
		{"Changed", "999", "11"},
		{"Other!", "6", "overwritten?"},
	}
	editable := Mask{
		{false, false, true},
		{true, true, false},
	}

	merged, rows := Merge(current, incoming, editable)

	assert.Equal(t, 2, rows)
	assert.Equal(t, Grid{
		{"Label", "=SUM(C1:C2)", "11"},
		{"Other!", "6", "=C1*2"},
	}, merged)
	assert.Equal(t, "10", current[0][2], "current must not be mutated")
}

func TestMerge_PreservesDimensions(t *testing.T) {
	current := Grid{{"a", "b", "c"}, {"d", "e"}, {"f"}}
	incoming := Grid{{"A", "B", "C", "D", "E"}, {"D"}}
	editable := Mask{{true, true, true, true, true}, {true, true}}

	merged, rows := Merge(current, incoming, editable)

	assert.Equal(t, 2, rows)
	assert.Equal(t, Grid{{"A", "B", "C"}, {"D", "e"}, {"f"}}, merged)
}

func TestMerge_MissingMaskEntriesLockCells(t *testing.T) {
	current := Grid{{"a", "b"}, {"c", "d"}}
	incoming := Grid{{"A", "B"}, {"C", "D"}}
	editable := Mask{{true}}

	merged, rows := Merge(current, incoming, editable)

	assert.Equal(t, 2, rows)
	assert.Equal(t, Grid{{"A", "b"}, {"c", "d"}}, merged)
}

func TestMerge_StrictBooleanGate(t *testing.T) {
	editable, err := DecodeMask(json.RawMessage(`[[true, "true", 1, null, {}, false, "yes"]]`))
	require.NoError(t, err)

	current := Grid{{"0", "1", "2", "3", "4", "5", "6"}}
	incoming := Grid{{"x", "x", "x", "x", "x", "x", "x"}}
	merged, _ := Merge(current, incoming, editable)

	assert.Equal(t, Grid{{"x", "1", "2", "3", "4", "5", "6"}}, merged)
}

func TestMerge_EmptyIncoming(t *testing.T) {
	current := Grid{{"a"}}
	merged, rows := Merge(current, Grid{}, Mask{})
	assert.Zero(t, rows)
	assert.Equal(t, current, merged)
}

func TestPad(t *testing.T) {
	assert.Equal(t, Grid{{"a", "", ""}, {"b", "c", "d"}, {"", "", ""}}, Grid{{"a"}, {"b", "c", "d"}, {}}.Pad())
}
