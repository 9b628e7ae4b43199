package ranking

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		[]string{"motif1", "motif2"},
		[]string{"A", "B", "C", "D"},
		[][]int32{{0, 3}, {1, 2}, {2, 1}, {3, 0}},
	)
	require.NoError(t, err)
	return tbl
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]string{"m"}, []string{"A", "B"}, [][]int32{{0}})
	assert.Error(t, err, "label/column count mismatch")

	_, err = NewTable([]string{"m1", "m2"}, []string{"A"}, [][]int32{{0}})
	assert.Error(t, err, "short column")

	_, err = NewTable([]string{"m"}, []string{"A", "A"}, [][]int32{{0}, {1}})
	assert.Error(t, err, "duplicate gene")
}

func TestTable_Accessors(t *testing.T) {
	tbl := testTable(t)

	assert.Equal(t, 2, tbl.NumFeatures())
	assert.Equal(t, 4, tbl.NumGenes())

	col, ok := tbl.Column("C")
	require.True(t, ok)
	assert.Equal(t, []int32{2, 1}, col)

	_, ok = tbl.Column("Z")
	assert.False(t, ok)

	r, ok := tbl.Rank("motif2", "A")
	require.True(t, ok)
	assert.Equal(t, int32(3), r)

	assert.Equal(t, []int32{3, 2, 1, 0}, tbl.Row(1))
}

func TestTable_SelectGenes(t *testing.T) {
	tbl := testTable(t)

	// Order of the keep set is irrelevant; table order wins.
	v := tbl.SelectGenes(mapset.NewSet("D", "B", "E"))
	assert.Equal(t, []string{"B", "D"}, v.Genes())
	assert.Equal(t, tbl.Features(), v.Features())

	r, ok := v.Rank("motif1", "D")
	require.True(t, ok)
	assert.Equal(t, int32(3), r)

	// Parent is untouched.
	assert.Equal(t, 4, tbl.NumGenes())
}

func TestTable_SelectGenes_Empty(t *testing.T) {
	tbl := testTable(t)

	v := tbl.SelectGenes(mapset.NewSet[string]())
	assert.Equal(t, 0, v.NumGenes())
	assert.Equal(t, 2, v.NumFeatures())
}

func TestTable_Equal(t *testing.T) {
	a := testTable(t)
	b := testTable(t)
	assert.True(t, a.Equal(b))

	c, err := NewTable(
		[]string{"motif1", "motif2"},
		[]string{"D", "C", "B", "A"},
		[][]int32{{3, 0}, {2, 1}, {1, 2}, {0, 3}},
	)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.True(t, a.EquivalentColumns(c))
}
