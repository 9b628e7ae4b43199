package output

import (
	"bytes"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/rnkdb/internal/ranking"
)

func testTable(t *testing.T) *ranking.Table {
	t.Helper()
	tbl, err := ranking.NewTable(
		[]string{"motif1", "motif2"},
		[]string{"TP53", "KRAS", "EGFR"},
		[][]int32{{0, 1}, {2, 0}, {1, 2}},
	)
	require.NoError(t, err)
	return tbl
}

func TestTableWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTableWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(testTable(t)))
	require.NoError(t, w.Flush())

	want := "feature\tTP53\tKRAS\tEGFR\n" +
		"motif1\t0\t2\t1\n" +
		"motif2\t1\t0\t2\n"
	assert.Equal(t, want, buf.String())
}

func TestTableWriter_HeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewTableWriter(&buf)

	require.NoError(t, w.Write(testTable(t)))
	require.NoError(t, w.Write(testTable(t)))
	require.NoError(t, w.Flush())

	assert.Equal(t, 1, strings.Count(buf.String(), "feature\t"))
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
}

func TestTableWriter_NoGenes(t *testing.T) {
	tbl, err := ranking.NewTable([]string{"m1", "m2"}, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewTableWriter(&buf)
	require.NoError(t, w.Write(tbl))
	require.NoError(t, w.Flush())

	assert.Equal(t, "feature\nm1\nm2\n", buf.String())
}

func TestLongWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewLongWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(testTable(t)))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "feature\tgene\trank", lines[0])
	assert.Equal(t, "motif1\tTP53\t0", lines[1])
	assert.Equal(t, "motif1\tKRAS\t2", lines[2])
	assert.Equal(t, "motif2\tEGFR\t2", lines[6])
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer

	w, ok := NewWriter(&buf, "")
	require.True(t, ok)
	assert.IsType(t, &TableWriter{}, w)

	w, ok = NewWriter(&buf, FormatLong)
	require.True(t, ok)
	assert.IsType(t, &LongWriter{}, w)

	_, ok = NewWriter(&buf, "xml")
	assert.False(t, ok)
}

func TestSignatureWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewSignatureWriter(&buf)

	one := testTable(t).SelectGenes(mapset.NewSet("KRAS"))

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write("hallmark_a", one))
	require.NoError(t, w.Write("hallmark_b", one))
	require.NoError(t, w.Flush())

	want := "signature\tfeature\tgene\trank\n" +
		"hallmark_a\tmotif1\tKRAS\t2\n" +
		"hallmark_a\tmotif2\tKRAS\t0\n" +
		"hallmark_b\tmotif1\tKRAS\t2\n" +
		"hallmark_b\tmotif2\tKRAS\t0\n"
	assert.Equal(t, want, buf.String())
}
