package duckdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/rnkdb/internal/ranking"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable(t *testing.T) *ranking.Table {
	t.Helper()
	tbl, err := ranking.NewTable(
		[]string{"motif1", "motif2"},
		[]string{"A", "B", "C", "D"},
		[][]int32{{0, 3}, {1, 2}, {2, 1}, {3, 0}},
	)
	require.NoError(t, err)
	return tbl
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
}

func TestWriteAndLoadAll(t *testing.T) {
	s := openInMemory(t)
	want := testTable(t)

	fp := FileFingerprint{Path: "/db/x.feather", Size: 1000, ModTime: time.Now()}
	require.NoError(t, s.WriteTable(want, "genes", "motifs", fp))

	genes, err := s.Genes()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, genes)

	n, err := s.GeneCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	idType, err := s.MetadataValue(KeyIDType)
	require.NoError(t, err)
	assert.Equal(t, "genes", idType)

	missing, err := s.MetadataValue("nope")
	require.NoError(t, err)
	assert.Equal(t, "", missing)
}

func TestLoad_Subset(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(testTable(t), "genes", "motifs", FileFingerprint{}))

	got, err := s.Load([]string{"D", "B", "D", "E"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, got.Genes())
	assert.Equal(t, []string{"motif1", "motif2"}, got.Features())

	col, ok := got.Column("D")
	require.True(t, ok)
	assert.Equal(t, []int32{3, 0}, col)
}

func TestLoad_NoOverlap(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(testTable(t), "genes", "motifs", FileFingerprint{}))

	got, err := s.Load([]string{"X", "Y"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumGenes())
	assert.Equal(t, 2, got.NumFeatures())

	got, err = s.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumGenes())
}

func TestWriteTable_Replaces(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(testTable(t), "genes", "motifs", FileFingerprint{}))

	small, err := ranking.NewTable([]string{"track1"}, []string{"Z"}, [][]int32{{0}})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(small, "genes", "tracks", FileFingerprint{}))

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, small.Equal(got))
}

func TestWriteTable_RollsBackOnError(t *testing.T) {
	s := openInMemory(t)
	want := testTable(t)
	require.NoError(t, s.WriteTable(want, "genes", "motifs", FileFingerprint{Size: 1000}))

	// A metadata table that rejects text values makes the final step fail.
	for _, stmt := range []string{
		`DROP TABLE metadata`,
		`CREATE TABLE metadata (key VARCHAR NOT NULL, value INTEGER)`,
		`INSERT INTO metadata VALUES ('source_size', 1000)`,
	} {
		_, err := s.DB().Exec(stmt)
		require.NoError(t, err)
	}

	small, err := ranking.NewTable([]string{"track1"}, []string{"Z"}, [][]int32{{0}})
	require.NoError(t, err)
	require.Error(t, s.WriteTable(small, "genes", "tracks", FileFingerprint{}))

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "previous rankings are kept")

	size, err := s.MetadataValue(KeySourceSize)
	require.NoError(t, err)
	assert.Equal(t, "1000", size)
}

func writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(testTable(t), "genes", "motifs", FileFingerprint{}))
	require.NoError(t, s.Close())
	return path
}

func TestOpenReadOnly(t *testing.T) {
	path := writeFile(t)

	s, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, testTable(t).Equal(got))

	assert.Error(t, s.Clear(), "read-only stores reject writes")
}

func TestOpenReadOnly_Missing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	_, err := OpenReadOnly(filepath.Join(dir, "db.duckdb"))
	assert.Error(t, err)
	assert.NoDirExists(t, dir)
}

func TestOpenReadOnly_ForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenReadOnly(path)
	require.ErrorIs(t, err, ErrNotRankings)
	assert.ErrorContains(t, err, "features, genes, metadata, rankings")

	// Nothing was created in the file.
	db, err = sql.Open("duckdb", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestValid(t *testing.T) {
	s := openInMemory(t)

	now := time.Now()
	fp := FileFingerprint{Path: "/db/x.feather", Size: 1000, ModTime: now}

	// Nothing converted yet
	assert.False(t, s.Valid(fp))

	require.NoError(t, s.WriteTable(testTable(t), "genes", "motifs", fp))
	assert.True(t, s.Valid(fp))

	changed := fp
	changed.Size = 9999
	assert.False(t, s.Valid(changed))

	changed = fp
	changed.ModTime = now.Add(time.Hour)
	assert.False(t, s.Valid(changed))

	require.NoError(t, s.Clear())
	assert.False(t, s.Valid(fp))
}

func TestStatFile(t *testing.T) {
	_, err := StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
