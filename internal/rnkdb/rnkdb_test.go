package rnkdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/rnkdb/internal/ctdb"
	"github.com/inodb/rnkdb/internal/duckdb"
	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
	"github.com/inodb/rnkdb/internal/threads"
)

// fixtureTable ranks genes A-D for three motifs.
func fixtureTable(t *testing.T) *ranking.Table {
	t.Helper()
	tbl, err := ranking.NewTable(
		[]string{"motif1", "motif2", "motif3"},
		[]string{"A", "B", "C", "D"},
		[][]int32{
			{0, 3, 1},
			{1, 2, 0},
			{2, 1, 3},
			{3, 0, 2},
		},
	)
	require.NoError(t, err)
	return tbl
}

func writeDB(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	switch filepath.Ext(name) {
	case ".duckdb":
		s, err := duckdb.Open(path)
		require.NoError(t, err)
		require.NoError(t, s.WriteTable(fixtureTable(t), "genes", "motifs", duckdb.FileFingerprint{}))
		require.NoError(t, s.Close())
	case ".parquet":
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, ctdb.WriteParquet(f, fixtureTable(t), ctdb.Motifs))
		require.NoError(t, f.Close())
	default:
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, ctdb.WriteFeather(f, fixtureTable(t), ctdb.Motifs))
		require.NoError(t, f.Close())
	}
	return path
}

func openDB(t *testing.T, path, name string, opts ...Option) Database {
	t.Helper()
	db, err := Open(path, name, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Name(t *testing.T) {
	path := writeDB(t, "hg38.genes_vs_motifs.rankings.feather")

	for _, name := range []string{"hg38", "hg38 10kb up", "ß-db"} {
		db := openDB(t, path, name)
		assert.Equal(t, name, db.Name())
		assert.Equal(t, name, db.String())
	}
}

func TestOpen_Errors(t *testing.T) {
	path := writeDB(t, "hg38.genes_vs_motifs.rankings.feather")

	_, err := Open(filepath.Join(t.TempDir(), "missing.feather"), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Open(t.TempDir(), "x")
	assert.ErrorIs(t, err, ErrNotFound, "directories are not databases")

	_, err = Open(path, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	for _, name := range []string{"db.csv", "db.FEATHER", "db.feather.gz", "db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

			db, err := Open(path, "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			assert.Contains(t, err.Error(), filepath.Ext(name))
			assert.Nil(t, db)
		})
	}
}

func TestFeatherDatabase_Construct(t *testing.T) {
	path := writeDB(t, "hg38.genes_vs_motifs.rankings.feather")

	_, err := NewFeatherDatabase(path, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFeatherDatabase(filepath.Join(t.TempDir(), "nope.feather"), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	db, err := NewFeatherDatabase(path, "hg38")
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Filename())
	assert.Equal(t, "feather", db.Format())
	assert.Equal(t, ctdb.Genes, db.IDType())
	assert.Equal(t, ctdb.Motifs, db.FeatureType())
	assert.Equal(t, `FileDatabase(name="hg38")`, db.GoString())
}

func TestDatabase_Metadata(t *testing.T) {
	for _, name := range []string{
		"hg38.genes_vs_motifs.rankings.feather",
		"hg38.genes_vs_motifs.rankings.parquet",
		"hg38.genes_vs_motifs.rankings.duckdb",
	} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			db := openDB(t, writeDB(t, name), "hg38")

			assert.Equal(t, []string{"A", "B", "C", "D"}, db.Genes())
			assert.Equal(t, len(db.Genes()), db.TotalGenes())
			assert.True(t, db.GeneSet().Equal(mapset.NewSet("A", "B", "C", "D")))

			// Genes is stable and callers cannot modify it.
			g := db.Genes()
			g[0] = "Z"
			assert.Equal(t, "A", db.Genes()[0])
			assert.Equal(t, 4, db.GeneSet().Cardinality())
		})
	}
}

func TestDatabase_Load(t *testing.T) {
	for _, name := range []string{
		"hg38.genes_vs_motifs.rankings.feather",
		"hg38.genes_vs_motifs.rankings.parquet",
		"hg38.genes_vs_motifs.rankings.duckdb",
	} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			path := writeDB(t, name)
			for _, mem := range []bool{false, true} {
				var opts []Option
				if mem {
					opts = append(opts, WithMemory())
				}
				db, err := Open(path, "hg38", opts...)
				require.NoError(t, err)

				sig := genesig.New("sig", []string{"D", "B", "D", "E"})
				tbl, err := db.Load(sig)
				require.NoError(t, err)
				assert.Equal(t, []string{"B", "D"}, tbl.Genes())
				assert.Equal(t, []string{"motif1", "motif2", "motif3"}, tbl.Features())

				col, ok := tbl.Column("B")
				require.True(t, ok)
				assert.Equal(t, []int32{1, 2, 0}, col)

				// Idempotent.
				again, err := db.Load(sig)
				require.NoError(t, err)
				assert.True(t, tbl.Equal(again))

				// No overlap: all features, no genes.
				none, err := db.Load(genesig.New("none", []string{"X", "Y"}))
				require.NoError(t, err)
				assert.Equal(t, 0, none.NumGenes())
				assert.Equal(t, 3, none.NumFeatures())

				_, err = db.Load(nil)
				assert.ErrorIs(t, err, ErrInvalidArgument)

				require.NoError(t, db.Close())
			}
		})
	}
}

func TestDatabase_LoadColumnsMatchIntersection(t *testing.T) {
	db := openDB(t, writeDB(t, "hg38.genes_vs_motifs.rankings.feather"), "hg38")

	sigs := [][]string{
		{},
		{"A"},
		{"C", "A", "C"},
		{"A", "B", "C", "D"},
		{"Q", "R"},
		{"D", "D", "D", "B", "Z"},
	}
	for _, genes := range sigs {
		tbl, err := db.Load(genesig.New("s", genes))
		require.NoError(t, err)

		want := db.GeneSet().Intersect(mapset.NewSet(genes...))
		assert.True(t, want.Equal(mapset.NewSet(tbl.Genes()...)), "signature %v", genes)
	}
}

func TestMemoryDecorator(t *testing.T) {
	path := writeDB(t, "hg38.genes_vs_motifs.rankings.feather")

	_, err := NewMemoryDecorator(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	file, err := NewFeatherDatabase(path, "hg38")
	require.NoError(t, err)
	mem, err := NewMemoryDecorator(file)
	require.NoError(t, err)
	defer mem.Close()

	assert.Equal(t, "hg38", mem.Name())
	assert.Equal(t, file.TotalGenes(), mem.TotalGenes())
	assert.Equal(t, file.Genes(), mem.Genes())
	assert.Same(t, Database(file), mem.Unwrap())
	assert.Equal(t, `MemoryDecorator(name="hg38")`, mem.GoString())

	fromFile, err := file.LoadFull()
	require.NoError(t, err)
	fromMem, err := mem.LoadFull()
	require.NoError(t, err)
	assert.True(t, fromFile.EquivalentColumns(fromMem))
	assert.True(t, fixtureTable(t).Equal(fromMem))

	// Served from the cache: the same table every time.
	again, err := mem.LoadFull()
	require.NoError(t, err)
	assert.Same(t, fromMem, again)

	// Column order follows the cached table, not the signature.
	tbl, err := mem.Load(genesig.New("s", []string{"D", "A"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, tbl.Genes())
}

type failingDB struct {
	Database
}

func (failingDB) Name() string { return "broken" }

func (failingDB) LoadFull() (*ranking.Table, error) { return nil, os.ErrClosed }

func TestMemoryDecorator_LoadFullError(t *testing.T) {
	_, err := NewMemoryDecorator(failingDB{})
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestWithThreads(t *testing.T) {
	path := writeDB(t, "hg38.genes_vs_motifs.rankings.feather")
	db := openDB(t, path, "hg38", WithThreads(1))

	tbl, err := db.LoadFull()
	require.NoError(t, err)
	assert.True(t, fixtureTable(t).Equal(tbl))
}

func TestOpen_ThreadsFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"0", 1},
		{"abc", 4},
		{"2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(threads.EnvVar, tt.env)
			threads.Reset()
			t.Cleanup(threads.Reset)

			for _, name := range []string{"db.feather", "db.parquet"} {
				db := openDB(t, writeDB(t, name), "hg38")
				assert.Equal(t, tt.want, db.(*FileDatabase).store.Threads(), name)

				tbl, err := db.LoadFull()
				require.NoError(t, err)
				assert.True(t, fixtureTable(t).Equal(tbl))
			}

			// An explicit count wins over the environment.
			db := openDB(t, writeDB(t, "db.feather"), "hg38", WithThreads(3))
			assert.Equal(t, 3, db.(*FileDatabase).store.Threads())
		})
	}
}

func TestParquet_LoadsSameAsFeather(t *testing.T) {
	feather := openDB(t, writeDB(t, "hg38.genes_vs_motifs.rankings.feather"), "hg38")
	parquet := openDB(t, writeDB(t, "hg38.genes_vs_motifs.rankings.parquet"), "hg38")

	assert.Equal(t, feather.Genes(), parquet.Genes())

	ft, err := feather.LoadFull()
	require.NoError(t, err)
	pt, err := parquet.LoadFull()
	require.NoError(t, err)
	assert.True(t, ft.Equal(pt))
	assert.True(t, fixtureTable(t).Equal(pt))

	sig := genesig.New("sig", []string{"C", "A", "Z"})
	fs, err := feather.Load(sig)
	require.NoError(t, err)
	ps, err := parquet.Load(sig)
	require.NoError(t, err)
	assert.True(t, fs.Equal(ps))
	assert.Equal(t, []string{"A", "C"}, ps.Genes())
}

func TestDuckDBDatabase_RejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.duckdb")
	raw, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(path, "other")
	require.ErrorIs(t, err, duckdb.ErrNotRankings)
	assert.Nil(t, db)

	raw, err = sql.Open("duckdb", path)
	require.NoError(t, err)
	defer raw.Close()
	var n int
	require.NoError(t, raw.QueryRow(`SELECT COUNT(*) FROM information_schema.tables`).Scan(&n))
	assert.Equal(t, 1, n, "the file is left untouched")
}
