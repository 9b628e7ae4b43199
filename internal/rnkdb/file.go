package rnkdb

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/ctdb"
	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
	"github.com/inodb/rnkdb/internal/threads"
)

// FileDatabase is a ranking database backed by a cisTarget rankings file.
//
// The file is opened at construction and stays open until Close. The handle
// cannot be shared across processes; reopen from Filename instead.
type FileDatabase struct {
	base
	filename string
	format   string
	store    *ctdb.Store
	logger   *zap.Logger

	genesOnce sync.Once
	genes     []string
	total     int
}

var _ Database = (*FileDatabase)(nil)

// NewFeatherDatabase opens a Feather rankings database.
func NewFeatherDatabase(filename, name string, opts ...Option) (*FileDatabase, error) {
	return newFileDatabase(filename, name, "feather", buildOptions(opts))
}

// NewParquetDatabase opens a Parquet rankings database.
func NewParquetDatabase(filename, name string, opts ...Option) (*FileDatabase, error) {
	return newFileDatabase(filename, name, "parquet", buildOptions(opts))
}

func newFileDatabase(filename, name, format string, o options) (*FileDatabase, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkFile(filename); err != nil {
		return nil, err
	}

	// Without WithThreads the store decodes with the process-wide count,
	// seeded from PYARROW_THREADS on first use.
	if o.threads <= 0 {
		threads.Init()
	}

	open := ctdb.OpenFeather
	if format == "parquet" {
		open = ctdb.OpenParquet
	}
	store, err := open(filename, ctdb.WithThreads(o.threads), ctdb.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &FileDatabase{
		base:     base{name: name},
		filename: filename,
		format:   format,
		store:    store,
		logger:   o.logger,
	}, nil
}

// Filename returns the path the database was opened from.
func (d *FileDatabase) Filename() string { return d.filename }

// Format returns "feather" or "parquet".
func (d *FileDatabase) Format() string { return d.format }

// IDType tells whether the database ranks genes or regions.
func (d *FileDatabase) IDType() ctdb.IDType { return d.store.IDType() }

// FeatureType tells whether the database ranks motifs or tracks.
func (d *FileDatabase) FeatureType() ctdb.FeatureType { return d.store.FeatureType() }

func (d *FileDatabase) catalog() {
	d.genesOnce.Do(func() {
		d.genes = d.store.AllIDs().IDs
		d.total = d.store.NumTotalIDs()
	})
}

// TotalGenes returns the number of ranked genes or regions.
func (d *FileDatabase) TotalGenes() int {
	d.catalog()
	return d.total
}

// Genes returns a copy of the ranked genes in file order.
func (d *FileDatabase) Genes() []string {
	d.catalog()
	return append([]string(nil), d.genes...)
}

// GeneSet returns the set of ranked genes.
func (d *FileDatabase) GeneSet() mapset.Set[string] {
	return d.geneSetOf(func() []string {
		d.catalog()
		return d.genes
	})
}

// LoadFull decodes the whole file. Every call reads the file again; wrap the
// database in a MemoryDecorator to keep the table.
func (d *FileDatabase) LoadFull() (*ranking.Table, error) {
	return d.store.SubsetToTable(context.Background(), d.store.AllIDs())
}

// Load decodes the columns of the signature genes present in the database.
func (d *FileDatabase) Load(gs genesig.GeneSignature) (*ranking.Table, error) {
	sig, err := signatureSet(gs)
	if err != nil {
		return nil, err
	}

	// Some signature genes may have no rank in this database.
	common := d.GeneSet().Intersect(sig)
	ids := ctdb.IDs{IDs: common.ToSlice(), Type: d.store.IDType()}

	d.logger.Debug("loading signature rankings",
		zap.String("db", d.name),
		zap.Int("signature_genes", sig.Cardinality()),
		zap.Int("found", common.Cardinality()))

	return d.store.SubsetToTable(context.Background(), ids)
}

// Close closes the rankings file.
func (d *FileDatabase) Close() error {
	return d.store.Close()
}

// GoString returns FileDatabase(name="...").
func (d *FileDatabase) GoString() string { return d.goString("FileDatabase") }
