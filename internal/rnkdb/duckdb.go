package rnkdb

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/duckdb"
	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
)

// DuckDBDatabase is a ranking database converted to DuckDB with
// `rnkdb convert`. Signature loads are answered by a filtered query.
type DuckDBDatabase struct {
	base
	filename string
	store    *duckdb.Store
	genes    []string
	idType   string
	ftype    string
	logger   *zap.Logger
}

var _ Database = (*DuckDBDatabase)(nil)

// NewDuckDBDatabase opens a DuckDB rankings database.
func NewDuckDBDatabase(filename, name string, opts ...Option) (*DuckDBDatabase, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkFile(filename); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	store, err := duckdb.OpenReadOnly(filename)
	if err != nil {
		return nil, err
	}

	genes, err := store.Genes()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read gene catalog of %s: %w", filename, err)
	}
	meta, err := store.Metadata()
	if err != nil {
		store.Close()
		return nil, err
	}

	return &DuckDBDatabase{
		base:     base{name: name},
		filename: filename,
		store:    store,
		genes:    genes,
		idType:   meta[duckdb.KeyIDType],
		ftype:    meta[duckdb.KeyFeatureType],
		logger:   o.logger,
	}, nil
}

// Filename returns the path the database was opened from.
func (d *DuckDBDatabase) Filename() string { return d.filename }

// IDType returns "genes" or "regions" as recorded at conversion.
func (d *DuckDBDatabase) IDType() string { return d.idType }

// FeatureType returns "motifs", "tracks" or "features" as recorded at
// conversion.
func (d *DuckDBDatabase) FeatureType() string { return d.ftype }

func (d *DuckDBDatabase) TotalGenes() int { return len(d.genes) }

func (d *DuckDBDatabase) Genes() []string { return append([]string(nil), d.genes...) }

func (d *DuckDBDatabase) GeneSet() mapset.Set[string] {
	return d.geneSetOf(func() []string { return d.genes })
}

// LoadFull reads every rank from DuckDB.
func (d *DuckDBDatabase) LoadFull() (*ranking.Table, error) {
	return d.store.LoadAll()
}

// Load queries the ranks of the signature genes present in the database.
func (d *DuckDBDatabase) Load(gs genesig.GeneSignature) (*ranking.Table, error) {
	sig, err := signatureSet(gs)
	if err != nil {
		return nil, err
	}
	common := d.GeneSet().Intersect(sig)
	d.logger.Debug("loading signature rankings",
		zap.String("db", d.name),
		zap.Int("signature_genes", sig.Cardinality()),
		zap.Int("found", common.Cardinality()))
	return d.store.Load(common.ToSlice())
}

// Close closes the DuckDB connection.
func (d *DuckDBDatabase) Close() error {
	return d.store.Close()
}

// GoString returns DuckDBDatabase(name="...").
func (d *DuckDBDatabase) GoString() string { return d.goString("DuckDBDatabase") }
