package rnkdb

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
)

// MemoryDecorator keeps the whole table of another database in memory and
// serves every load from it. The cached table is read-only, so a
// MemoryDecorator is safe for concurrent use.
type MemoryDecorator struct {
	base
	db    Database
	table *ranking.Table
}

var _ Database = (*MemoryDecorator)(nil)

// NewMemoryDecorator loads the full table of db once.
func NewMemoryDecorator(db Database, opts ...Option) (*MemoryDecorator, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database should be supplied", ErrInvalidArgument)
	}
	o := buildOptions(opts)

	start := time.Now()
	table, err := db.LoadFull()
	if err != nil {
		return nil, fmt.Errorf("load %s into memory: %w", db.Name(), err)
	}
	o.logger.Debug("loaded ranking database into memory",
		zap.String("db", db.Name()),
		zap.Int("features", table.NumFeatures()),
		zap.Int("genes", table.NumGenes()),
		zap.Duration("elapsed", time.Since(start)))

	return &MemoryDecorator{
		base:  base{name: db.Name()},
		db:    db,
		table: table,
	}, nil
}

// Unwrap returns the decorated database.
func (m *MemoryDecorator) Unwrap() Database { return m.db }

func (m *MemoryDecorator) TotalGenes() int { return m.db.TotalGenes() }

func (m *MemoryDecorator) Genes() []string { return m.db.Genes() }

func (m *MemoryDecorator) GeneSet() mapset.Set[string] { return m.db.GeneSet() }

// LoadFull returns the cached table.
func (m *MemoryDecorator) LoadFull() (*ranking.Table, error) {
	return m.table, nil
}

// Load returns a view of the cached table limited to the signature genes.
// Columns keep the cached order.
func (m *MemoryDecorator) Load(gs genesig.GeneSignature) (*ranking.Table, error) {
	sig, err := signatureSet(gs)
	if err != nil {
		return nil, err
	}
	return m.table.SelectGenes(sig), nil
}

// Close closes the decorated database.
func (m *MemoryDecorator) Close() error {
	return m.db.Close()
}

// GoString returns MemoryDecorator(name="...").
func (m *MemoryDecorator) GoString() string { return m.goString("MemoryDecorator") }
