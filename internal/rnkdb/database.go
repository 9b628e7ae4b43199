// Package rnkdb gives uniform access to whole genome ranking databases.
//
// For every regulatory feature (e.g. a transcription factor motif) a ranking
// database assigns each gene or region a 0-based rank. Callers open a
// database by file name, optionally keep it in memory, and load the ranks of
// the genes of a signature:
//
//	db, err := rnkdb.Open("hg38.genes_vs_motifs.rankings.feather", "hg38", rnkdb.WithMemory())
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	tbl, err := db.Load(sig)
package rnkdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
)

// Errors returned when opening databases. Match them with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Database is a database of whole genome rankings.
type Database interface {
	// Name returns the display name given at construction.
	Name() string
	// TotalGenes returns the number of ranked genes or regions.
	TotalGenes() int
	// Genes returns the ranked genes or regions in database order.
	Genes() []string
	// GeneSet returns the set of ranked genes. It must not be modified.
	GeneSet() mapset.Set[string]
	// LoadFull returns the ranks of all genes for all features.
	LoadFull() (*ranking.Table, error)
	// Load returns the ranks of the signature genes known to the database for
	// all features. Unknown genes are dropped.
	Load(gs genesig.GeneSignature) (*ranking.Table, error)
	// Close releases resources held by the database.
	Close() error

	fmt.Stringer
}

// base holds what every Database shares: the name and the lazily built gene
// set.
type base struct {
	name string

	geneSetOnce sync.Once
	geneSet     mapset.Set[string]
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must be specified", ErrInvalidArgument)
	}
	return nil
}

// Name returns the database name.
func (b *base) Name() string { return b.name }

// String returns the database name.
func (b *base) String() string { return b.name }

// geneSetOf builds the gene set from genes on first use.
func (b *base) geneSetOf(genes func() []string) mapset.Set[string] {
	b.geneSetOnce.Do(func() {
		b.geneSet = mapset.NewSet(genes()...)
	})
	return b.geneSet
}

func (b *base) goString(typeName string) string {
	return fmt.Sprintf("%s(name=%q)", typeName, b.name)
}

// Option configures how a database is opened.
type Option func(*options)

type options struct {
	threads int
	memory  bool
	logger  *zap.Logger
}

// WithThreads sets the number of goroutines decoding rank columns for this
// database, overriding the process-wide setting.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = n }
}

// WithMemory makes Open wrap the database in a MemoryDecorator.
func WithMemory() Option {
	return func(o *options) { o.memory = true }
}

// WithLogger sets the logger for debug and info messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkFile fails with ErrNotFound unless path is an existing regular file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: database %s doesn't exist", ErrNotFound, path)
		}
		return fmt.Errorf("%w: database %s: %w", ErrNotFound, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: database %s is not a regular file", ErrNotFound, path)
	}
	return nil
}

// signatureSet returns the distinct genes of a signature.
func signatureSet(gs genesig.GeneSignature) (mapset.Set[string], error) {
	if gs == nil {
		return nil, fmt.Errorf("%w: gene signature must be specified", ErrInvalidArgument)
	}
	return mapset.NewSet(gs.Genes()...), nil
}
