package ctdb

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/ranking"
)

// pandasIndexColumn is written by pandas when a non-default index is stored.
const pandasIndexColumn = "__index_level_0__"

// regionIDPattern matches region identifiers such as "chr1:10000-10500".
var regionIDPattern = regexp.MustCompile(`^chr[^:]+:\d+-\d+$`)

// source reads record batches from an open columnar file.
type source interface {
	Schema() *arrow.Schema
	// Records returns all record batches holding at least the given fields.
	// The caller releases every returned record.
	Records(ctx context.Context, fields []int) ([]arrow.Record, error)
	Close() error
}

// Option configures a Store.
type Option func(*options)

type options struct {
	threads int
	idType  *IDType
	logger  *zap.Logger
}

// WithThreads overrides the process-wide decode pool size for one store.
// Values below 1 fall back to CPUCount.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = n }
}

// WithIDType skips identifier type detection.
func WithIDType(t IDType) Option {
	return func(o *options) { o.idType = &t }
}

// WithLogger sets the logger for debug messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Store is an open rankings database.
//
// Only the file schema is read at Open. Every SubsetToTable call decodes the
// requested rank columns again.
type Store struct {
	path        string
	mu          sync.Mutex // guards src
	src         source
	threads     int
	logger      *zap.Logger
	featureCol  int
	featureType FeatureType
	ids         IDs
	idField     map[string]int // identifier -> schema field index
}

// Open opens a rankings database. Files ending in .parquet are read as
// Parquet, everything else as Feather v2 (Arrow IPC file format).
func Open(path string, opts ...Option) (*Store, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return OpenParquet(path, opts...)
	}
	return OpenFeather(path, opts...)
}

// OpenFeather opens a Feather v2 rankings database.
func OpenFeather(path string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	src, err := openFeather(path)
	if err != nil {
		return nil, err
	}
	return openStore(path, src, o)
}

// OpenParquet opens a Parquet rankings database.
func OpenParquet(path string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	src, err := openParquet(path, o.threads)
	if err != nil {
		return nil, err
	}
	return openStore(path, src, o)
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func openStore(path string, src source, o options) (*Store, error) {
	s, err := newStore(path, src, o)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open rankings database %s: %w", path, err)
	}

	s.logger.Debug("opened rankings database",
		zap.String("path", path),
		zap.Int("ids", s.ids.Len()),
		zap.Stringer("id_type", s.ids.Type),
		zap.Stringer("feature_type", s.featureType))
	return s, nil
}

func newStore(path string, src source, o options) (*Store, error) {
	schema := src.Schema()

	featureCol := findFeatureColumn(schema)
	if featureCol < 0 {
		return nil, ErrNoFeatureColumn
	}

	s := &Store{
		path:        path,
		src:         src,
		threads:     o.threads,
		logger:      o.logger,
		featureCol:  featureCol,
		featureType: featureTypeOf(schema.Field(featureCol).Name),
		idField:     make(map[string]int, schema.NumFields()),
	}

	ids := make([]string, 0, schema.NumFields()-1)
	for i, f := range schema.Fields() {
		if i == featureCol || f.Name == pandasIndexColumn {
			continue
		}
		if !isRankType(f.Type) {
			return nil, fmt.Errorf("%w: column %q is %s", ErrRankType, f.Name, f.Type)
		}
		s.idField[f.Name] = i
		ids = append(ids, f.Name)
	}

	idType := detectIDType(path, ids)
	if o.idType != nil {
		idType = *o.idType
	}
	s.ids = IDs{IDs: ids, Type: idType}
	return s, nil
}

// findFeatureColumn returns the index of the feature name column: a column
// called motifs, tracks or features, otherwise the last string column.
func findFeatureColumn(schema *arrow.Schema) int {
	for _, name := range []string{"motifs", "tracks", "features"} {
		if idx := schema.FieldIndices(name); len(idx) == 1 && isLabelType(schema.Field(idx[0]).Type) {
			return idx[0]
		}
	}
	for i := schema.NumFields() - 1; i >= 0; i-- {
		f := schema.Field(i)
		if f.Name != pandasIndexColumn && isLabelType(f.Type) {
			return i
		}
	}
	return -1
}

func featureTypeOf(column string) FeatureType {
	switch column {
	case "motifs":
		return Motifs
	case "tracks":
		return Tracks
	}
	return Features
}

// detectIDType follows the cisTarget file naming convention
// (*.regions_vs_motifs.rankings.feather, *.genes_vs_tracks.rankings.feather)
// and falls back to the identifier syntax.
func detectIDType(path string, ids []string) IDType {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(base, "regions_vs_"):
		return Regions
	case strings.Contains(base, "genes_vs_"):
		return Genes
	}
	if len(ids) == 0 {
		return Genes
	}
	for _, id := range ids {
		if !regionIDPattern.MatchString(id) {
			return Genes
		}
	}
	return Regions
}

// Path returns the file the store was opened from.
func (s *Store) Path() string { return s.path }

// NumTotalIDs returns the number of ranked genes or regions.
func (s *Store) NumTotalIDs() int { return s.ids.Len() }

// AllIDs returns every identifier in file order.
func (s *Store) AllIDs() IDs { return NewIDs(s.ids.IDs, s.ids.Type) }

// IDType returns whether the store ranks genes or regions.
func (s *Store) IDType() IDType { return s.ids.Type }

// FeatureType returns the kind of features ranked in the store.
func (s *Store) FeatureType() FeatureType { return s.featureType }

// Threads returns the decode pool size used by the next SubsetToTable call.
func (s *Store) Threads() int {
	if s.threads > 0 {
		return s.threads
	}
	return CPUCount()
}

// SubsetToTable materializes the ranks of the given identifiers for every
// feature. Columns come back in file order regardless of the order of ids.
// An empty collection yields a table with all features and no columns.
func (s *Store) SubsetToTable(ctx context.Context, ids IDs) (*ranking.Table, error) {
	if ids.Type != s.ids.Type {
		return nil, fmt.Errorf("%w: database has %s, got %s", ErrIDTypeMismatch, s.ids.Type, ids.Type)
	}

	want := mapset.NewThreadUnsafeSet(ids.IDs...)
	for _, id := range ids.IDs {
		if _, ok := s.idField[id]; !ok {
			return nil, fmt.Errorf("%w: %q not in %s", ErrUnknownID, id, s.path)
		}
	}

	names := make([]string, 0, want.Cardinality())
	fields := make([]int, 0, want.Cardinality()+1)
	for _, id := range s.ids.IDs {
		if want.Contains(id) {
			names = append(names, id)
			fields = append(fields, s.idField[id])
		}
	}
	fields = append(fields, s.featureCol)

	s.mu.Lock()
	records, err := s.src.Records(ctx, fields)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	featureName := s.src.Schema().Field(s.featureCol).Name
	features, columns, err := decodeRecords(ctx, records, featureName, names, s.Threads())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	s.logger.Debug("materialized rankings",
		zap.String("path", s.path),
		zap.Int("features", len(features)),
		zap.Int("ids", len(names)),
		zap.Int("threads", s.Threads()))

	return ranking.NewTable(features, names, columns)
}

// Close releases the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Close()
}
