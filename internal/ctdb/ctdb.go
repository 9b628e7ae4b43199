// Package ctdb reads cisTarget ranking databases.
//
// A rankings database is a columnar file with one string column naming the
// regulatory features (motifs or tracks) and one integer column per gene or
// region holding the 0-based rank of that gene for every feature:
//
//	motifs   | GENE_A | GENE_B | ... | GENE_N
//	motif_1  |   12   |  3401  | ... |   0
//	motif_2  |  9001  |    7   | ... |  155
//
// Feather v2 (Arrow IPC) and Parquet files are supported. Rank columns are
// decoded by a bounded pool of goroutines sized by SetCPUCount.
package ctdb

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultCPUCount is the decode pool size used until SetCPUCount is called.
const DefaultCPUCount = 4

// cpuCount is 0 until SetCPUCount is called.
var cpuCount atomic.Int32

// SetCPUCount sets the process-wide number of goroutines used to decode rank
// columns. Values below 1 are clamped to 1. Safe to call repeatedly.
func SetCPUCount(n int) {
	if n < 1 {
		n = 1
	}
	cpuCount.Store(int32(n))
}

// CPUCount returns the process-wide decode pool size.
func CPUCount() int {
	if n := cpuCount.Load(); n > 0 {
		return int(n)
	}
	return DefaultCPUCount
}

// CPUCountSet reports whether SetCPUCount was called since start or the last
// ResetCPUCount.
func CPUCountSet() bool {
	return cpuCount.Load() > 0
}

// ResetCPUCount returns to DefaultCPUCount and marks the count as unset.
func ResetCPUCount() {
	cpuCount.Store(0)
}

// Errors returned by the store.
var (
	ErrNoFeatureColumn = errors.New("no feature column")
	ErrIDTypeMismatch  = errors.New("region or gene ID type mismatch")
	ErrUnknownID       = errors.New("unknown region or gene ID")
	ErrRankType        = errors.New("unsupported rank column type")
	ErrNullRank        = errors.New("null rank")
)

// IDType tells whether a database ranks genes or genomic regions.
type IDType int

const (
	Genes IDType = iota
	Regions
)

func (t IDType) String() string {
	switch t {
	case Genes:
		return "genes"
	case Regions:
		return "regions"
	}
	return fmt.Sprintf("IDType(%d)", int(t))
}

// FeatureType names the kind of regulatory feature ranked in a database,
// taken from the name of its feature column.
type FeatureType int

const (
	Features FeatureType = iota
	Motifs
	Tracks
)

// ColumnName returns the feature column name used in cisTarget files.
func (f FeatureType) ColumnName() string {
	switch f {
	case Motifs:
		return "motifs"
	case Tracks:
		return "tracks"
	}
	return "features"
}

func (f FeatureType) String() string { return f.ColumnName() }

// ParseFeatureType maps a feature column name back to its FeatureType.
// Unknown names give Features.
func ParseFeatureType(column string) FeatureType { return featureTypeOf(column) }

// IDs is a collection of region or gene identifiers tagged with their type.
type IDs struct {
	IDs  []string
	Type IDType
}

// NewIDs creates a typed identifier collection. The input slice is copied.
func NewIDs(ids []string, t IDType) IDs {
	return IDs{IDs: append([]string(nil), ids...), Type: t}
}

// Len returns the number of identifiers.
func (ids IDs) Len() int { return len(ids.IDs) }
