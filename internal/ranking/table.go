// Package ranking provides the in-memory ranking table returned by every
// ranking database: one row per regulatory feature, one column per gene or
// region, 0-based ranks as values.
package ranking

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Table is a features x genes matrix of ranks stored column by column.
//
// A Table is never modified after construction. Views returned by
// SelectGenes share column storage with their parent.
type Table struct {
	features []string
	genes    []string
	columns  [][]int32 // columns[j][i] is the rank of genes[j] for features[i]

	geneIdx    map[string]int
	featureIdx map[string]int
}

// NewTable creates a table from row labels, column labels and rank columns.
// Every column must hold exactly one rank per feature.
func NewTable(features, genes []string, columns [][]int32) (*Table, error) {
	if len(genes) != len(columns) {
		return nil, fmt.Errorf("ranking table: %d gene labels for %d columns", len(genes), len(columns))
	}
	for j, col := range columns {
		if len(col) != len(features) {
			return nil, fmt.Errorf("ranking table: column %q has %d ranks, want %d", genes[j], len(col), len(features))
		}
	}

	t := &Table{
		features: features,
		genes:    genes,
		columns:  columns,
	}
	t.geneIdx = make(map[string]int, len(genes))
	for j, g := range genes {
		if _, dup := t.geneIdx[g]; dup {
			return nil, fmt.Errorf("ranking table: duplicate gene %q", g)
		}
		t.geneIdx[g] = j
	}
	t.featureIdx = make(map[string]int, len(features))
	for i, f := range features {
		t.featureIdx[f] = i
	}
	return t, nil
}

// Features returns the row labels. The slice must not be modified.
func (t *Table) Features() []string { return t.features }

// Genes returns the column labels. The slice must not be modified.
func (t *Table) Genes() []string { return t.genes }

// NumFeatures returns the number of rows.
func (t *Table) NumFeatures() int { return len(t.features) }

// NumGenes returns the number of columns.
func (t *Table) NumGenes() int { return len(t.genes) }

// ColumnAt returns the ranks of the j-th gene. The slice must not be modified.
func (t *Table) ColumnAt(j int) []int32 { return t.columns[j] }

// Column returns the ranks of a gene for every feature.
func (t *Table) Column(gene string) ([]int32, bool) {
	j, ok := t.geneIdx[gene]
	if !ok {
		return nil, false
	}
	return t.columns[j], true
}

// HasGene reports whether the table has a column for gene.
func (t *Table) HasGene(gene string) bool {
	_, ok := t.geneIdx[gene]
	return ok
}

// Rank returns the rank of gene for feature.
func (t *Table) Rank(feature, gene string) (int32, bool) {
	i, ok := t.featureIdx[feature]
	if !ok {
		return 0, false
	}
	j, ok := t.geneIdx[gene]
	if !ok {
		return 0, false
	}
	return t.columns[j][i], true
}

// Row returns a freshly allocated copy of the ranks of the i-th feature, in
// column order.
func (t *Table) Row(i int) []int32 {
	row := make([]int32, len(t.columns))
	for j, col := range t.columns {
		row[j] = col[i]
	}
	return row
}

// SelectGenes returns a view restricted to the columns whose gene is in keep.
// Column order follows this table, not keep. Rows are unchanged.
func (t *Table) SelectGenes(keep mapset.Set[string]) *Table {
	genes := make([]string, 0, min(keep.Cardinality(), len(t.genes)))
	columns := make([][]int32, 0, cap(genes))
	for j, g := range t.genes {
		if keep.Contains(g) {
			genes = append(genes, g)
			columns = append(columns, t.columns[j])
		}
	}

	v := &Table{
		features:   t.features,
		genes:      genes,
		columns:    columns,
		featureIdx: t.featureIdx,
	}
	v.geneIdx = make(map[string]int, len(genes))
	for j, g := range genes {
		v.geneIdx[g] = j
	}
	return v
}

// Equal reports whether both tables have the same features, genes and ranks
// in the same order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.features, o.features) || !slices.Equal(t.genes, o.genes) {
		return false
	}
	for j := range t.columns {
		if !slices.Equal(t.columns[j], o.columns[j]) {
			return false
		}
	}
	return true
}

// EquivalentColumns reports whether both tables hold the same set of genes with
// the same ranks per feature, ignoring column order.
func (t *Table) EquivalentColumns(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.features, o.features) || len(t.genes) != len(o.genes) {
		return false
	}
	for j, g := range t.genes {
		col, ok := o.Column(g)
		if !ok || !slices.Equal(t.columns[j], col) {
			return false
		}
	}
	return true
}
