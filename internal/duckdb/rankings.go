package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/rnkdb/internal/ranking"
)

// WriteTable replaces the stored rankings with t. idType and featureType
// describe the identifiers and features ("genes"/"regions",
// "motifs"/"tracks"); src identifies the file t was read from.
//
// The replacement runs in one transaction: on error the previous rankings
// and metadata are kept.
func (s *Store) WriteTable(t *ranking.Table, idType, featureType string, src FileFingerprint) error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	meta := fingerprintMetadata(src)
	meta[KeyIDType] = idType
	meta[KeyFeatureType] = featureType
	if err := writeTable(ctx, conn, t, meta); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit rankings: %w", err)
	}
	return nil
}

func writeTable(ctx context.Context, conn *sql.Conn, t *ranking.Table, meta map[string]string) error {
	if err := clearTables(ctx, conn); err != nil {
		return err
	}

	if err := appendRows(conn, "genes", func(a *goduckdb.Appender) error {
		for j, g := range t.Genes() {
			if err := a.AppendRow(int32(j), g); err != nil {
				return fmt.Errorf("append gene %s: %w", g, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := appendRows(conn, "features", func(a *goduckdb.Appender) error {
		for i, f := range t.Features() {
			if err := a.AppendRow(int32(i), f); err != nil {
				return fmt.Errorf("append feature %s: %w", f, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := appendRows(conn, "rankings", func(a *goduckdb.Appender) error {
		for j := 0; j < t.NumGenes(); j++ {
			for i, r := range t.ColumnAt(j) {
				if err := a.AppendRow(int32(j), int32(i), r); err != nil {
					return fmt.Errorf("append rank: %w", err)
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	return writeMetadata(ctx, conn, meta)
}

// appendRows bulk-inserts into table using the Appender API. Rows join the
// transaction open on conn, if any.
func appendRows(conn *sql.Conn, table string, fill func(*goduckdb.Appender) error) error {
	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}
	defer appender.Close()

	if err := fill(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// execer is satisfied by *sql.DB and *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Clear removes all stored rankings and metadata.
func (s *Store) Clear() error {
	return clearTables(context.Background(), s.db)
}

func clearTables(ctx context.Context, db execer) error {
	for _, table := range []string{"rankings", "genes", "features", "metadata"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Genes returns the gene or region catalog in stored order.
func (s *Store) Genes() ([]string, error) {
	return s.labels(`SELECT gene FROM genes ORDER BY idx`)
}

// Features returns the feature names in stored order.
func (s *Store) Features() ([]string, error) {
	return s.labels(`SELECT feature FROM features ORDER BY idx`)
}

// GeneCount returns the number of genes or regions.
func (s *Store) GeneCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM genes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count genes: %w", err)
	}
	return n, nil
}

func (s *Store) labels(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return out, nil
}

// LoadAll returns every stored rank.
func (s *Store) LoadAll() (*ranking.Table, error) {
	genes, err := s.Genes()
	if err != nil {
		return nil, err
	}
	pos := make(map[int32]int, len(genes))
	for j := range genes {
		pos[int32(j)] = j
	}
	return s.loadColumns(genes, pos, `SELECT gene_idx, feature_idx, rank FROM rankings`)
}

// Load returns the ranks of the given genes for every feature. Genes that are
// not stored are skipped; columns follow stored order.
func (s *Store) Load(genes []string) (*ranking.Table, error) {
	found, pos, err := s.lookupGenes(genes)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return s.loadColumns(nil, nil, "")
	}

	idx := make([]string, 0, len(pos))
	for i := range pos {
		idx = append(idx, strconv.Itoa(int(i)))
	}
	return s.loadColumns(found, pos,
		`SELECT gene_idx, feature_idx, rank FROM rankings WHERE gene_idx IN (`+strings.Join(idx, ",")+`)`)
}

// lookupGenes returns the stored genes among genes in stored order, and a map
// from stored index to position in that order.
func (s *Store) lookupGenes(genes []string) ([]string, map[int32]int, error) {
	if len(genes) == 0 {
		return nil, nil, nil
	}

	args := make([]any, len(genes))
	for i, g := range genes {
		args[i] = g
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(genes)), ",")

	rows, err := s.db.Query(`SELECT idx, gene FROM genes WHERE gene IN (`+placeholders+`) ORDER BY idx`, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query genes: %w", err)
	}
	defer rows.Close()

	var found []string
	pos := make(map[int32]int)
	for rows.Next() {
		var (
			i int32
			g string
		)
		if err := rows.Scan(&i, &g); err != nil {
			return nil, nil, fmt.Errorf("scan gene: %w", err)
		}
		pos[i] = len(found)
		found = append(found, g)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate genes: %w", err)
	}
	return found, pos, nil
}

// loadColumns runs query, which yields (gene_idx, feature_idx, rank) rows, and
// assembles the columns of genes. pos maps a stored gene index to its column.
func (s *Store) loadColumns(genes []string, pos map[int32]int, query string) (*ranking.Table, error) {
	features, err := s.Features()
	if err != nil {
		return nil, err
	}

	columns := make([][]int32, len(genes))
	for j := range columns {
		columns[j] = make([]int32, len(features))
	}
	if len(genes) == 0 {
		return ranking.NewTable(features, genes, columns)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	var filled int
	for rows.Next() {
		var geneIdx, featureIdx, rank int32
		if err := rows.Scan(&geneIdx, &featureIdx, &rank); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		j, ok := pos[geneIdx]
		if !ok || featureIdx < 0 || int(featureIdx) >= len(features) {
			return nil, fmt.Errorf("rank for unknown gene %d or feature %d", geneIdx, featureIdx)
		}
		columns[j][featureIdx] = rank
		filled++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rankings: %w", err)
	}
	if filled != len(genes)*len(features) {
		return nil, fmt.Errorf("incomplete rankings: got %d ranks, want %d", filled, len(genes)*len(features))
	}

	return ranking.NewTable(features, genes, columns)
}
