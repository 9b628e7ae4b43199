// Package duckdb stores ranking databases in DuckDB.
// Rankings are kept in long format (feature, gene, rank) with the gene and
// feature catalogs in their own tables, so a signature lookup is a single
// filtered query instead of a full decode.
package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	_ "github.com/marcboeker/go-duckdb"
)

// ErrNotRankings is returned by OpenReadOnly for DuckDB files that lack the
// rankings tables.
var ErrNotRankings = errors.New("not a rankings database")

var schemaTables = []string{"genes", "features", "rankings", "metadata"}

// Store manages a DuckDB connection holding one ranking database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// OpenReadOnly opens an existing rankings database without creating or
// changing anything in it. Files missing any of the rankings tables are
// rejected with ErrNotRankings.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist. WriteTable clears and
// refills all four tables in one transaction, and DuckDB rejects re-inserting
// a deleted primary key within a transaction, so the tables carry no keys.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS genes (
			idx INTEGER NOT NULL,
			gene VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS features (
			idx INTEGER NOT NULL,
			feature VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rankings (
			gene_idx INTEGER,
			feature_idx INTEGER,
			rank INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key VARCHAR NOT NULL,
			value VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// checkSchema fails unless every rankings table exists.
func (s *Store) checkSchema() error {
	rows, err := s.db.Query(`SELECT table_name FROM information_schema.tables WHERE table_schema = 'main'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	found := mapset.NewThreadUnsafeSet[string]()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		found.Add(name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tables: %w", err)
	}

	missing := mapset.NewThreadUnsafeSet(schemaTables...).Difference(found).ToSlice()
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing tables %s", ErrNotRankings, strings.Join(missing, ", "))
	}
	return nil
}
