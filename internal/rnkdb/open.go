package rnkdb

import (
	"fmt"
	"path/filepath"
)

// Open opens the ranking database stored in filename, choosing the backend
// by file extension:
//
//	.feather  Feather v2 rankings (cisTarget)
//	.parquet  Parquet rankings
//	.duckdb   rankings converted with `rnkdb convert`
//
// Any other extension fails with ErrUnsupportedFormat. With WithMemory the
// database is loaded once and wrapped in a MemoryDecorator.
func Open(filename, name string, opts ...Option) (Database, error) {
	if err := checkFile(filename); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: a database should be given a proper name", ErrInvalidArgument)
	}

	var (
		db  Database
		err error
	)
	switch ext := filepath.Ext(filename); ext {
	case ".feather":
		db, err = NewFeatherDatabase(filename, name, opts...)
	case ".parquet":
		db, err = NewParquetDatabase(filename, name, opts...)
	case ".duckdb":
		db, err = NewDuckDBDatabase(filename, name, opts...)
	default:
		return nil, fmt.Errorf("%w: %q is an unknown extension", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	if !buildOptions(opts).memory {
		return db, nil
	}
	mem, err := NewMemoryDecorator(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return mem, nil
}
