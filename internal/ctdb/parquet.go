package ctdb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// parquetBatchSize is the number of feature rows per decoded record batch.
const parquetBatchSize = 64 * 1024

// parquetSource reads Parquet rankings. Only the requested columns are read
// from disk.
type parquetSource struct {
	pf     *file.Reader
	fr     *pqarrow.FileReader
	schema *arrow.Schema
}

func openParquet(path string, threads int) (*parquetSource, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	if threads <= 0 {
		threads = CPUCount()
	}
	props := pqarrow.ArrowReadProperties{
		Parallel:  threads > 1,
		BatchSize: parquetBatchSize,
	}
	fr, err := pqarrow.NewFileReader(pf, props, memory.DefaultAllocator)
	if err != nil {
		_ = pf.Close()
		return nil, fmt.Errorf("create arrow file reader: %w", err)
	}

	schema, err := fr.Schema()
	if err != nil {
		_ = pf.Close()
		return nil, fmt.Errorf("get arrow schema: %w", err)
	}

	return &parquetSource{pf: pf, fr: fr, schema: schema}, nil
}

func (s *parquetSource) Schema() *arrow.Schema { return s.schema }

func (s *parquetSource) Records(ctx context.Context, fields []int) ([]arrow.Record, error) {
	rr, err := s.fr.GetRecordReader(ctx, fields, nil)
	if err != nil {
		return nil, fmt.Errorf("create record reader: %w", err)
	}
	defer rr.Release()

	var records []arrow.Record
	for rr.Next() {
		rec := rr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		releaseAll(records)
		return nil, fmt.Errorf("arrow read error: %w", err)
	}
	return records, nil
}

func (s *parquetSource) Close() error {
	return s.pf.Close()
}
