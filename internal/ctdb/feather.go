package ctdb

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// featherSource reads Feather v2 files. The IPC format has no column
// projection, so whole record batches are read and the decoder picks the
// requested columns.
type featherSource struct {
	f *os.File
	r *ipc.FileReader
}

func openFeather(path string) (*featherSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feather file: %w", err)
	}

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read feather footer %s: %w", path, err)
	}

	return &featherSource{f: f, r: r}, nil
}

func (s *featherSource) Schema() *arrow.Schema { return s.r.Schema() }

func (s *featherSource) Records(ctx context.Context, _ []int) ([]arrow.Record, error) {
	records := make([]arrow.Record, 0, s.r.NumRecords())
	for i := 0; i < s.r.NumRecords(); i++ {
		if err := ctx.Err(); err != nil {
			releaseAll(records)
			return nil, err
		}
		rec, err := s.r.RecordAt(i)
		if err != nil {
			releaseAll(records)
			return nil, fmt.Errorf("record batch %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *featherSource) Close() error {
	if err := s.r.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func releaseAll(records []arrow.Record) {
	for _, rec := range records {
		rec.Release()
	}
}
