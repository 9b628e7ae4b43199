package ctdb

import (
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/inodb/rnkdb/internal/ranking"
)

// WriteFeather writes t as a Feather v2 rankings database with LZ4 compressed
// record batches, the layout produced by the cisTarget tooling.
func WriteFeather(w io.Writer, t *ranking.Table, ft FeatureType) error {
	mem := memory.NewGoAllocator()
	rec, err := buildRecord(mem, t, ft)
	if err != nil {
		return err
	}
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem), ipc.WithLZ4())
	if err != nil {
		return fmt.Errorf("create feather writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close feather writer: %w", err)
	}
	return nil
}

// WriteParquet writes t as a Parquet rankings database. w is left open.
func WriteParquet(w io.Writer, t *ranking.Table, ft FeatureType) error {
	mem := memory.NewGoAllocator()
	rec, err := buildRecord(mem, t, ft)
	if err != nil {
		return err
	}
	defer rec.Release()

	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	// WriteTable closes sinks that implement io.Closer; hide Close so the
	// caller keeps ownership of w.
	sink := struct{ io.Writer }{w}
	if err := pqarrow.WriteTable(tbl, sink, parquetBatchSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// rankDataType picks int16 when every rank fits, like the cisTarget tooling
// does for databases with fewer than 32768 genes or regions.
func rankDataType(t *ranking.Table) arrow.DataType {
	for j := 0; j < t.NumGenes(); j++ {
		for _, r := range t.ColumnAt(j) {
			if r > math.MaxInt16 || r < math.MinInt16 {
				return arrow.PrimitiveTypes.Int32
			}
		}
	}
	return arrow.PrimitiveTypes.Int16
}

func buildRecord(mem memory.Allocator, t *ranking.Table, ft FeatureType) (arrow.Record, error) {
	rankType := rankDataType(t)

	fields := make([]arrow.Field, 0, t.NumGenes()+1)
	cols := make([]arrow.Array, 0, t.NumGenes()+1)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for j, gene := range t.Genes() {
		if gene == ft.ColumnName() {
			return nil, fmt.Errorf("gene %q collides with the feature column name", gene)
		}
		fields = append(fields, arrow.Field{Name: gene, Type: rankType})
		cols = append(cols, buildRankArray(mem, rankType, t.ColumnAt(j)))
	}

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	sb.AppendValues(t.Features(), nil)
	fields = append(fields, arrow.Field{Name: ft.ColumnName(), Type: arrow.BinaryTypes.String})
	cols = append(cols, sb.NewArray())

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(t.NumFeatures())), nil
}

func buildRankArray(mem memory.Allocator, dt arrow.DataType, ranks []int32) arrow.Array {
	if dt.ID() == arrow.INT32 {
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(ranks, nil)
		return b.NewArray()
	}

	b := array.NewInt16Builder(mem)
	defer b.Release()
	b.Reserve(len(ranks))
	for _, r := range ranks {
		b.UnsafeAppend(int16(r))
	}
	return b.NewArray()
}
