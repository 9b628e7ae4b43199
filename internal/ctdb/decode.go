package ctdb

import (
	"context"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/sync/errgroup"
)

func isRankType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return true
	}
	return false
}

func isLabelType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return true
	case arrow.DICTIONARY:
		vt := dt.(*arrow.DictionaryType).ValueType.ID()
		return vt == arrow.STRING || vt == arrow.LARGE_STRING
	}
	return false
}

// decodeRecords concatenates the feature labels and the named rank columns of
// all records. Rank columns are converted concurrently, at most threads at a
// time.
func decodeRecords(ctx context.Context, records []arrow.Record, featureName string, names []string, threads int) ([]string, [][]int32, error) {
	var nrows int
	for _, rec := range records {
		nrows += int(rec.NumRows())
	}

	features := make([]string, 0, nrows)
	for _, rec := range records {
		col, err := recordColumn(rec, featureName)
		if err != nil {
			return nil, nil, err
		}
		features, err = appendLabels(features, col)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", featureName, err)
		}
	}

	columns := make([][]int32, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(threads, 1))
	for j, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := make([]int32, nrows)
			off := 0
			for _, rec := range records {
				col, err := recordColumn(rec, name)
				if err != nil {
					return err
				}
				if err := copyRanks(dst[off:off+col.Len()], col); err != nil {
					return fmt.Errorf("column %q: %w", name, err)
				}
				off += col.Len()
			}
			columns[j] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return features, columns, nil
}

func recordColumn(rec arrow.Record, name string) (arrow.Array, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q missing from record batch", name)
	}
	return rec.Column(idx[0]), nil
}

func appendLabels(dst []string, arr arrow.Array) ([]string, error) {
	switch a := arr.(type) {
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			dst = append(dst, a.Value(i))
		}
	case *array.LargeString:
		for i := 0; i < a.Len(); i++ {
			dst = append(dst, a.Value(i))
		}
	case *array.Dictionary:
		var value func(int) string
		switch d := a.Dictionary().(type) {
		case *array.String:
			value = d.Value
		case *array.LargeString:
			value = d.Value
		default:
			return nil, fmt.Errorf("unsupported label dictionary %s", d.DataType())
		}
		for i := 0; i < a.Len(); i++ {
			dst = append(dst, value(a.GetValueIndex(i)))
		}
	default:
		return nil, fmt.Errorf("unsupported label type %s", arr.DataType())
	}
	return dst, nil
}

func copyRanks(dst []int32, arr arrow.Array) error {
	if arr.NullN() > 0 {
		return ErrNullRank
	}
	switch a := arr.(type) {
	case *array.Int8:
		for i, v := range a.Int8Values() {
			dst[i] = int32(v)
		}
	case *array.Int16:
		for i, v := range a.Int16Values() {
			dst[i] = int32(v)
		}
	case *array.Int32:
		copy(dst, a.Int32Values())
	case *array.Int64:
		for i, v := range a.Int64Values() {
			if v > math.MaxInt32 || v < math.MinInt32 {
				return rankRangeError(v)
			}
			dst[i] = int32(v)
		}
	case *array.Uint8:
		for i, v := range a.Uint8Values() {
			dst[i] = int32(v)
		}
	case *array.Uint16:
		for i, v := range a.Uint16Values() {
			dst[i] = int32(v)
		}
	case *array.Uint32:
		for i, v := range a.Uint32Values() {
			if v > math.MaxInt32 {
				return rankRangeError(int64(v))
			}
			dst[i] = int32(v)
		}
	default:
		return fmt.Errorf("%w: %s", ErrRankType, arr.DataType())
	}
	return nil
}

func rankRangeError(v int64) error {
	return fmt.Errorf("%w: rank %d does not fit int32", ErrRankType, v)
}
