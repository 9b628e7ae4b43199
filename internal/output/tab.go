// Package output provides ranking table output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/rnkdb/internal/ranking"
)

// Format names accepted by NewWriter.
const (
	FormatWide = "wide"
	FormatLong = "long"
)

// Writer writes a ranking table.
type Writer interface {
	WriteHeader() error
	Write(t *ranking.Table) error
	Flush() error
}

// NewWriter returns the writer for the named format.
// The wide format is used when format is empty.
func NewWriter(w io.Writer, format string) (Writer, bool) {
	switch format {
	case "", FormatWide:
		return NewTableWriter(w), true
	case FormatLong:
		return NewLongWriter(w), true
	}
	return nil, false
}

// TableWriter writes rankings as a tab-delimited matrix with one row per
// feature and one column per gene.
type TableWriter struct {
	w           *bufio.Writer
	wroteHeader bool
}

// NewTableWriter creates a new wide tab-delimited writer.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: bufio.NewWriter(w)}
}

// WriteHeader is a no-op: the header depends on the genes of the table and
// is written by the first call to Write.
func (tw *TableWriter) WriteHeader() error { return nil }

// Write writes the header (once) followed by every feature row.
func (tw *TableWriter) Write(t *ranking.Table) error {
	if !tw.wroteHeader {
		tw.w.WriteString("feature")
		for _, g := range t.Genes() {
			tw.w.WriteByte('\t')
			tw.w.WriteString(g)
		}
		if err := tw.w.WriteByte('\n'); err != nil {
			return err
		}
		tw.wroteHeader = true
	}

	var buf []byte
	for i, feature := range t.Features() {
		buf = append(buf[:0], feature...)
		for _, r := range t.Row(i) {
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(r), 10)
		}
		buf = append(buf, '\n')
		if _, err := tw.w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TableWriter) Flush() error {
	return tw.w.Flush()
}

// LongWriter writes rankings as feature, gene, rank triples.
type LongWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewLongWriter creates a new long tab-delimited writer.
func NewLongWriter(w io.Writer) *LongWriter {
	return &LongWriter{
		w:       bufio.NewWriter(w),
		columns: []string{"feature", "gene", "rank"},
	}
}

// WriteHeader writes the header line.
func (lw *LongWriter) WriteHeader() error {
	_, err := lw.w.WriteString(strings.Join(lw.columns, "\t") + "\n")
	return err
}

// Write writes one line per feature and gene, features in table order.
func (lw *LongWriter) Write(t *ranking.Table) error {
	return writeLong(lw.w, nil, t)
}

// Flush flushes any buffered data to the underlying writer.
func (lw *LongWriter) Flush() error {
	return lw.w.Flush()
}

// SignatureWriter writes the rankings of several signatures in long format
// with a leading signature column.
type SignatureWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewSignatureWriter creates a new signature-keyed long writer.
func NewSignatureWriter(w io.Writer) *SignatureWriter {
	return &SignatureWriter{
		w:       bufio.NewWriter(w),
		columns: []string{"signature", "feature", "gene", "rank"},
	}
}

// WriteHeader writes the header line.
func (sw *SignatureWriter) WriteHeader() error {
	_, err := sw.w.WriteString(strings.Join(sw.columns, "\t") + "\n")
	return err
}

// Write writes the rankings loaded for one signature.
func (sw *SignatureWriter) Write(signature string, t *ranking.Table) error {
	return writeLong(sw.w, append([]byte(signature), '\t'), t)
}

// Flush flushes any buffered data to the underlying writer.
func (sw *SignatureWriter) Flush() error {
	return sw.w.Flush()
}

func writeLong(w *bufio.Writer, prefix []byte, t *ranking.Table) error {
	genes := t.Genes()
	var buf []byte
	for i, feature := range t.Features() {
		for j, r := range t.Row(i) {
			buf = append(buf[:0], prefix...)
			buf = append(buf, feature...)
			buf = append(buf, '\t')
			buf = append(buf, genes[j]...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(r), 10)
			buf = append(buf, '\n')
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}
