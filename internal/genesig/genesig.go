// Package genesig provides gene signatures: named collections of genes that
// are looked up in ranking databases.
package genesig

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// GeneSignature is the read-only view of a signature consumed by ranking
// databases.
type GeneSignature interface {
	Genes() []string
}

// Signature is a named list of genes. Duplicates are kept as given.
type Signature struct {
	Name        string
	Description string
	genes       []string
}

// New creates a signature. The gene slice is copied.
func New(name string, genes []string) *Signature {
	return &Signature{Name: name, genes: append([]string(nil), genes...)}
}

// Genes returns a copy of the signature genes.
func (s *Signature) Genes() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.genes...)
}

// Len returns the number of genes, duplicates included.
func (s *Signature) Len() int { return len(s.genes) }

// Load reads a signature from a file. GMT files (.gmt) yield their first
// signature; any other file is read as one gene per line, named after the
// file. Gzip and zstd compression is detected from the magic bytes.
func Load(path string) (*Signature, error) {
	if isGMT(path) {
		sigs, err := LoadGMT(path)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			return nil, fmt.Errorf("no signatures in %s", path)
		}
		return sigs[0], nil
	}

	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	genes, err := parseGeneList(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Signature{Name: stem(path), genes: genes}, nil
}

// LoadGMT reads every signature of a GMT file:
//
//	name<TAB>description<TAB>gene1<TAB>gene2...
func LoadGMT(path string) ([]*Signature, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	sigs, err := parseGMT(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return sigs, nil
}

func parseGeneList(r io.Reader) ([]string, error) {
	var genes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Tolerate "GENE<TAB>weight" lines.
		if gene, _, ok := strings.Cut(line, "\t"); ok {
			line = strings.TrimSpace(gene)
		}
		genes = append(genes, line)
	}
	return genes, scanner.Err()
}

func parseGMT(r io.Reader) ([]*Signature, error) {
	var sigs []*Signature
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected name and description", lineNo)
		}
		sig := &Signature{Name: fields[0], Description: fields[1]}
		for _, g := range fields[2:] {
			if g = strings.TrimSpace(g); g != "" {
				sig.genes = append(sig.genes, g)
			}
		}
		sigs = append(sigs, sig)
	}
	return sigs, scanner.Err()
}

// open opens a plain, gzip or zstd compressed file.
func open(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open signature file: %w", err)
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, func() { gz.Close(); f.Close() }, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return zr, func() { zr.Close(); f.Close() }, nil
	}
	return br, func() { f.Close() }, nil
}

func isGMT(path string) bool {
	lower := strings.ToLower(path)
	lower = strings.TrimSuffix(strings.TrimSuffix(lower, ".gz"), ".zst")
	return strings.HasSuffix(lower, ".gmt")
}

func stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".zst")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
