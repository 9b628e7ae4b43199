package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/ctdb"
	"github.com/inodb/rnkdb/internal/duckdb"
	"github.com/inodb/rnkdb/internal/rnkdb"
)

type convertOptions struct {
	outputPath string
	force      bool
}

func newConvertCmd(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <database>",
		Short: "Convert a ranking database to DuckDB, Feather or Parquet",
		Long: `Convert a ranking database between formats. The output format follows the
extension of --output: .duckdb, .feather or .parquet.

A DuckDB output remembers the size and modification time of its source and
is left alone when the source has not changed. Use --force to convert anyway.`,
		Example: `  rnkdb convert hg38.genes_vs_motifs.rankings.feather -o hg38.genes_vs_motifs.rankings.duckdb
  rnkdb convert --force rankings.parquet -o rankings.feather`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.outputPath == "" {
				return usageError{errors.New("--output is required")}
			}
			return a.runConvert(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file (.duckdb, .feather or .parquet)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite the output even if it is up to date")

	return cmd
}

func (a *app) runConvert(w io.Writer, inputPath string, opts convertOptions) error {
	outputPath := opts.outputPath
	ext := filepath.Ext(outputPath)
	switch ext {
	case ".duckdb", ".feather", ".parquet":
	default:
		return usageError{fmt.Errorf("%w: cannot write %q files", rnkdb.ErrUnsupportedFormat, ext)}
	}

	inAbs, _ := filepath.Abs(inputPath)
	outAbs, _ := filepath.Abs(outputPath)
	if inAbs == outAbs {
		return usageError{errors.New("input and output are the same file")}
	}

	src, err := duckdb.StatFile(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", rnkdb.ErrNotFound, err)
	}

	if _, err := os.Stat(outputPath); err == nil {
		switch {
		case opts.force:
			if err := os.Remove(outputPath); err != nil {
				return fmt.Errorf("removing existing file: %w", err)
			}
		case ext == ".duckdb":
			if upToDate(outputPath, src) {
				fmt.Fprintf(w, "%s is up to date\n", outputPath)
				return nil
			}
		default:
			return fmt.Errorf("%s exists, use --force to overwrite", outputPath)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	db, err := rnkdb.Open(inputPath, defaultName(inputPath), rnkdb.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	tbl, err := db.LoadFull()
	if err != nil {
		return fmt.Errorf("loading %s: %w", inputPath, err)
	}
	d := describe(db)
	a.logger.Info("loaded source rankings",
		zap.String("input", inputPath),
		zap.String("format", d.format),
		zap.Int("features", tbl.NumFeatures()),
		zap.Int("genes", tbl.NumGenes()),
		zap.Duration("elapsed", time.Since(start)))

	switch ext {
	case ".duckdb":
		store, err := duckdb.Open(outputPath)
		if err != nil {
			return err
		}
		if err := store.WriteTable(tbl, d.idType, d.featureType, src); err != nil {
			store.Close()
			return fmt.Errorf("writing %s: %w", outputPath, err)
		}
		if err := store.Close(); err != nil {
			return err
		}
	case ".feather":
		err = writeFile(outputPath, func(f io.Writer) error {
			return ctdb.WriteFeather(f, tbl, ctdb.ParseFeatureType(d.featureType))
		})
	case ".parquet":
		err = writeFile(outputPath, func(f io.Writer) error {
			return ctdb.WriteParquet(f, tbl, ctdb.ParseFeatureType(d.featureType))
		})
	}
	if err != nil {
		return err
	}

	var sizeStr string
	if stat, err := os.Stat(outputPath); err == nil {
		sizeStr = fmt.Sprintf("%.2f MB", float64(stat.Size())/(1024*1024))
	} else {
		sizeStr = "unknown"
	}

	fmt.Fprintf(w, "Conversion complete!\n")
	fmt.Fprintf(w, "  Features:    %d\n", tbl.NumFeatures())
	fmt.Fprintf(w, "  Genes:       %d\n", tbl.NumGenes())
	fmt.Fprintf(w, "  Output size: %s\n", sizeStr)
	fmt.Fprintf(w, "  Output file: %s\n", outputPath)
	return nil
}

// upToDate reports whether the DuckDB file at path was converted from src.
func upToDate(path string, src duckdb.FileFingerprint) bool {
	store, err := duckdb.OpenReadOnly(path)
	if err != nil {
		return false
	}
	defer store.Close()
	return store.Valid(src)
}

// writeFile creates path and fills it with write. A partial file is removed
// on failure.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
