package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/output"
	"github.com/inodb/rnkdb/internal/ranking"
	"github.com/inodb/rnkdb/internal/rnkdb"
)

type queryOptions struct {
	name       string
	memory     bool
	format     string
	outputFile string
	all        bool
	workers    int
}

func newQueryCmd(a *app) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <database> <signature>",
		Short: "Extract the ranks of a gene signature",
		Long: `Extract the ranks of the signature genes present in a ranking database.

The signature is a file with one gene per line or a GMT file (.gmt), in which
case its first gene set is used, or every gene set with --all. Gzipped files
are accepted. Genes absent from the database are skipped.

With --all the output has one signature, feature, gene, rank row per rank and
--format is ignored.`,
		Example: `  rnkdb query rankings.feather signature.txt
  rnkdb query --format long -o ranks.tsv rankings.parquet hallmarks.gmt
  rnkdb query --memory rankings.duckdb signature.txt.gz
  rnkdb query --all --memory rankings.feather hallmarks.gmt.gz`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "Database name (default: file name without extension)")
	f.BoolVar(&opts.memory, "memory", false, "Load the whole database into memory first")
	f.StringVarP(&opts.format, "format", "f", output.FormatWide, "Output format: wide, long")
	f.StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&opts.all, "all", false, "Load every gene set of a GMT file")
	f.IntVar(&opts.workers, "workers", 0, "Signatures loaded concurrently with --all (default: number of CPUs)")

	return cmd
}

func (a *app) runQuery(stdout io.Writer, dbPath, sigPath string, opts queryOptions) error {
	// Validate the format before any file is opened or created.
	if _, ok := output.NewWriter(io.Discard, opts.format); !ok {
		return usageError{fmt.Errorf("unknown output format %q", opts.format)}
	}

	name := opts.name
	if name == "" {
		name = defaultName(dbPath)
	}
	dbOpts := []rnkdb.Option{rnkdb.WithLogger(a.logger)}
	if opts.memory {
		dbOpts = append(dbOpts, rnkdb.WithMemory())
	}

	out := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var err error
	if opts.all {
		err = a.queryAll(out, dbPath, name, sigPath, opts.workers, dbOpts)
	} else {
		err = a.queryOne(out, dbPath, name, sigPath, opts.format, dbOpts)
	}
	if err != nil {
		return err
	}

	if f, ok := out.(*os.File); ok && opts.outputFile != "" {
		return f.Close()
	}
	return nil
}

func (a *app) queryOne(out io.Writer, dbPath, name, sigPath, format string, dbOpts []rnkdb.Option) error {
	sig, err := genesig.Load(sigPath)
	if err != nil {
		return err
	}

	db, err := rnkdb.Open(dbPath, name, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	tbl, err := db.Load(sig)
	if err != nil {
		return fmt.Errorf("loading %s from %s: %w", sig.Name, db.Name(), err)
	}
	a.logLoaded(sig, tbl)

	writer, _ := output.NewWriter(out, format)
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := writer.Write(tbl); err != nil {
		return fmt.Errorf("writing rankings: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

func (a *app) queryAll(out io.Writer, dbPath, name, sigPath string, workers int, dbOpts []rnkdb.Option) error {
	sigs, err := genesig.LoadGMT(sigPath)
	if err != nil {
		return err
	}

	db, err := rnkdb.Open(dbPath, name, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	writer := output.NewSignatureWriter(out)
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	results := rnkdb.ParallelLoad(db, rnkdb.Items(sigs), workers)
	err = rnkdb.OrderedCollect(results, func(r rnkdb.WorkResult) error {
		sig := sigs[r.Seq]
		if r.Err != nil {
			return fmt.Errorf("loading %s from %s: %w", sig.Name, db.Name(), r.Err)
		}
		a.logLoaded(sig, r.Table)
		if err := writer.Write(sig.Name, r.Table); err != nil {
			return fmt.Errorf("writing rankings: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	a.logger.Info("loaded gene sets", zap.String("file", sigPath), zap.Int("signatures", len(sigs)))
	return nil
}

func (a *app) logLoaded(sig *genesig.Signature, tbl *ranking.Table) {
	fields := []zap.Field{
		zap.String("signature", sig.Name),
		zap.Int("signature_genes", sig.Len()),
		zap.Int("found", tbl.NumGenes()),
		zap.Int("features", tbl.NumFeatures()),
	}
	if tbl.NumGenes() == 0 {
		a.logger.Warn("no signature gene found in database", fields...)
		return
	}
	a.logger.Info("loaded signature rankings", fields...)
}
