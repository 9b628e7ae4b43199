package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/rnkdb"
)

func newInfoCmd(a *app) *cobra.Command {
	var (
		name   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "info <database>",
		Short: "Show a summary of a ranking database",
		Example: `  rnkdb info hg38_10kbp_up_10kbp_down_full_tx_v10_clust.genes_vs_motifs.rankings.feather
  rnkdb info rankings.duckdb`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInfo(cmd.OutOrStdout(), args[0], name, asJSON)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Database name (default: file name without extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

type infoReport struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Format      string `json:"format"`
	IDType      string `json:"id_type"`
	FeatureType string `json:"feature_type"`
	Genes       int    `json:"genes"`
	Features    int    `json:"features"`
}

func (a *app) runInfo(w io.Writer, path, name string, asJSON bool) error {
	if name == "" {
		name = defaultName(path)
	}
	db, err := rnkdb.Open(path, name, rnkdb.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer db.Close()

	// An empty signature loads the feature labels and no rank columns.
	features, err := db.Load(genesig.New("", nil))
	if err != nil {
		return err
	}

	d := describe(db)
	r := infoReport{
		Name:        db.Name(),
		File:        path,
		Format:      d.format,
		IDType:      d.idType,
		FeatureType: d.featureType,
		Genes:       db.TotalGenes(),
		Features:    features.NumFeatures(),
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "Name:         %s\n", r.Name)
	fmt.Fprintf(w, "File:         %s\n", r.File)
	fmt.Fprintf(w, "Format:       %s\n", r.Format)
	fmt.Fprintf(w, "ID type:      %s\n", r.IDType)
	fmt.Fprintf(w, "Feature type: %s\n", r.FeatureType)
	fmt.Fprintf(w, "Genes:        %d\n", r.Genes)
	fmt.Fprintf(w, "Features:     %d\n", r.Features)
	return nil
}

type dbInfo struct {
	format      string
	idType      string
	featureType string
}

func describe(db rnkdb.Database) dbInfo {
	switch d := db.(type) {
	case *rnkdb.MemoryDecorator:
		return describe(d.Unwrap())
	case *rnkdb.FileDatabase:
		return dbInfo{d.Format(), d.IDType().String(), d.FeatureType().String()}
	case *rnkdb.DuckDBDatabase:
		return dbInfo{"duckdb", d.IDType(), d.FeatureType()}
	}
	return dbInfo{"unknown", "-", "-"}
}

// defaultName strips the directory and the last extension.
func defaultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
