package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/model"
	"github.com/nao1215/imagecrawl/internal/storage"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored image counts per classification",
		Long: `Stats reports, for every classification, the number of images registered in
the hash index and the number of image files present in its bucket.

Examples:
  # Show counts for the default dataset
  imagecrawl stats

  # Show counts for a dataset in another location as JSON
  imagecrawl stats --images-dir ./data/images --index-dir ./data/index --json`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	addConfigFlag(cmd)
	addStorageFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// classStats is one row of the stats output.
type classStats struct {
	Classification model.Classification `json:"classification"`
	Indexed        int64                `json:"indexed"`
	Files          int64                `json:"files"`
	Bytes          int64                `json:"bytes"`
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	idx, err := openExistingIndex(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := collectStats(cmd.Context(), idx, storage.NewImageStore(cfg.ImagesDir))
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return writeStats(cmd.OutOrStdout(), rows)
}

// openExistingIndex opens an index without creating it and without
// asserting a digest algorithm.
func openExistingIndex(dir string) (*index.Index, error) {
	opts := index.DefaultOptions()
	opts.CreateIfNotExists = false
	opts.Digest = ""
	idx, err := index.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return idx, nil
}

func collectStats(ctx context.Context, idx *index.Index, store *storage.ImageStore) ([]classStats, error) {
	counts, err := idx.CountByClassification(ctx)
	if err != nil {
		return nil, err
	}

	byClass := make(map[model.Classification]*classStats, len(counts))
	get := func(c model.Classification) *classStats {
		s, ok := byClass[c]
		if !ok {
			s = &classStats{Classification: c}
			byClass[c] = s
		}
		return s
	}

	for c, n := range counts {
		get(c).Indexed = n
	}

	err = store.Walk(func(e storage.Entry) error {
		s := get(e.Classification)
		s.Files++
		s.Bytes += e.Size
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]classStats, 0, len(byClass))
	for _, s := range byClass {
		rows = append(rows, *s)
	}
	slices.SortFunc(rows, func(a, b classStats) int {
		return cmp.Compare(a.Classification, b.Classification)
	})
	return rows, nil
}

func writeStats(w io.Writer, rows []classStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASSIFICATION\tINDEXED\tFILES\tBYTES")

	var total classStats
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.Classification, r.Indexed, r.Files, r.Bytes)
		total.Indexed += r.Indexed
		total.Files += r.Files
		total.Bytes += r.Bytes
	}
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", "TOTAL", total.Indexed, total.Files, total.Bytes)
	return tw.Flush()
}
