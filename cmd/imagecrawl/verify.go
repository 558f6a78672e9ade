package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/model"
	"github.com/nao1215/imagecrawl/internal/storage"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile image buckets with the hash index",
		Long: `Verify compares the image buckets with the hash index and reports:

- orphaned files: image files whose identifier is not registered. These are
  left behind when a crawl stops between writing a file and registering it.
- missing files: index entries whose image file no longer exists.

Orphaned files are harmless and can be removed with --remove-orphans. Index
entries are never modified.

Examples:
  # Report problems
  imagecrawl verify

  # Delete orphaned files
  imagecrawl verify --remove-orphans`,
		Args: cobra.NoArgs,
		RunE: runVerifyCmd,
	}

	addConfigFlag(cmd)
	addStorageFlags(cmd)
	cmd.Flags().Bool("remove-orphans", false, "Delete orphaned image files")

	return cmd
}

// verifyResult collects the findings of one verify run.
type verifyResult struct {
	Checked  int
	Orphaned []storage.Entry
	Removed  int
	Missing  []model.StoredImage
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}

	removeOrphans, err := cmd.Flags().GetBool("remove-orphans")
	if err != nil {
		return err
	}

	idx, err := openExistingIndex(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer idx.Close()

	res, err := verify(cmd.Context(), idx, storage.NewImageStore(cfg.ImagesDir), removeOrphans)
	if err != nil {
		return err
	}
	writeVerify(cmd.OutOrStdout(), res, removeOrphans)

	if len(res.Missing) > 0 {
		return fmt.Errorf("%d indexed images have no file", len(res.Missing))
	}
	return nil
}

func verify(ctx context.Context, idx *index.Index, store *storage.ImageStore, removeOrphans bool) (*verifyResult, error) {
	res := &verifyResult{}

	images, err := idx.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		ok, err := store.Exists(img.Classification, img.Identifier)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", store.Path(img.Classification, img.Identifier), err)
		}
		if !ok {
			res.Missing = append(res.Missing, img)
		}
	}

	err = store.Walk(func(e storage.Entry) error {
		res.Checked++
		registered, err := idx.ContainsIdentifier(ctx, e.Identifier)
		if err != nil {
			return err
		}
		if registered {
			return nil
		}
		res.Orphaned = append(res.Orphaned, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removeOrphans {
		for _, e := range res.Orphaned {
			if err := store.Remove(e.Classification, e.Identifier); err != nil {
				return res, err
			}
			res.Removed++
		}
	}
	return res, nil
}

func writeVerify(w io.Writer, res *verifyResult, removeOrphans bool) {
	fmt.Fprintf(w, "Checked %d files\n", res.Checked)

	for _, e := range res.Orphaned {
		fmt.Fprintf(w, "orphan   %s (%d bytes)\n", e.Path, e.Size)
	}
	for _, img := range res.Missing {
		fmt.Fprintf(w, "missing  %s/%s digest=%s source=%s\n",
			img.Classification, img.Identifier, img.Digest.Hex(), img.SourceURL)
	}

	fmt.Fprintf(w, "\nOrphaned files: %d\n", len(res.Orphaned))
	if removeOrphans {
		fmt.Fprintf(w, "Removed:        %d\n", res.Removed)
	}
	fmt.Fprintf(w, "Missing files:  %d\n", len(res.Missing))
}
