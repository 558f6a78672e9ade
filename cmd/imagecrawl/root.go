package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for imagecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagecrawl",
		Short: "Build a deduplicated, labeled image dataset from web image search",
		Long: `imagecrawl queries an image search API for a set of terms grouped by
classification, downloads every result and stores it in a per-classification
bucket. Images whose content is already stored are skipped, so a crawl can be
re-run at any time to pick up where it left off.

Search API credentials are read from GOOGLE_API_CX and GOOGLE_API_KEY,
optionally loaded from a .env file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
