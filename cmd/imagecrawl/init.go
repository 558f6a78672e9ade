package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawl/internal/config"
)

//go:embed templates/imagecrawl.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new imagecrawl configuration file",
		Long: `Initialize creates a new .imagecrawl configuration file in the current directory.

The generated file includes:
- Default crawl settings (concurrency, timeout, page ceiling)
- An example classifications mapping
- Commented entries for every other option

Examples:
  # Create .imagecrawl in current directory
  imagecrawl init

  # Create config file at a specific path
  imagecrawl init -o myconfig.yaml

  # Force overwrite existing file
  imagecrawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/imagecrawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set:")
	fmt.Fprintln(out, "  - Classifications and their search terms")
	fmt.Fprintln(out, "  - Storage directories")
	fmt.Fprintln(out, "  - Concurrency and request pacing")
	fmt.Fprintf(out, "\nCredentials go in the environment or a .env file (%s, %s).\n",
		config.EnvEngineID, config.EnvAPIKey)

	return nil
}
