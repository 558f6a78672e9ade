package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawl/internal/config"
)

// addConfigFlag registers --config on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .imagecrawl in current or home directory)")
}

// addStorageFlags registers the directory flags shared by every command that
// reads the dataset.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("images-dir", "",
		"Image bucket root (default: XDG data dir/images)")
	cmd.Flags().String("index-dir", "",
		"Hash index directory (default: XDG data dir/index)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadBaseConfig starts from the defaults, applies the configuration file
// and then the flags shared by all dataset commands. Only flags the user
// actually set override file values.
func loadBaseConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg)
		cfg.ConfigFilePath = configPath
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := stringFlag(cmd, "images-dir", &cfg.ImagesDir); err != nil {
		return nil, err
	}
	if err := stringFlag(cmd, "index-dir", &cfg.IndexDir); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// changed reports whether the named flag exists on cmd and was set.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	if !changed(cmd, name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func intFlag(cmd *cobra.Command, name string, dst *int) error {
	if !changed(cmd, name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
