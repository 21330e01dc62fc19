package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tome/internal"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the library directory",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = internal.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}

	cfg := internal.DefaultConfig()
	explicit, _ := cmd.Flags().GetString("library")
	if explicit != "" {
		cfg.Library = explicit
	}

	if err := internal.SaveConfig(path, cfg); err != nil {
		return err
	}

	root := cfg.LibraryRoot(explicit)
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create library: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Library at %s\n", root)
	return nil
}
