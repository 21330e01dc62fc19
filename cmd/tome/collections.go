package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewCollectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "collections",
		Aliases: []string{"ls"},
		Short:   "List collections in the library",
		RunE:    makeCollectionsRunner(a),
	}
}

func makeCollectionsRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		registry, err := a.newRegistry(cmd)
		if err != nil {
			return err
		}

		summaries, err := registry.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list collections: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		out := cmd.OutOrStdout()
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No collections found. Build one with 'tome index'.")
			return nil
		}

		bold := color.New(color.Bold)
		faint := color.New(color.Faint)
		for _, s := range summaries {
			bold.Fprint(out, s.Name)
			faint.Fprintf(out, "  (%s)\n", s.ID)
			fmt.Fprintf(out, "  %d chunks, metric %s, model %s, created %s\n",
				s.TotalChunks, s.DistanceMetric, s.ModelName, s.CreatedAt.Format("2006-01-02"))
			if s.Description != "" {
				fmt.Fprintf(out, "  %s\n", s.Description)
			}
		}
		return nil
	}
}
