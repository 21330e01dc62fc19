package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"tome/internal"
)

func NewIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <chunks.json>",
		Short: "Build a collection from a chunks file",
		Long:  `Validate a JSON array of text chunks, embed them, and persist a searchable collection under the library root.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeIndexRunner(a),
	}

	cmd.Flags().String("id", "", "Collection id (defaults to the chunks file basename)")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("description", "", "Collection description")
	cmd.Flags().String("metric", "l2", "Distance metric (l2|ip)")
	cmd.Flags().String("model", "", "Embedding model (overrides the configured one)")
	cmd.Flags().Int("batch-size", 0, "Embedding batch size")
	cmd.Flags().Int("concurrency", 0, "Concurrent embedding batches")
	return cmd
}

func makeIndexRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		chunksPath := args[0]
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		metricFlag, _ := cmd.Flags().GetString("metric")
		model, _ := cmd.Flags().GetString("model")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		asJSON, _ := cmd.Flags().GetBool("json")

		metric, err := internal.ParseMetric(metricFlag)
		if err != nil {
			return err
		}
		if id == "" {
			base := filepath.Base(chunksPath)
			id = strings.TrimSuffix(base, filepath.Ext(base))
		}

		raw, err := internal.LoadChunks(chunksPath)
		if err != nil {
			return err
		}

		cfg, root, err := a.resolve(cmd)
		if err != nil {
			return err
		}
		embedCfg := cfg.Embeddings
		if model != "" {
			embedCfg.Model = model
		}
		if batchSize > 0 {
			embedCfg.BatchSize = batchSize
		}
		embedder, err := a.embedderFor(embedCfg)
		if err != nil {
			return err
		}

		result, err := internal.BuildCollection(cmd.Context(), osfs.New(root), raw, embedder, internal.BuildOptions{
			ID:          id,
			Name:        name,
			Description: description,
			Metric:      metric,
			BatchSize:   embedCfg.BatchSize,
			Concurrency: concurrency,
		})
		if err != nil {
			return fmt.Errorf("build collection: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %q (dim %d, metric %s, model %s)\n",
			result.Indexed, result.ID, result.Dimension, result.Metric, result.Model)
		for _, skipped := range result.Report.Skipped {
			if skipped.ChunkID != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", skipped.ChunkID, skipped.Reason)
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped record %d: %s\n", skipped.Index, skipped.Reason)
		}
		return nil
	}
}
