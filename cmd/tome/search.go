package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tome/internal"
)

func NewSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a collection by semantic similarity",
		Long:  `Embed the query and return the closest chunks from one collection, or from every collection with --all.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeSearchRunner(a),
	}

	cmd.Flags().StringP("collection", "c", "", "Collection id to search")
	cmd.Flags().IntP("number", "n", 5, "Maximum results")
	cmd.Flags().Bool("all", false, "Search every collection")
	cmd.Flags().Bool("show-distances", false, "Show raw distances next to scores")
	return cmd
}

func makeSearchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		query := args[0]
		collection, _ := cmd.Flags().GetString("collection")
		topK, _ := cmd.Flags().GetInt("number")
		all, _ := cmd.Flags().GetBool("all")
		showDistances, _ := cmd.Flags().GetBool("show-distances")
		asJSON, _ := cmd.Flags().GetBool("json")

		retriever, err := a.newRetriever(cmd)
		if err != nil {
			return err
		}

		if all || collection == "" {
			return runSearchAll(cmd, retriever, query, topK, showDistances, asJSON)
		}
		return runSearchOne(cmd, retriever, collection, query, topK, showDistances, asJSON)
	}
}

func runSearchOne(cmd *cobra.Command, retriever *internal.Retriever, collection, query string, topK int, showDistances, asJSON bool) error {
	resp, err := retriever.Search(cmd.Context(), collection, query, topK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if asJSON {
		return outputJSON(cmd, resp)
	}

	if resp.TotalResults == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}
	renderResults(cmd.OutOrStdout(), resp.Results, showDistances)
	return nil
}

func runSearchAll(cmd *cobra.Command, retriever *internal.Retriever, query string, topK int, showDistances, asJSON bool) error {
	resp, err := retriever.SearchAll(cmd.Context(), query, topK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if asJSON {
		return outputJSON(cmd, resp)
	}

	if resp.TotalResults == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Searched %d collections\n", resp.CollectionsSearched)
	renderResults(cmd.OutOrStdout(), resp.Results, showDistances)
	return nil
}

func renderResults(out io.Writer, results []internal.ScoredResult, showDistances bool) {
	rank := color.New(color.Bold, color.FgCyan)
	score := color.New(color.FgGreen)
	faint := color.New(color.Faint)

	for _, r := range results {
		rank.Fprintf(out, "%d. ", r.Rank)
		fmt.Fprintf(out, "%s  ", r.ChunkID)
		score.Fprintf(out, "score=%.4f", r.Score)
		if showDistances {
			faint.Fprintf(out, "  distance=%.4f", r.Distance)
		}
		faint.Fprintf(out, "  [%s]", r.Collection.ID)
		fmt.Fprintln(out)

		if r.Chapter != "" || r.Section != "" {
			faint.Fprintf(out, "   chapter %s section %s\n", r.Chapter, r.Section)
		}
		fmt.Fprintf(out, "   %s\n", truncate(r.Content, maxRenderedChars))
	}
}

// maxRenderedChars caps the chunk text shown per result. Full content is
// available through --json.
const maxRenderedChars = 240

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
