package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tome/internal"
)

func NewAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from retrieved textbook excerpts",
		Long:  `Retrieve the closest chunks, then run the answer-provider chain to synthesize a grounded answer.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeAskRunner(a),
	}

	cmd.Flags().StringP("collection", "c", "", "Collection id to retrieve from")
	cmd.Flags().IntP("number", "n", 5, "Number of excerpts to retrieve")
	cmd.Flags().Bool("all", false, "Retrieve from every collection")
	cmd.Flags().Bool("stream", false, "Stream the answer as it is generated")
	return cmd
}

func makeAskRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		query := args[0]
		collection, _ := cmd.Flags().GetString("collection")
		topK, _ := cmd.Flags().GetInt("number")
		all, _ := cmd.Flags().GetBool("all")
		stream, _ := cmd.Flags().GetBool("stream")
		asJSON, _ := cmd.Flags().GetBool("json")

		retriever, err := a.newRetriever(cmd)
		if err != nil {
			return err
		}

		excerpts, err := retrieveExcerpts(cmd, retriever, collection, query, topK, all)
		if err != nil {
			return err
		}

		if stream {
			return runAskStream(cmd, a, query, excerpts)
		}

		synth, err := a.newSynthesizer(cmd)
		if err != nil {
			return err
		}

		resp, err := synth.Answer(cmd.Context(), query, excerpts)
		if err != nil {
			return err
		}

		if asJSON {
			return outputJSON(cmd, resp)
		}

		fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
		color.New(color.Faint).Fprintf(cmd.OutOrStdout(), "\nvia %s (%s), %d excerpts\n",
			resp.ProviderUsed, resp.ModelUsed, resp.ChunksProcessed)
		return nil
	}
}

func retrieveExcerpts(cmd *cobra.Command, retriever *internal.Retriever, collection, query string, topK int, all bool) ([]string, error) {
	var results []internal.ScoredResult

	if all || collection == "" {
		resp, err := retriever.SearchAll(cmd.Context(), query, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		results = resp.Results
	} else {
		resp, err := retriever.Search(cmd.Context(), collection, query, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		results = resp.Results
	}

	excerpts := make([]string, 0, len(results))
	for _, r := range results {
		excerpts = append(excerpts, r.Content)
	}
	return excerpts, nil
}

// runAskStream talks to the first configured provider directly; the chain
// fallback of the synthesizer does not apply to streaming.
func runAskStream(cmd *cobra.Command, a *app, query string, excerpts []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Providers) == 0 {
		return internal.ErrNoProviders
	}
	if len(excerpts) == 0 {
		return internal.ErrNoExcerpts
	}

	streamer, err := a.streamerFor(cmd.Context(), cfg.Providers[0])
	if err != nil {
		return fmt.Errorf("provider %s: %w", cfg.Providers[0].Name, err)
	}

	prompt := internal.BuildAnswerPrompt(query, excerpts)
	deltas, err := streamer.Stream(cmd.Context(), prompt)
	if err != nil {
		return fmt.Errorf("stream answer: %w", err)
	}

	for delta := range deltas {
		fmt.Fprint(cmd.OutOrStdout(), delta)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
