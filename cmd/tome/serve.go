package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tome/internal"
)

func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval engine over HTTP",
		Long:  `Expose the library as a JSON API: GET /collections, POST /search, POST /answer.`,
		RunE:  makeServeRunner(a),
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Bool("watch", false, "Reload collections when the library changes on disk")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for library change events")
	return cmd
}

func makeServeRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		watch, _ := cmd.Flags().GetBool("watch")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		_, root, err := a.resolve(cmd)
		if err != nil {
			return err
		}

		retriever, err := a.newRetriever(cmd)
		if err != nil {
			return err
		}
		synth, err := a.newSynthesizer(cmd)
		if err != nil {
			return err
		}

		server := internal.NewServer(internal.OpenLibrary(root), retriever, synth)
		server.Log = cmd.ErrOrStderr()

		if watch {
			watcher, err := internal.WatchLibrary(root, debounce, func() {
				retriever.InvalidateCache()
				fmt.Fprintln(cmd.ErrOrStderr(), "library changed, cache invalidated")
			})
			if err != nil {
				return fmt.Errorf("watch library: %w", err)
			}
			defer watcher.Close()
			go func() { _ = watcher.Run(cmd.Context()) }()
		}

		httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
		go func() {
			<-cmd.Context().Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving library %s on %s\n", root, addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
