package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/griptape/internal/orchestrator"
)

func newIngestCmd(a *app) *cobra.Command {
	var namespace, dbPath string

	cmd := &cobra.Command{
		Use:   "ingest <file.json...>",
		Short: "Load JSON files into the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" {
				a.cfg.VectorStore.Path = dbPath
			}

			runner := orchestrator.NewRunner(orchestrator.RunnerConfig{Config: a.cfg})
			defer runner.Close()

			ids, err := runner.Ingest(cmd.Context(), namespace, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d entries from %d files in %s\n", len(ids), len(args), a.cfg.VectorStore.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Vector store namespace")
	cmd.Flags().StringVar(&dbPath, "db", "", "Vector store path (default from config)")
	return cmd
}
