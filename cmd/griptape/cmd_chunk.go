package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/griptape/internal/chunker"
	"github.com/aristath/griptape/internal/tokenizer"
)

func newChunkCmd(a *app) *cobra.Command {
	var maxTokens, overlap int

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a text file into token-bounded chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			tc := a.cfg.Tokenizer
			tok, err := tokenizer.NewSimpleTokenizer(tc.CharactersPerToken, tc.MaxInputTokens, tc.MaxOutputTokens)
			if err != nil {
				return err
			}
			c, err := chunker.NewFixedTokenChunker(tok, maxTokens, overlap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, chunk := range c.Chunk(string(data)) {
				fmt.Fprintf(out, "--- chunk %d (%d tokens) ---\n%s\n", i+1, tok.CountTokens(chunk.Value), chunk.Value)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Tokens per chunk (default: tokenizer input budget)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Tokens shared between consecutive chunks")
	return cmd
}
