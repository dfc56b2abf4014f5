package driver

import (
	"context"
	"fmt"

	"github.com/aristath/griptape/internal/chunker"
	"github.com/aristath/griptape/internal/tokenizer"
)

// EmbedString embeds text with d. Text over the tokenizer's input budget is
// split into token chunks whose vectors are averaged, weighted by chunk
// length, and normalized.
func EmbedString(ctx context.Context, d EmbeddingDriver, tok tokenizer.Tokenizer, text string) ([]float64, error) {
	if tok == nil || tok.CountTokens(text) <= tok.MaxInputTokens() {
		return d.EmbedChunk(ctx, text)
	}

	ch, err := chunker.NewFixedTokenChunker(tok, 0, 0)
	if err != nil {
		return nil, err
	}

	var (
		sum    []float64
		weight float64
	)
	for i, chunk := range ch.Chunk(text) {
		vec, err := d.EmbedChunk(ctx, chunk.Value)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			return nil, fmt.Errorf("embedding chunk %d: dimension %d, want %d", i, len(vec), len(sum))
		}
		w := float64(len([]rune(chunk.Value)))
		for j, v := range vec {
			sum[j] += v * w
		}
		weight += w
	}
	if weight == 0 {
		return d.EmbedChunk(ctx, text)
	}

	for j := range sum {
		sum[j] /= weight
	}
	return normalize(sum), nil
}
