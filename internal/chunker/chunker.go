// Package chunker splits text into bounded fragments.
package chunker

import (
	"errors"
	"fmt"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/tokenizer"
)

// ErrInvalidConfig is returned for impossible size/overlap combinations.
var ErrInvalidConfig = errors.New("chunker: invalid configuration")

// Chunker splits text into fragments.
type Chunker interface {
	Chunk(text string) []*artifact.TextArtifact
}

// FixedCharacterChunker cuts text into windows of MaxCharacters runes that
// overlap by Overlap runes.
type FixedCharacterChunker struct {
	maxCharacters int
	overlap       int
}

// NewFixedCharacterChunker validates the window settings.
func NewFixedCharacterChunker(maxCharacters, overlap int) (*FixedCharacterChunker, error) {
	if maxCharacters <= 0 {
		return nil, fmt.Errorf("%w: max characters must be greater than 0", ErrInvalidConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be greater than or equal to 0", ErrInvalidConfig)
	}
	if overlap >= maxCharacters {
		return nil, fmt.Errorf("%w: overlap must be less than max characters", ErrInvalidConfig)
	}
	return &FixedCharacterChunker{maxCharacters: maxCharacters, overlap: overlap}, nil
}

func (c *FixedCharacterChunker) Chunk(text string) []*artifact.TextArtifact {
	runes := []rune(text)
	stride := c.maxCharacters - c.overlap

	var chunks []*artifact.TextArtifact
	for start := 0; start < len(runes)-c.overlap; start += stride {
		end := min(start+c.maxCharacters, len(runes))
		chunks = append(chunks, artifact.NewText(string(runes[start:end])))
	}
	return chunks
}

// FixedTokenChunker grows each chunk one character at a time until it holds
// MaxTokens tokens, then starts the next chunk far enough back to overlap the
// previous one by Overlap tokens.
type FixedTokenChunker struct {
	tokenizer tokenizer.Tokenizer
	maxTokens int
	overlap   int
}

// NewFixedTokenChunker creates a FixedTokenChunker. A zero maxTokens uses the
// tokenizer's input budget.
func NewFixedTokenChunker(tok tokenizer.Tokenizer, maxTokens, overlap int) (*FixedTokenChunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidConfig)
	}
	if maxTokens == 0 {
		maxTokens = tok.MaxInputTokens()
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be greater than 0", ErrInvalidConfig)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, maxTokens)
	}
	return &FixedTokenChunker{tokenizer: tok, maxTokens: maxTokens, overlap: overlap}, nil
}

func (c *FixedTokenChunker) Chunk(text string) []*artifact.TextArtifact {
	parts := c.split([]rune(text))
	chunks := make([]*artifact.TextArtifact, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, artifact.NewText(p))
	}
	return chunks
}

func (c *FixedTokenChunker) split(runes []rune) []string {
	var chunks []string
	start := 0

	for end := 1; end <= len(runes); end++ {
		chunk := string(runes[start:end])

		if end == len(runes) {
			chunks = append(chunks, chunk)
			break
		}
		if c.tokenizer.CountTokens(chunk) != c.maxTokens {
			continue
		}

		chunks = append(chunks, chunk)
		next := end
		for overlap := 0; overlap < c.overlap && next > start; {
			next--
			overlap = c.tokenizer.CountTokens(string(runes[next:end]))
		}
		start = next
	}

	return chunks
}
