package driver

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/aristath/griptape/internal/artifact"
)

// EchoPromptDriver answers every prompt with the last user message. It needs
// no network and is the default driver for dry runs.
type EchoPromptDriver struct{}

// NewEchoPromptDriver creates an EchoPromptDriver.
func NewEchoPromptDriver() *EchoPromptDriver {
	return &EchoPromptDriver{}
}

func (d *EchoPromptDriver) Model() string { return "echo" }

func (d *EchoPromptDriver) Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return artifact.NewText(stack.LastUser()), nil
}

// Stream emits the answer word by word.
func (d *EchoPromptDriver) Stream(ctx context.Context, stack PromptStack, onChunk func(string)) (*artifact.TextArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer := stack.LastUser()
	for _, word := range strings.SplitAfter(answer, " ") {
		if word != "" {
			onChunk(word)
		}
	}
	return artifact.NewText(answer), nil
}

const defaultHashDimensions = 64

// HashEmbeddingDriver embeds text by hashing lower-cased words into a fixed
// number of buckets and normalizing the counts. Texts sharing words end up
// close to each other, which is enough for offline retrieval.
type HashEmbeddingDriver struct {
	dimensions int
}

// NewHashEmbeddingDriver creates a HashEmbeddingDriver; dims <= 0 uses 64.
func NewHashEmbeddingDriver(dims int) *HashEmbeddingDriver {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbeddingDriver{dimensions: dims}
}

func (d *HashEmbeddingDriver) Model() string { return "hash" }

func (d *HashEmbeddingDriver) EmbedChunk(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, d.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(d.dimensions)]++
	}
	return normalize(vec), nil
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
