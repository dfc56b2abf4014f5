package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/driver"
)

// ImageGenerationEngine produces an image from prompts.
type ImageGenerationEngine interface {
	Run(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error)
}

var _ ImageGenerationEngine = (*PromptImageGenerationEngine)(nil)

// PromptImageGenerationEngine generates images from text prompts. Rules are
// appended to the prompts and NegativeRules to the negative prompts on every
// run.
type PromptImageGenerationEngine struct {
	Driver        driver.ImageGenerationDriver
	Rules         []string
	NegativeRules []string
}

// Run generates one image. The caller's slices are not modified.
func (e *PromptImageGenerationEngine) Run(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error) {
	if e.Driver == nil {
		return nil, errors.New("image generation engine: no driver")
	}

	prompts = withRules(prompts, e.Rules)
	negativePrompts = withRules(negativePrompts, e.NegativeRules)

	out, err := e.Driver.GenerateImage(ctx, prompts, negativePrompts)
	if err != nil {
		return nil, fmt.Errorf("image driver %s: %w", e.Driver.Model(), err)
	}
	return out, nil
}

func withRules(prompts, rules []string) []string {
	out := make([]string, 0, len(prompts)+len(rules))
	out = append(out, prompts...)
	return append(out, rules...)
}
