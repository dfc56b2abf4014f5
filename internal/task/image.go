package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/engine"
)

// PromptImageGenerationTask renders its input into an image prompt and
// returns the generated image as a BlobArtifact.
type PromptImageGenerationTask struct {
	BaseTask

	Input string
	// NegativeInput is rendered like Input; empty means no negative prompt.
	NegativeInput string
	Engine        engine.ImageGenerationEngine

	// OutputFile, or else OutputDir, names where the image is written.
	// With neither set the image is only kept in memory.
	OutputDir  string
	OutputFile string
}

// NewPromptImageGenerationTask creates a PromptImageGenerationTask.
func NewPromptImageGenerationTask(input string, e engine.ImageGenerationEngine, opts ...Option) *PromptImageGenerationTask {
	return &PromptImageGenerationTask{BaseTask: NewBaseTask(opts...), Input: input, Engine: e}
}

func (t *PromptImageGenerationTask) Kind() string { return "PromptImageGenerationTask" }

func (t *PromptImageGenerationTask) Run(ctx context.Context) (artifact.Artifact, error) {
	if t.Engine == nil {
		return nil, ErrNoDriver
	}

	full := t.FullContext()
	prompt, err := Render(t.Input, full)
	if err != nil {
		return nil, err
	}
	var negative []string
	if t.NegativeInput != "" {
		n, err := Render(t.NegativeInput, full)
		if err != nil {
			return nil, err
		}
		negative = nonEmpty(n)
	}

	out, err := t.Engine.Run(ctx, nonEmpty(prompt), negative)
	if err != nil {
		return nil, err
	}

	if path := t.outputPath(out); path != "" {
		if err := writeBlob(path, out); err != nil {
			return nil, err
		}
	}
	t.Publish(out.ToText())
	return out, nil
}

func (t *PromptImageGenerationTask) outputPath(out *artifact.BlobArtifact) string {
	if t.OutputFile != "" {
		return t.OutputFile
	}
	if t.OutputDir == "" {
		return ""
	}
	ext := ".bin"
	if out.IsImage() {
		ext = "." + strings.TrimPrefix(out.MimeType, "image/")
	}
	return filepath.Join(t.OutputDir, "image_"+t.ID()+ext)
}

func writeBlob(path string, out *artifact.BlobArtifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, out.Value, 0o644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	out.Path = path
	return nil
}

func nonEmpty(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return []string{s}
}
