package driver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"google.golang.org/genai"

	"github.com/aristath/griptape/internal/artifact"
)

const (
	defaultGeminiImageModel = "imagen-4.0-generate-001"
	defaultEchoImageSize    = 64
)

// ErrNoPrompt is returned when an image is requested without any prompt.
var ErrNoPrompt = errors.New("driver: no image prompt")

// ImageGenerationDriver turns text prompts into an image. Negative prompts
// describe what the image should not contain.
type ImageGenerationDriver interface {
	GenerateImage(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error)
	Model() string
}

// NewImageGeneration creates an image generation driver based on cfg.Type.
func NewImageGeneration(ctx context.Context, cfg Config) (ImageGenerationDriver, error) {
	switch cfg.Type {
	case "echo", "":
		return NewEchoImageGenerationDriver(0), nil
	case "gemini":
		return NewGeminiImageGenerationDriver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown image generation driver type: %s", cfg.Type)
	}
}

// EchoImageGenerationDriver paints a square PNG whose colours are derived
// from the prompts. Equal prompts give equal images.
type EchoImageGenerationDriver struct {
	size int
}

// NewEchoImageGenerationDriver creates an EchoImageGenerationDriver with
// size pixel sides; size <= 0 uses 64.
func NewEchoImageGenerationDriver(size int) *EchoImageGenerationDriver {
	if size <= 0 {
		size = defaultEchoImageSize
	}
	return &EchoImageGenerationDriver{size: size}
}

func (d *EchoImageGenerationDriver) Model() string { return "echo" }

func (d *EchoImageGenerationDriver) GenerateImage(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, Permanent(ErrNoPrompt)
	}

	sum := sha256.Sum256([]byte(strings.Join(prompts, "\n") + "\x00" + strings.Join(negativePrompts, "\n")))
	fg := color.NRGBA{R: sum[0], G: sum[1], B: sum[2], A: 0xff}
	bg := color.NRGBA{R: sum[3], G: sum[4], B: sum[5], A: 0xff}

	img := image.NewNRGBA(image.Rect(0, 0, d.size, d.size))
	cell := max(d.size/8, 1)
	for y := 0; y < d.size; y++ {
		for x := 0; x < d.size; x++ {
			bit := sum[(y/cell*8+x/cell)%len(sum)] & (1 << ((x / cell) % 8))
			if bit != 0 {
				img.SetNRGBA(x, y, fg)
			} else {
				img.SetNRGBA(x, y, bg)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return &artifact.BlobArtifact{Value: buf.Bytes(), MimeType: "image/png"}, nil
}

// GeminiImageGenerationDriver generates images with an Imagen model through
// the genai client.
type GeminiImageGenerationDriver struct {
	cli   *genai.Client
	model string
}

// NewGeminiImageGenerationDriver creates a GeminiImageGenerationDriver.
func NewGeminiImageGenerationDriver(ctx context.Context, cfg Config) (*GeminiImageGenerationDriver, error) {
	cli, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiImageModel
	}
	return &GeminiImageGenerationDriver{cli: cli, model: model}, nil
}

func (d *GeminiImageGenerationDriver) Model() string { return d.model }

// GenerateImage asks for a single image. The Gemini API rejects a separate
// negative prompt, so negative prompts are folded into the prompt text.
func (d *GeminiImageGenerationDriver) GenerateImage(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error) {
	if len(prompts) == 0 {
		return nil, Permanent(ErrNoPrompt)
	}

	resp, err := d.cli.Models.GenerateImages(ctx, d.model, imagePrompt(prompts, negativePrompts), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, ErrEmptyResponse
	}

	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return nil, Permanent(fmt.Errorf("gemini image filtered: %s", generated.RAIFilteredReason))
		}
		return nil, ErrEmptyResponse
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &artifact.BlobArtifact{Value: generated.Image.ImageBytes, MimeType: mimeType}, nil
}

func imagePrompt(prompts, negativePrompts []string) string {
	prompt := strings.Join(prompts, ", ")
	if len(negativePrompts) > 0 {
		prompt += ". Avoid: " + strings.Join(negativePrompts, ", ")
	}
	return prompt
}
