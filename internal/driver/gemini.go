package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/aristath/griptape/internal/artifact"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// ErrEmptyResponse is returned when a model answers without content.
var ErrEmptyResponse = errors.New("driver: empty response from model")

func newGeminiClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI, HTTPClient: cfg.HTTPClient}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return cli, nil
}

// GeminiPromptDriver is a thin wrapper around the genai client.
type GeminiPromptDriver struct {
	cli         *genai.Client
	model       string
	temperature float64
}

// NewGeminiPromptDriver creates a GeminiPromptDriver.
func NewGeminiPromptDriver(ctx context.Context, cfg Config) (*GeminiPromptDriver, error) {
	cli, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiPromptDriver{cli: cli, model: model, temperature: cfg.Temperature}, nil
}

func (d *GeminiPromptDriver) Model() string { return d.model }

func (d *GeminiPromptDriver) Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error) {
	var contents []*genai.Content
	for _, m := range stack.Messages {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{}
	if system := stack.System(); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if d.temperature > 0 {
		t := float32(d.temperature)
		config.Temperature = &t
	}

	resp, err := d.cli.Models.GenerateContent(ctx, d.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return artifact.NewText(b.String()), nil
}

// GeminiEmbeddingDriver embeds text with a Gemini embedding model.
type GeminiEmbeddingDriver struct {
	cli   *genai.Client
	model string
}

// NewGeminiEmbeddingDriver creates a GeminiEmbeddingDriver.
func NewGeminiEmbeddingDriver(ctx context.Context, cfg Config) (*GeminiEmbeddingDriver, error) {
	cli, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	return &GeminiEmbeddingDriver{cli: cli, model: model}, nil
}

func (d *GeminiEmbeddingDriver) Model() string { return d.model }

func (d *GeminiEmbeddingDriver) EmbedChunk(ctx context.Context, text string) ([]float64, error) {
	resp, err := d.cli.Models.EmbedContent(ctx, d.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyResponse
	}

	values := resp.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	return vec, nil
}
