package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aristath/griptape/internal/artifact"
)

const (
	defaultCloudBaseURL = "https://cloud.griptape.ai"
	cloudAPIKeyEnv      = "GT_CLOUD_API_KEY"
)

// cloudArtifact is the serialized form of an artifact inside a cloud message.
type cloudArtifact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type cloudMessageContent struct {
	Type     string        `json:"type"`
	Artifact cloudArtifact `json:"artifact"`
}

type cloudMessage struct {
	Type    string                `json:"type"`
	Role    string                `json:"role"`
	Content []cloudMessageContent `json:"content"`
}

type cloudDeltaMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type cloudPromptRequest struct {
	Messages []cloudMessage `json:"messages"`
	Params   map[string]any `json:"params"`
}

type cloudEmbeddingRequest struct {
	Input  string         `json:"input"`
	Params map[string]any `json:"params"`
}

// cloudClient holds the HTTP settings shared by the cloud drivers.
type cloudClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newCloudClient(cfg Config) cloudClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCloudBaseURL
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(cloudAPIKeyEnv)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return cloudClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

// post sends body as JSON and returns the response for the caller to consume.
// 4xx responses other than 429 are permanent failures.
func (c cloudClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, Permanent(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		err := fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, Permanent(err)
		}
		return nil, err
	}

	return resp, nil
}

// CloudPromptDriver talks to the hosted prompt endpoints.
type CloudPromptDriver struct {
	client      cloudClient
	model       string
	temperature float64
	maxTokens   int
}

// NewCloudPromptDriver creates a CloudPromptDriver. An empty model means "auto".
func NewCloudPromptDriver(cfg Config) *CloudPromptDriver {
	model := cfg.Model
	if model == "" {
		model = "auto"
	}
	return &CloudPromptDriver{
		client:      newCloudClient(cfg),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (d *CloudPromptDriver) Model() string { return d.model }

func (d *CloudPromptDriver) Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error) {
	resp, err := d.client.post(ctx, "/api/drivers/prompt", d.request(stack))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var msg cloudMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, Permanent(fmt.Errorf("decoding prompt response: %w", err))
	}

	var b strings.Builder
	for _, c := range msg.Content {
		b.WriteString(c.Artifact.Value)
	}
	return artifact.NewText(b.String()), nil
}

// Stream reads the concatenated JSON delta messages of the stream endpoint.
func (d *CloudPromptDriver) Stream(ctx context.Context, stack PromptStack, onChunk func(string)) (*artifact.TextArtifact, error) {
	resp, err := d.client.post(ctx, "/api/drivers/prompt-stream", d.request(stack))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var b strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		var delta cloudDeltaMessage
		if err := dec.Decode(&delta); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding stream chunk: %w", err)
		}
		if delta.Content == nil || delta.Content.Text == "" {
			continue
		}
		onChunk(delta.Content.Text)
		b.WriteString(delta.Content.Text)
	}
	return artifact.NewText(b.String()), nil
}

func (d *CloudPromptDriver) request(stack PromptStack) cloudPromptRequest {
	messages := make([]cloudMessage, 0, len(stack.Messages))
	for _, m := range stack.Messages {
		messages = append(messages, cloudMessage{
			Type: "Message",
			Role: m.Role,
			Content: []cloudMessageContent{{
				Type:     "TextMessageContent",
				Artifact: cloudArtifact{Type: "TextArtifact", Value: m.Content},
			}},
		})
	}

	params := map[string]any{
		"model":       d.model,
		"temperature": d.temperature,
	}
	if d.maxTokens > 0 {
		params["max_tokens"] = d.maxTokens
	}
	return cloudPromptRequest{Messages: messages, Params: params}
}

// CloudEmbeddingDriver talks to the hosted embedding endpoint.
type CloudEmbeddingDriver struct {
	client cloudClient
	model  string
}

// NewCloudEmbeddingDriver creates a CloudEmbeddingDriver.
func NewCloudEmbeddingDriver(cfg Config) *CloudEmbeddingDriver {
	return &CloudEmbeddingDriver{client: newCloudClient(cfg), model: cfg.Model}
}

func (d *CloudEmbeddingDriver) Model() string { return d.model }

func (d *CloudEmbeddingDriver) EmbedChunk(ctx context.Context, text string) ([]float64, error) {
	resp, err := d.client.post(ctx, "/api/drivers/embedding", cloudEmbeddingRequest{
		Input:  text,
		Params: map[string]any{"model": d.model},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var vec []float64
	if err := json.NewDecoder(resp.Body).Decode(&vec); err != nil {
		return nil, Permanent(fmt.Errorf("decoding embedding response: %w", err))
	}
	return vec, nil
}
