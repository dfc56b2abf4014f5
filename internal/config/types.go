package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/griptape/internal/driver"
)

// Task types accepted in pipeline definitions.
const (
	TaskTypePrompt    = "prompt"
	TaskTypeTextQuery = "text_query"
	TaskTypeImage     = "image_generation"
)

// DriverConfig describes a prompt or embedding driver.
type DriverConfig struct {
	Type         string   `json:"type" yaml:"type"`                                       // "echo", "cloud", "gemini", "command" ("hash" for embeddings)
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL      string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv    string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"` // Environment variable holding the API key
	Command      string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args         []string `json:"args,omitempty" yaml:"args,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// PromptFormat is "transcript" or "llama3"; command drivers only.
	PromptFormat string   `json:"prompt_format,omitempty" yaml:"prompt_format,omitempty"`
	Temperature  float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DriverConfig converts to the driver package's Config, reading the API key
// from APIKeyEnv when set.
func (c DriverConfig) DriverConfig() driver.Config {
	cfg := driver.Config{
		Type:         c.Type,
		Model:        c.Model,
		BaseURL:      c.BaseURL,
		Command:      c.Command,
		Args:         c.Args,
		SystemPrompt: c.SystemPrompt,
		PromptFormat: c.PromptFormat,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
	}
	if c.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(c.APIKeyEnv)
	}
	return cfg
}

// TokenizerConfig sizes the tokenizer used for embedding and chunking.
type TokenizerConfig struct {
	CharactersPerToken int `json:"characters_per_token,omitempty" yaml:"characters_per_token,omitempty"`
	MaxInputTokens     int `json:"max_input_tokens,omitempty" yaml:"max_input_tokens,omitempty"`
	MaxOutputTokens    int `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
}

// TaskConfig defines one task of a pipeline.
type TaskConfig struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Type         string `json:"type" yaml:"type"`                                 // "prompt", "text_query" or "image_generation"
	Driver       string `json:"driver,omitempty" yaml:"driver,omitempty"`         // Key into Drivers, or ImageDrivers for image_generation
	Input        string `json:"input,omitempty" yaml:"input,omitempty"`           // text/template over the task context
	Namespace    string `json:"namespace,omitempty" yaml:"namespace,omitempty"`   // Vector store namespace for text_query
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// image_generation only.
	NegativeInput string   `json:"negative_input,omitempty" yaml:"negative_input,omitempty"`
	Rules         []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	NegativeRules []string `json:"negative_rules,omitempty" yaml:"negative_rules,omitempty"`
	OutputDir     string   `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	OutputFile    string   `json:"output_file,omitempty" yaml:"output_file,omitempty"`
}

// PipelineConfig is an ordered list of tasks.
type PipelineConfig struct {
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []TaskConfig `json:"tasks" yaml:"tasks"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// RetryConfig configures driver retries.
type RetryConfig struct {
	InitialInterval     Duration `json:"initial_interval,omitempty" yaml:"initial_interval,omitempty"`
	MaxInterval         Duration `json:"max_interval,omitempty" yaml:"max_interval,omitempty"`
	MaxElapsedTime      Duration `json:"max_elapsed_time,omitempty" yaml:"max_elapsed_time,omitempty"`
	Multiplier          float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	RandomizationFactor float64  `json:"randomization_factor,omitempty" yaml:"randomization_factor,omitempty"`
}

// DriverRetry converts to the driver package's RetryConfig.
func (r RetryConfig) DriverRetry() driver.RetryConfig {
	return driver.RetryConfig{
		InitialInterval:     time.Duration(r.InitialInterval),
		MaxInterval:         time.Duration(r.MaxInterval),
		MaxElapsedTime:      time.Duration(r.MaxElapsedTime),
		Multiplier:          r.Multiplier,
		RandomizationFactor: r.RandomizationFactor,
	}
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
}

// VectorStoreConfig locates the SQLite vector store.
type VectorStoreConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Drivers      map[string]DriverConfig   `json:"drivers" yaml:"drivers"`
	ImageDrivers map[string]DriverConfig   `json:"image_drivers,omitempty" yaml:"image_drivers,omitempty"`
	Embedding    DriverConfig              `json:"embedding" yaml:"embedding"`
	Tokenizer    TokenizerConfig           `json:"tokenizer" yaml:"tokenizer"`
	Pipelines    map[string]PipelineConfig `json:"pipelines" yaml:"pipelines"`
	Retry        RetryConfig               `json:"retry" yaml:"retry"`
	Log          LogConfig                 `json:"log" yaml:"log"`
	VectorStore  VectorStoreConfig         `json:"vector_store" yaml:"vector_store"`
}
