package config

import "time"

// DefaultConfig returns the built-in drivers, an offline demo pipeline and
// default retry, log and storage settings.
func DefaultConfig() *Config {
	return &Config{
		Drivers: map[string]DriverConfig{
			"echo": {Type: "echo"},
			"cloud": {
				Type:      "cloud",
				APIKeyEnv: "GT_CLOUD_API_KEY",
			},
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.5-flash",
				APIKeyEnv: "GEMINI_API_KEY",
			},
			"claude": {
				Type:    "command",
				Command: "claude",
			},
		},
		ImageDrivers: map[string]DriverConfig{
			"echo": {Type: "echo"},
			"imagen": {
				Type:      "gemini",
				Model:     "imagen-4.0-generate-001",
				APIKeyEnv: "GEMINI_API_KEY",
			},
		},
		Embedding: DriverConfig{Type: "hash"},
		Tokenizer: TokenizerConfig{
			CharactersPerToken: 4,
			MaxInputTokens:     4096,
			MaxOutputTokens:    1024,
		},
		Pipelines: map[string]PipelineConfig{
			"echo": {
				Description: "Two chained echo prompts; needs no network.",
				Tasks: []TaskConfig{
					{Type: TaskTypePrompt, Driver: "echo"},
					{Type: TaskTypePrompt, Driver: "echo", Input: "{{ .parent_output }}"},
				},
			},
			"image": {
				Description: "Turns the first argument into a placeholder image; needs no network.",
				Tasks: []TaskConfig{
					{Type: TaskTypePrompt, Driver: "echo"},
					{
						Type:      TaskTypeImage,
						Driver:    "echo",
						Input:     "{{ .parent_output }}",
						OutputDir: ".griptape/images",
					},
				},
			},
		},
		Retry: RetryConfig{
			InitialInterval:     Duration(100 * time.Millisecond),
			MaxInterval:         Duration(10 * time.Second),
			MaxElapsedTime:      Duration(2 * time.Minute),
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		VectorStore: VectorStoreConfig{
			Path: ".griptape/vectors.db",
		},
	}
}
