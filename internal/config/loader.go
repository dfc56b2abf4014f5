package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and merges configuration from global and project paths.
// Precedence, highest first: project, global, defaults. Missing files are
// not errors; malformed files are.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath, true); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath, true); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads ~/.griptape/config.json and .griptape/config.json.
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return Load(
		filepath.Join(homeDir, ".griptape", "config.json"),
		filepath.Join(".griptape", "config.json"),
	)
}

// LoadFile merges a single JSON or YAML file over the defaults. Unlike
// Load, the file must exist.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := mergeConfigFile(cfg, path, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfigFile decodes path (YAML for .yaml/.yml, JSON otherwise) and
// merges it into base.
func mergeConfigFile(base *Config, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

// merge overlays the set fields of src onto dst. Map entries replace
// entries with the same key.
func merge(dst, src *Config) {
	for key, d := range src.Drivers {
		dst.Drivers[key] = d
	}
	if len(src.ImageDrivers) > 0 && dst.ImageDrivers == nil {
		dst.ImageDrivers = make(map[string]DriverConfig, len(src.ImageDrivers))
	}
	for key, d := range src.ImageDrivers {
		dst.ImageDrivers[key] = d
	}
	for key, p := range src.Pipelines {
		dst.Pipelines[key] = p
	}

	if src.Embedding.Type != "" {
		dst.Embedding = src.Embedding
	}

	if src.Tokenizer.CharactersPerToken != 0 {
		dst.Tokenizer.CharactersPerToken = src.Tokenizer.CharactersPerToken
	}
	if src.Tokenizer.MaxInputTokens != 0 {
		dst.Tokenizer.MaxInputTokens = src.Tokenizer.MaxInputTokens
	}
	if src.Tokenizer.MaxOutputTokens != 0 {
		dst.Tokenizer.MaxOutputTokens = src.Tokenizer.MaxOutputTokens
	}

	if src.Retry.InitialInterval != 0 {
		dst.Retry.InitialInterval = src.Retry.InitialInterval
	}
	if src.Retry.MaxInterval != 0 {
		dst.Retry.MaxInterval = src.Retry.MaxInterval
	}
	if src.Retry.MaxElapsedTime != 0 {
		dst.Retry.MaxElapsedTime = src.Retry.MaxElapsedTime
	}
	if src.Retry.Multiplier != 0 {
		dst.Retry.Multiplier = src.Retry.Multiplier
	}
	if src.Retry.RandomizationFactor != 0 {
		dst.Retry.RandomizationFactor = src.Retry.RandomizationFactor
	}

	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.VectorStore.Path != "" {
		dst.VectorStore.Path = src.VectorStore.Path
	}
}
