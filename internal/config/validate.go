package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/griptape/internal/logging"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

var (
	promptDriverTypes    = map[string]bool{"echo": true, "cloud": true, "gemini": true, "command": true}
	embeddingDriverTypes = map[string]bool{"echo": true, "hash": true, "cloud": true, "gemini": true}
	imageDriverTypes     = map[string]bool{"echo": true, "gemini": true}
	promptFormats        = map[string]bool{"": true, "transcript": true, "llama3": true}
)

// Validate checks driver types, pipeline task definitions and log settings.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for _, name := range sortedKeys(c.Drivers) {
		d := c.Drivers[name]
		if !promptDriverTypes[d.Type] {
			add("driver %q has unknown type %q", name, d.Type)
		}
		if !promptFormats[d.PromptFormat] {
			add("driver %q has unknown prompt format %q", name, d.PromptFormat)
		} else if d.PromptFormat != "" && d.Type != "command" {
			add("driver %q: prompt format is only supported by command drivers", name)
		}
	}
	for _, name := range sortedKeys(c.ImageDrivers) {
		if d := c.ImageDrivers[name]; !imageDriverTypes[d.Type] {
			add("image driver %q has unknown type %q", name, d.Type)
		}
	}
	if !embeddingDriverTypes[c.Embedding.Type] {
		add("embedding driver has unknown type %q", c.Embedding.Type)
	}

	for _, name := range sortedKeys(c.Pipelines) {
		if err := c.ValidatePipeline(name); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log: %v", err)
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		add("log format %q must be text or json", c.Log.Format)
	}

	return errors.Join(errs...)
}

// ValidatePipeline checks a single named pipeline.
func (c *Config) ValidatePipeline(name string) error {
	p, ok := c.Pipelines[name]
	if !ok {
		return fmt.Errorf("%w: unknown pipeline %q", ErrInvalid, name)
	}
	if len(p.Tasks) == 0 {
		return fmt.Errorf("%w: pipeline %q has no tasks", ErrInvalid, name)
	}

	var errs []error
	seen := make(map[string]bool)
	for i, t := range p.Tasks {
		where := fmt.Sprintf("pipeline %q task %d", name, i)
		if t.ID != "" {
			if seen[t.ID] {
				errs = append(errs, fmt.Errorf("%w: %s: duplicate id %q", ErrInvalid, where, t.ID))
			}
			seen[t.ID] = true
		}

		switch t.Type {
		case TaskTypePrompt:
			if _, ok := c.Drivers[t.Driver]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s: unknown driver %q", ErrInvalid, where, t.Driver))
			}
		case TaskTypeTextQuery:
			if t.Driver != "" {
				if _, ok := c.Drivers[t.Driver]; !ok {
					errs = append(errs, fmt.Errorf("%w: %s: unknown driver %q", ErrInvalid, where, t.Driver))
				}
			}
		case TaskTypeImage:
			if t.Driver != "" {
				if _, ok := c.ImageDrivers[t.Driver]; !ok {
					errs = append(errs, fmt.Errorf("%w: %s: unknown image driver %q", ErrInvalid, where, t.Driver))
				}
			}
			if t.OutputDir != "" && t.OutputFile != "" {
				errs = append(errs, fmt.Errorf("%w: %s: set output_dir or output_file, not both", ErrInvalid, where))
			}
		default:
			errs = append(errs, fmt.Errorf("%w: %s: unknown type %q", ErrInvalid, where, t.Type))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
