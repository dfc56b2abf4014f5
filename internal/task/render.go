package task

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultInput renders the first structure argument, or nothing when the
// structure was run without arguments.
const DefaultInput = "{{ arg .args 0 }}"

var templateFuncs = template.FuncMap{
	// arg returns args[i] or "" when out of range.
	"arg": func(args []string, i int) string {
		if i < 0 || i >= len(args) {
			return ""
		}
		return args[i]
	},
	"join":  strings.Join,
	"trim":  strings.TrimSpace,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	// default returns fallback when v is nil or an empty string.
	"default": func(fallback string, v any) string {
		if v == nil {
			return fallback
		}
		if s, ok := v.(string); ok && s == "" {
			return fallback
		}
		return fmt.Sprint(v)
	},
}

// Render executes tmpl against ctx. An empty template uses DefaultInput.
func Render(tmpl string, ctx Context) (string, error) {
	if tmpl == "" {
		tmpl = DefaultInput
	}

	t, err := template.New("input").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing input template: %w", err)
	}

	var b strings.Builder
	if err := t.Execute(&b, map[string]any(ctx)); err != nil {
		return "", fmt.Errorf("rendering input template: %w", err)
	}
	return b.String(), nil
}
