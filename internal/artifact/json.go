package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

// JsonArtifact holds a JSON value. The value is kept in its encoded form so
// that every read returns a fresh decoded copy.
type JsonArtifact struct {
	raw       string
	Embedding []float64
}

// NewJSON encodes v and wraps it.
func NewJSON(v any) (*JsonArtifact, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json artifact: %w", err)
	}
	return &JsonArtifact{raw: string(data)}, nil
}

// DecodeJSON decodes data into generic Go values. Numbers are kept as
// json.Number so integers wider than a float64 mantissa survive a round trip.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after json value")
	}
	return v, nil
}

func (a *JsonArtifact) Name() string    { return "JsonArtifact" }
func (a *JsonArtifact) ToText() string  { return a.raw }
func (a *JsonArtifact) ToBytes() []byte { return []byte(a.raw) }

// Value decodes the stored JSON.
func (a *JsonArtifact) Value() any {
	v, _ := DecodeJSON([]byte(a.raw))
	return v
}

// Add merges other into a copy of a. Both sides must be JSON objects; keys
// from other win.
func (a *JsonArtifact) Add(other Artifact) (*JsonArtifact, error) {
	left, ok := a.Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: cannot add %s to %s", ErrIncompatible, other.ToText(), a.raw)
	}

	decoded, err := DecodeJSON([]byte(other.ToText()))
	right, ok := decoded.(map[string]any)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: cannot add %s to %s", ErrIncompatible, other.ToText(), a.raw)
	}

	merged := make(map[string]any, len(left)+len(right))
	for k, v := range left {
		merged[k] = v
	}
	for k, v := range right {
		merged[k] = v
	}
	return NewJSON(merged)
}

// Equal compares against a string (text form), another JsonArtifact, or any
// Go value (decoded form).
func (a *JsonArtifact) Equal(v any) bool {
	switch other := v.(type) {
	case string:
		return a.raw == other
	case *JsonArtifact:
		return reflect.DeepEqual(a.Value(), other.Value())
	default:
		normalized, err := NewJSON(v)
		if err != nil {
			return false
		}
		return reflect.DeepEqual(a.Value(), normalized.Value())
	}
}

// GenerateEmbedding embeds the artifact's text form.
func (a *JsonArtifact) GenerateEmbedding(ctx context.Context, e Embedder) ([]float64, error) {
	vec, err := e.EmbedChunk(ctx, a.raw)
	if err != nil {
		return nil, err
	}
	a.Embedding = vec
	return vec, nil
}
