// Package artifact defines the typed value envelopes that tasks produce and
// consume.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrIncompatible is returned when two artifacts cannot be combined.
var ErrIncompatible = errors.New("artifact: incompatible operands")

// Artifact is a value that can be rendered as text or bytes.
type Artifact interface {
	// Name identifies the artifact kind (e.g. "TextArtifact").
	Name() string
	ToText() string
	ToBytes() []byte
}

// Embedder produces a vector for a piece of text. Embedding drivers satisfy it.
type Embedder interface {
	EmbedChunk(ctx context.Context, text string) ([]float64, error)
}

// TextArtifact wraps a string.
type TextArtifact struct {
	Value     string
	Embedding []float64
}

// NewText creates a TextArtifact.
func NewText(value string) *TextArtifact {
	return &TextArtifact{Value: value}
}

func (a *TextArtifact) Name() string    { return "TextArtifact" }
func (a *TextArtifact) ToText() string  { return a.Value }
func (a *TextArtifact) ToBytes() []byte { return []byte(a.Value) }

// Add concatenates the text of other onto a copy of a.
func (a *TextArtifact) Add(other Artifact) *TextArtifact {
	return NewText(a.Value + other.ToText())
}

// GenerateEmbedding embeds the artifact's value and stores the vector on it.
func (a *TextArtifact) GenerateEmbedding(ctx context.Context, e Embedder) ([]float64, error) {
	vec, err := e.EmbedChunk(ctx, a.Value)
	if err != nil {
		return nil, err
	}
	a.Embedding = vec
	return vec, nil
}

// ListArtifact groups artifacts, e.g. the chunks of a document or the rows of
// a JSON file.
type ListArtifact struct {
	Value []Artifact
}

// NewList creates a ListArtifact.
func NewList(items ...Artifact) *ListArtifact {
	return &ListArtifact{Value: items}
}

func (a *ListArtifact) Name() string { return "ListArtifact" }

func (a *ListArtifact) ToText() string {
	parts := make([]string, 0, len(a.Value))
	for _, item := range a.Value {
		parts = append(parts, item.ToText())
	}
	return strings.Join(parts, "\n\n")
}

func (a *ListArtifact) ToBytes() []byte { return []byte(a.ToText()) }

// ErrorArtifact is the output of a task whose run failed.
type ErrorArtifact struct {
	Value string
	Err   error
}

// NewError wraps err in an ErrorArtifact.
func NewError(err error) *ErrorArtifact {
	return &ErrorArtifact{Value: err.Error(), Err: err}
}

func (a *ErrorArtifact) Name() string    { return "ErrorArtifact" }
func (a *ErrorArtifact) ToText() string  { return a.Value }
func (a *ErrorArtifact) ToBytes() []byte { return []byte(a.Value) }
func (a *ErrorArtifact) Error() string   { return a.Value }
func (a *ErrorArtifact) Unwrap() error   { return a.Err }

// BlobArtifact carries raw bytes such as generated images. Path is set once
// the bytes have been written to disk.
type BlobArtifact struct {
	Value    []byte
	MimeType string
	Path     string
}

func (a *BlobArtifact) Name() string    { return "BlobArtifact" }
func (a *BlobArtifact) ToBytes() []byte { return a.Value }

// ToText returns the bytes as a string. Images are described instead, so
// that binary data never ends up in a prompt.
func (a *BlobArtifact) ToText() string {
	if !a.IsImage() {
		return string(a.Value)
	}
	desc := fmt.Sprintf("Image, format: %s, size: %d bytes", strings.TrimPrefix(a.MimeType, "image/"), len(a.Value))
	if a.Path != "" {
		desc += ", path: " + a.Path
	}
	return desc
}

// IsImage reports whether the blob holds an image.
func (a *BlobArtifact) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}
