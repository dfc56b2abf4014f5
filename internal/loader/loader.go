// Package loader reads files into artifacts.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/griptape/internal/artifact"
)

// ErrInvalidJSON is returned for malformed JSON or a top-level value that is
// neither an object nor an array.
var ErrInvalidJSON = errors.New("loader: invalid json")

const defaultConcurrency = 4

// JsonLoader turns JSON files into JsonArtifacts. An object yields one
// artifact, an array yields one per element.
type JsonLoader struct {
	// EmbeddingDriver, when set, embeds every loaded artifact.
	EmbeddingDriver artifact.Embedder
	// Concurrency bounds LoadCollection. Zero means 4.
	Concurrency int
}

// Load reads and parses the file at path.
func (l *JsonLoader) Load(ctx context.Context, path string) ([]*artifact.JsonArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	arts, err := l.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return arts, nil
}

// Parse converts raw JSON into artifacts.
func (l *JsonLoader) Parse(ctx context.Context, data []byte) ([]*artifact.JsonArtifact, error) {
	v, err := artifact.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var values []any
	switch tv := v.(type) {
	case map[string]any:
		values = []any{tv}
	case []any:
		values = tv
	default:
		return nil, fmt.Errorf("%w: top-level value must be an object or array", ErrInvalidJSON)
	}

	arts := make([]*artifact.JsonArtifact, 0, len(values))
	for _, value := range values {
		a, err := artifact.NewJSON(value)
		if err != nil {
			return nil, err
		}
		if l.EmbeddingDriver != nil {
			if _, err := a.GenerateEmbedding(ctx, l.EmbeddingDriver); err != nil {
				return nil, fmt.Errorf("embedding artifact: %w", err)
			}
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// LoadCollection loads several files concurrently. Results are keyed by
// PathKey. The first failure cancels the remaining loads.
func (l *JsonLoader) LoadCollection(ctx context.Context, paths []string) (map[string][]*artifact.JsonArtifact, error) {
	limit := l.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	out := make(map[string][]*artifact.JsonArtifact, len(paths))
	for _, path := range paths {
		g.Go(func() error {
			arts, err := l.Load(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			out[PathKey(path)] = arts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PathKey returns the collection key for path.
func PathKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}
