// Package engine combines drivers into higher level operations: answering
// questions over a vector store and generating images from prompts.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/driver"
	"github.com/aristath/griptape/internal/vectorstore"
)

const (
	defaultTopN = 5

	defaultSystemPrompt = "You are an expert Q&A system. Always answer the question using the provided context information, and not prior knowledge. " +
		"If the context does not contain the answer, say that you could not find it."
)

// QueryEngine answers a query using stored artifacts.
type QueryEngine interface {
	Query(ctx context.Context, query, namespace string) (*artifact.TextArtifact, error)
	LoadArtifacts(ctx context.Context, namespace string) ([]*artifact.TextArtifact, error)
	UpsertTextArtifact(ctx context.Context, a *artifact.TextArtifact, namespace string) (string, error)
	UpsertTextArtifacts(ctx context.Context, arts []*artifact.TextArtifact, namespace string) ([]string, error)
}

// VectorQueryEngine retrieves the TopN closest entries and asks the prompt
// driver to answer from them.
type VectorQueryEngine struct {
	Store        *vectorstore.Store
	PromptDriver driver.PromptDriver
	// TopN is the number of entries put in context. Zero means 5.
	TopN int
	// SystemPrompt overrides the default answering instructions.
	SystemPrompt string
}

var _ QueryEngine = (*VectorQueryEngine)(nil)

func (e *VectorQueryEngine) Query(ctx context.Context, query, namespace string) (*artifact.TextArtifact, error) {
	topN := e.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	entries, err := e.Store.Query(ctx, query, vectorstore.QueryOptions{Count: topN, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	var sources []string
	for _, entry := range entries {
		if a, ok := entry.Artifact(); ok {
			sources = append(sources, a.Value)
		}
	}

	system := e.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	var stack driver.PromptStack
	stack.AddSystem(system)
	stack.AddUser(renderQuery(query, sources))

	out, err := e.PromptDriver.Run(ctx, stack)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}
	return out, nil
}

func (e *VectorQueryEngine) LoadArtifacts(ctx context.Context, namespace string) ([]*artifact.TextArtifact, error) {
	return e.Store.LoadArtifacts(ctx, namespace)
}

func (e *VectorQueryEngine) UpsertTextArtifact(ctx context.Context, a *artifact.TextArtifact, namespace string) (string, error) {
	return e.Store.UpsertTextArtifact(ctx, a, vectorstore.UpsertOptions{Namespace: namespace})
}

func (e *VectorQueryEngine) UpsertTextArtifacts(ctx context.Context, arts []*artifact.TextArtifact, namespace string) ([]string, error) {
	return e.Store.UpsertTextArtifacts(ctx, arts, namespace)
}

func renderQuery(query string, sources []string) string {
	if len(sources) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Context information:\n\n")
	b.WriteString(strings.Join(sources, "\n\n"))
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	return b.String()
}
