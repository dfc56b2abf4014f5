package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/driver"
	"github.com/aristath/griptape/internal/engine"
)

// ErrNoDriver is returned by tasks run without the collaborator they need.
var ErrNoDriver = errors.New("task: no driver configured")

// PromptTask renders its input and sends it to a prompt driver.
type PromptTask struct {
	BaseTask

	// Input is a text/template rendered against the task's context.
	Input        string
	SystemPrompt string
	Driver       driver.PromptDriver
}

// NewPromptTask creates a PromptTask.
func NewPromptTask(input string, d driver.PromptDriver, opts ...Option) *PromptTask {
	return &PromptTask{BaseTask: NewBaseTask(opts...), Input: input, Driver: d}
}

func (t *PromptTask) Kind() string { return "PromptTask" }

// Run sends the rendered prompt. Streaming drivers publish each chunk
// through the owning structure as it arrives.
func (t *PromptTask) Run(ctx context.Context) (artifact.Artifact, error) {
	if t.Driver == nil {
		return nil, ErrNoDriver
	}

	input, err := Render(t.Input, t.FullContext())
	if err != nil {
		return nil, err
	}

	var stack driver.PromptStack
	if t.SystemPrompt != "" {
		stack.AddSystem(t.SystemPrompt)
	}
	stack.AddUser(input)

	if sd, ok := t.Driver.(driver.StreamingPromptDriver); ok {
		out, err := sd.Stream(ctx, stack, t.Publish)
		if err != nil {
			return nil, fmt.Errorf("prompt driver %s: %w", t.Driver.Model(), err)
		}
		return out, nil
	}

	out, err := t.Driver.Run(ctx, stack)
	if err != nil {
		return nil, fmt.Errorf("prompt driver %s: %w", t.Driver.Model(), err)
	}
	t.Publish(out.Value)
	return out, nil
}

// TextQueryTask renders its input as a query against a query engine.
type TextQueryTask struct {
	BaseTask

	Input     string
	Namespace string
	Engine    engine.QueryEngine
}

// NewTextQueryTask creates a TextQueryTask.
func NewTextQueryTask(input string, e engine.QueryEngine, namespace string, opts ...Option) *TextQueryTask {
	return &TextQueryTask{BaseTask: NewBaseTask(opts...), Input: input, Engine: e, Namespace: namespace}
}

func (t *TextQueryTask) Kind() string { return "TextQueryTask" }

func (t *TextQueryTask) Run(ctx context.Context) (artifact.Artifact, error) {
	if t.Engine == nil {
		return nil, ErrNoDriver
	}

	query, err := Render(t.Input, t.FullContext())
	if err != nil {
		return nil, err
	}

	out, err := t.Engine.Query(ctx, query, t.Namespace)
	if err != nil {
		return nil, fmt.Errorf("query engine: %w", err)
	}
	t.Publish(out.Value)
	return out, nil
}

// FuncTask runs an arbitrary Go function.
type FuncTask struct {
	BaseTask

	Fn func(ctx context.Context, t *FuncTask) (artifact.Artifact, error)
}

// NewFuncTask creates a FuncTask.
func NewFuncTask(fn func(ctx context.Context, t *FuncTask) (artifact.Artifact, error), opts ...Option) *FuncTask {
	return &FuncTask{BaseTask: NewBaseTask(opts...), Fn: fn}
}

func (t *FuncTask) Kind() string { return "FuncTask" }

func (t *FuncTask) Run(ctx context.Context) (artifact.Artifact, error) {
	if t.Fn == nil {
		return nil, errors.New("task: FuncTask has no function")
	}
	return t.Fn(ctx, t)
}
