// Package task defines the unit of work run by a structure and the linkage
// between tasks.
//
// Tasks never hold pointers to each other. Parent and child edges are id
// lists that the owning structure resolves on demand.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aristath/griptape/internal/artifact"
)

// ErrAlreadyAttached is returned when a task is attached to a second structure.
var ErrAlreadyAttached = errors.New("task: already attached to a structure")

// State is the lifecycle state of a task within one run.
type State int

const (
	StatePending State = iota
	StateExecuting
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Context is the per-invocation view of structure state handed to a task.
type Context map[string]any

// Structure is what a task may see of its owner.
type Structure interface {
	TaskByID(id string) (Task, bool)
	Context(t Task) Context
	PublishOutput(taskID, line string)
}

// Task is a unit of work. Concrete kinds embed BaseTask and implement Run.
type Task interface {
	Base() *BaseTask
	Preprocess(s Structure) error
	Run(ctx context.Context) (artifact.Artifact, error)
}

// Option configures a BaseTask.
type Option func(*BaseTask)

// WithID sets an explicit task id instead of a generated one.
func WithID(id string) Option {
	return func(b *BaseTask) { b.id = id }
}

// BaseTask carries identity, linkage and lifecycle state.
type BaseTask struct {
	id string

	// ParentIDs and ChildIDs are edited only by the owning structure.
	ParentIDs []string
	ChildIDs  []string

	structure Structure
	output    artifact.Artifact
	state     State
}

// NewBaseTask returns a BaseTask with a fresh id, for embedding in task kinds.
func NewBaseTask(opts ...Option) BaseTask {
	b := BaseTask{id: strings.ReplaceAll(uuid.NewString(), "-", "")}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *BaseTask) Base() *BaseTask { return b }

func (b *BaseTask) ID() string { return b.id }

// Structure returns the owning structure, or nil before attachment.
func (b *BaseTask) Structure() Structure { return b.structure }

// Output returns the artifact produced by the last run, or nil.
func (b *BaseTask) Output() artifact.Artifact { return b.output }

func (b *BaseTask) State() State { return b.state }

// Preprocess attaches the task to s. Attachment is single-shot.
func (b *BaseTask) Preprocess(s Structure) error {
	if s == nil {
		return errors.New("task: nil structure")
	}
	if b.structure != nil {
		return fmt.Errorf("%w: task %s", ErrAlreadyAttached, b.id)
	}
	b.structure = s
	return nil
}

// Parents resolves ParentIDs through the owning structure. Ids that do not
// resolve are skipped.
func (b *BaseTask) Parents() []Task {
	return b.resolve(b.ParentIDs)
}

// Children resolves ChildIDs through the owning structure.
func (b *BaseTask) Children() []Task {
	return b.resolve(b.ChildIDs)
}

func (b *BaseTask) resolve(ids []string) []Task {
	if b.structure == nil {
		return nil
	}
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := b.structure.TaskByID(id); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// FullContext returns the owning structure's context for this task, or an
// empty context when the task is not registered with one.
func (b *BaseTask) FullContext() Context {
	if b.structure == nil {
		return Context{}
	}
	self, ok := b.structure.TaskByID(b.id)
	if !ok {
		return Context{}
	}
	return b.structure.Context(self)
}

// Publish streams a line of output through the owning structure.
func (b *BaseTask) Publish(line string) {
	if b.structure != nil {
		b.structure.PublishOutput(b.id, line)
	}
}

// Reset returns the task to Pending and clears its output.
func (b *BaseTask) Reset() {
	b.state = StatePending
	b.output = nil
}

// Execute runs t and records the outcome on its BaseTask. On failure the
// output becomes an ErrorArtifact and err is returned unchanged.
func Execute(ctx context.Context, t Task) (artifact.Artifact, error) {
	b := t.Base()
	b.state = StateExecuting

	out, err := t.Run(ctx)
	if err != nil {
		b.output = artifact.NewError(err)
		b.state = StateFailed
		return b.output, err
	}

	b.output = out
	b.state = StateFinished
	return out, nil
}

// Kind returns a short name for t's concrete type.
func Kind(t Task) string {
	if k, ok := t.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	name := fmt.Sprintf("%T", t)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
