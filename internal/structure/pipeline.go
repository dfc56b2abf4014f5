package structure

import (
	"context"
	"fmt"
	"slices"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/task"
)

// Pipeline is a structure whose tasks form a single chain: every task has
// at most one parent and one child, and the declared order is the chain
// order. Each task reads its predecessor's output from its context.
type Pipeline struct {
	*Structure
}

// NewPipeline creates an empty Pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{Structure: New(opts...)}
	p.kind = "pipeline"
	p.owner = p
	return p
}

// AddTask appends t to the end of the chain and returns it.
func (p *Pipeline) AddTask(t task.Task) (task.Task, error) {
	last := p.OutputTask()
	if err := p.attach(t); err != nil {
		return nil, err
	}
	if last != nil {
		link(last, t)
	}
	p.tasks = append(p.tasks, t)
	return t, nil
}

// AddTasks appends each task in order, stopping at the first error.
func (p *Pipeline) AddTasks(ts ...task.Task) error {
	for _, t := range ts {
		if _, err := p.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

// InsertTask splices t into the chain directly after parent. If parent had
// a child, t takes its place as that child's parent.
func (p *Pipeline) InsertTask(parent, t task.Task) (task.Task, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: nil parent", ErrTaskNotFound)
	}
	idx := slices.IndexFunc(p.tasks, func(x task.Task) bool { return x == parent })
	if idx < 0 {
		return nil, fmt.Errorf("%w: parent %s is not in the pipeline", ErrTaskNotFound, parent.Base().ID())
	}

	if err := p.attach(t); err != nil {
		return nil, err
	}

	if children := parent.Base().Children(); len(children) > 0 {
		child := children[0]
		link(t, child)
		unlink(parent, child)
	}
	link(parent, t)

	p.tasks = slices.Insert(p.tasks, idx+1, t)
	return t, nil
}

// Context extends the base context with "parent_output", "parent" and
// "child". The keys are always present; they hold nil when there is no
// such task or the parent has not produced output yet.
func (p *Pipeline) Context(t task.Task) task.Context {
	ctx := p.Structure.Context(t)
	ctx["parent_output"] = nil
	ctx["parent"] = nil
	ctx["child"] = nil

	if parents := t.Base().Parents(); len(parents) > 0 {
		parent := parents[0]
		ctx["parent"] = parent
		if out := parent.Base().Output(); out != nil {
			ctx["parent_output"] = out.ToText()
		}
	}
	if children := t.Base().Children(); len(children) > 0 {
		ctx["child"] = children[0]
	}
	return ctx
}

// ResolveRelationships validates the whole chain before anything runs.
func (p *Pipeline) ResolveRelationships() error {
	if err := p.checkReferences(); err != nil {
		return err
	}

	last := len(p.tasks) - 1
	for i, t := range p.tasks {
		b := t.Base()
		switch {
		case i == 0 && len(b.ParentIDs) > 0:
			return fmt.Errorf("%w: task %s", ErrFirstTaskHasParent, b.ID())
		case len(b.ParentIDs) > 1 || len(b.ChildIDs) > 1:
			return fmt.Errorf("%w: task %s has %d parents and %d children", ErrBranching, b.ID(), len(b.ParentIDs), len(b.ChildIDs))
		case i == last && len(b.ChildIDs) > 0:
			return fmt.Errorf("%w: task %s", ErrLastTaskHasChild, b.ID())
		}
	}

	if err := p.checkSymmetry(); err != nil {
		return err
	}
	if err := p.checkAcyclic(); err != nil {
		return err
	}

	for i := 1; i < len(p.tasks); i++ {
		prev, cur := p.tasks[i-1].Base(), p.tasks[i].Base()
		if len(cur.ParentIDs) != 1 || cur.ParentIDs[0] != prev.ID() {
			return fmt.Errorf("%w: task %s at position %d does not follow %s", ErrOrderMismatch, cur.ID(), i, prev.ID())
		}
	}
	return nil
}

// Run validates the chain and executes it in order, one task at a time.
func (p *Pipeline) Run(ctx context.Context, args ...string) (artifact.Artifact, error) {
	return p.run(ctx, args, p.Tasks)
}
