// Package structure owns collections of tasks: it resolves their id links,
// builds per-task contexts and runs them.
//
// A Structure is not safe for concurrent use. Build it completely, then Run.
package structure

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/events"
	"github.com/aristath/griptape/internal/logging"
	"github.com/aristath/griptape/internal/task"
)

// owner is the structure that tasks see. Specializations install themselves
// so that attachment, context and validation use their overrides.
type owner interface {
	task.Structure
	ResolveRelationships() error
}

// Option configures a Structure.
type Option func(*Structure)

// WithEventBus publishes run events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Structure) { s.bus = bus }
}

// WithLogger sets the logger. The default is the "structure" component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Structure) { s.logger = logger }
}

// WithID sets the structure id.
func WithID(id string) Option {
	return func(s *Structure) { s.id = id }
}

// Structure is a generic directed acyclic graph of tasks.
type Structure struct {
	id     string
	kind   string
	tasks  []task.Task
	byID   map[string]task.Task
	args   []string
	owner  owner
	bus    *events.EventBus
	logger *slog.Logger
}

// New creates an empty Structure.
func New(opts ...Option) *Structure {
	s := &Structure{
		id:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		kind: "structure",
		byID: make(map[string]task.Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New("structure")
	}
	s.logger = s.logger.With("structure_id", s.id)
	s.owner = s
	return s
}

func (s *Structure) ID() string { return s.id }

// Tasks returns the tasks in declared order.
func (s *Structure) Tasks() []task.Task {
	return slices.Clone(s.tasks)
}

// TaskByID looks a task up in the arena.
func (s *Structure) TaskByID(id string) (task.Task, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// InputTask returns the first declared task, or nil.
func (s *Structure) InputTask() task.Task {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[0]
}

// OutputTask returns the last declared task, or nil.
func (s *Structure) OutputTask() task.Task {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// Args returns the arguments of the current or most recent run.
func (s *Structure) Args() []string {
	return slices.Clone(s.args)
}

// Context returns a fresh context with the structure-wide keys "args" and
// "structure".
func (s *Structure) Context(t task.Task) task.Context {
	return task.Context{
		"args":      slices.Clone(s.args),
		"structure": s.owner,
	}
}

// PublishOutput forwards streamed task output to the event bus.
func (s *Structure) PublishOutput(taskID, line string) {
	s.emit(events.TaskOutputEvent{ID: taskID, Line: line, Timestamp: time.Now()})
}

// AddTask attaches t without linking it.
func (s *Structure) AddTask(t task.Task) (task.Task, error) {
	if err := s.attach(t); err != nil {
		return nil, err
	}
	s.tasks = append(s.tasks, t)
	return t, nil
}

// Link adds the edge parent → child on both endpoints. Both tasks must
// already belong to the structure.
func (s *Structure) Link(parent, child task.Task) error {
	for _, t := range []task.Task{parent, child} {
		if _, ok := s.byID[t.Base().ID()]; !ok {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, t.Base().ID())
		}
	}
	link(parent, child)
	return nil
}

// attach preprocesses t against the owner and registers it in the arena.
// The caller places it in the sequence.
func (s *Structure) attach(t task.Task) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrStructure)
	}
	id := t.Base().ID()
	if _, exists := s.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	if err := t.Preprocess(s.owner); err != nil {
		return fmt.Errorf("attaching task %s: %w", id, err)
	}
	s.byID[id] = t
	return nil
}

func link(parent, child task.Task) {
	p, c := parent.Base(), child.Base()
	if !slices.Contains(p.ChildIDs, c.ID()) {
		p.ChildIDs = append(p.ChildIDs, c.ID())
	}
	if !slices.Contains(c.ParentIDs, p.ID()) {
		c.ParentIDs = append(c.ParentIDs, p.ID())
	}
}

func unlink(parent, child task.Task) {
	p, c := parent.Base(), child.Base()
	p.ChildIDs = slices.DeleteFunc(p.ChildIDs, func(id string) bool { return id == c.ID() })
	c.ParentIDs = slices.DeleteFunc(c.ParentIDs, func(id string) bool { return id == p.ID() })
}

// ResolveRelationships validates every task's links: all ids resolve, every
// edge is recorded on both endpoints and the graph is acyclic. It reports
// the first violation and never repairs anything.
func (s *Structure) ResolveRelationships() error {
	if err := s.checkReferences(); err != nil {
		return err
	}
	if err := s.checkSymmetry(); err != nil {
		return err
	}
	return s.checkAcyclic()
}

func (s *Structure) checkReferences() error {
	for _, t := range s.tasks {
		b := t.Base()
		for _, id := range b.ParentIDs {
			if _, ok := s.byID[id]; !ok {
				return fmt.Errorf("%w: task %s has unknown parent %s", ErrDanglingReference, b.ID(), id)
			}
		}
		for _, id := range b.ChildIDs {
			if _, ok := s.byID[id]; !ok {
				return fmt.Errorf("%w: task %s has unknown child %s", ErrDanglingReference, b.ID(), id)
			}
		}
	}
	return nil
}

func (s *Structure) checkSymmetry() error {
	for _, t := range s.tasks {
		b := t.Base()
		for _, id := range b.ParentIDs {
			if !slices.Contains(s.byID[id].Base().ChildIDs, b.ID()) {
				return fmt.Errorf("%w: task %s lists parent %s, which does not list it as a child", ErrAsymmetricLink, b.ID(), id)
			}
		}
		for _, id := range b.ChildIDs {
			if !slices.Contains(s.byID[id].Base().ParentIDs, b.ID()) {
				return fmt.Errorf("%w: task %s lists child %s, which does not list it as a parent", ErrAsymmetricLink, b.ID(), id)
			}
		}
	}
	return nil
}

func (s *Structure) checkAcyclic() error {
	var edges []toposort.Edge
	for _, t := range s.tasks {
		b := t.Base()
		if len(b.ParentIDs) == 0 {
			edges = append(edges, toposort.Edge{nil, b.ID()})
		}
		for _, id := range b.ParentIDs {
			if id == b.ID() {
				return fmt.Errorf("%w: task %s is its own parent", ErrCycle, id)
			}
			edges = append(edges, toposort.Edge{id, b.ID()})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	if n := len(sorted) - countNil(sorted); n != len(s.tasks) {
		return fmt.Errorf("%w: only %d of %d tasks are reachable from a root", ErrCycle, n, len(s.tasks))
	}
	return nil
}

func countNil(vals []any) int {
	n := 0
	for _, v := range vals {
		if v == nil {
			n++
		}
	}
	return n
}

// executionOrder returns the tasks in topological order, breaking ties by
// declared order. Relationships must already be resolved.
func (s *Structure) executionOrder() []task.Task {
	remaining := make(map[string]int, len(s.tasks))
	for _, t := range s.tasks {
		remaining[t.Base().ID()] = len(t.Base().ParentIDs)
	}

	order := make([]task.Task, 0, len(s.tasks))
	done := make(map[string]bool, len(s.tasks))
	for len(order) < len(s.tasks) {
		progressed := false
		for _, t := range s.tasks {
			id := t.Base().ID()
			if done[id] || remaining[id] > 0 {
				continue
			}
			done[id] = true
			order = append(order, t)
			for _, child := range t.Base().ChildIDs {
				remaining[child]--
			}
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	return order
}

// Run resolves relationships, then executes the tasks one at a time in
// topological order. It stops at the first failing task and returns the
// output task's output on success.
func (s *Structure) Run(ctx context.Context, args ...string) (artifact.Artifact, error) {
	return s.run(ctx, args, s.executionOrder)
}

func (s *Structure) run(ctx context.Context, args []string, order func() []task.Task) (artifact.Artifact, error) {
	start := time.Now()
	s.args = slices.Clone(args)
	for _, t := range s.tasks {
		t.Base().Reset()
	}

	if err := s.owner.ResolveRelationships(); err != nil {
		s.logger.Warn("invalid structure", "error", err)
		s.finish(start, nil, err)
		return nil, err
	}

	tasks := order()
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.Base().ID())
	}
	s.emit(events.StructureStartedEvent{StructureID: s.id, Kind: s.kind, TaskIDs: ids, Args: s.Args(), Timestamp: start})
	s.logger.Info("structure started", "kind", s.kind, "tasks", len(tasks))

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			s.finish(start, nil, err)
			return nil, err
		}

		b := t.Base()
		taskStart := time.Now()
		parentID := ""
		if len(b.ParentIDs) > 0 {
			parentID = b.ParentIDs[0]
		}
		s.emit(events.TaskStartedEvent{ID: b.ID(), Kind: task.Kind(t), ParentID: parentID, Timestamp: taskStart})
		s.logger.Debug("task started", "task_id", b.ID(), "kind", task.Kind(t))

		out, err := task.Execute(ctx, t)
		if err != nil {
			s.emit(events.TaskFailedEvent{ID: b.ID(), Err: err, Duration: time.Since(taskStart), Timestamp: time.Now()})
			s.progress(len(tasks), i, 1)
			s.logger.Warn("task failed", "task_id", b.ID(), "error", err)
			err = fmt.Errorf("task %s: %w", b.ID(), err)
			s.finish(start, nil, err)
			return nil, err
		}

		s.emit(events.TaskCompletedEvent{ID: b.ID(), Output: textOf(out), Duration: time.Since(taskStart), Timestamp: time.Now()})
		s.progress(len(tasks), i+1, 0)
		s.logger.Debug("task finished", "task_id", b.ID(), "duration", time.Since(taskStart))
	}

	var out artifact.Artifact
	if last := s.OutputTask(); last != nil {
		out = last.Base().Output()
	}
	s.finish(start, out, nil)
	return out, nil
}

func (s *Structure) progress(total, completed, failed int) {
	s.emit(events.PipelineProgressEvent{
		StructureID: s.id,
		Total:       total,
		Completed:   completed,
		Failed:      failed,
		Pending:     total - completed - failed,
		Timestamp:   time.Now(),
	})
}

func (s *Structure) finish(start time.Time, out artifact.Artifact, err error) {
	s.emit(events.StructureFinishedEvent{
		StructureID: s.id,
		Output:      textOf(out),
		Err:         err,
		Duration:    time.Since(start),
		Timestamp:   time.Now(),
	})
	if err == nil {
		s.logger.Info("structure finished", "duration", time.Since(start))
	}
}

func (s *Structure) emit(e events.Event) {
	if s.bus != nil {
		s.bus.Emit(e)
	}
}

func textOf(a artifact.Artifact) string {
	if a == nil {
		return ""
	}
	return a.ToText()
}
