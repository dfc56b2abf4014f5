package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
	TaskID() string
}

// Topic constants
const (
	TopicTask      = "task"
	TopicStructure = "structure"
)

// Event type constants
const (
	EventTypeStructureStarted  = "structure.started"
	EventTypeStructureFinished = "structure.finished"
	EventTypePipelineProgress  = "structure.progress"
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskOutput        = "task.output"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
)

// StructureStartedEvent is published once relationships have been resolved
// and the first task is about to run.
type StructureStartedEvent struct {
	StructureID string
	Kind        string // "pipeline" or "structure"
	TaskIDs     []string
	Args        []string
	Timestamp   time.Time
}

func (e StructureStartedEvent) EventType() string { return EventTypeStructureStarted }
func (e StructureStartedEvent) Topic() string     { return TopicStructure }
func (e StructureStartedEvent) TaskID() string    { return "" }

// StructureFinishedEvent is published when a run ends, successfully or not.
// Err is nil on success.
type StructureFinishedEvent struct {
	StructureID string
	Output      string
	Err         error
	Duration    time.Duration
	Timestamp   time.Time
}

func (e StructureFinishedEvent) EventType() string { return EventTypeStructureFinished }
func (e StructureFinishedEvent) Topic() string     { return TopicStructure }
func (e StructureFinishedEvent) TaskID() string    { return "" }

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID        string
	Kind      string // e.g. "PromptTask"
	ParentID  string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) Topic() string     { return TopicTask }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent carries a fragment of streamed task output.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) Topic() string     { return TopicTask }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Output    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) Topic() string     { return TopicTask }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) Topic() string     { return TopicTask }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// PipelineProgressEvent is published after every task of a run.
type PipelineProgressEvent struct {
	StructureID string
	Total       int
	Completed   int
	Failed      int
	Pending     int
	Timestamp   time.Time
}

func (e PipelineProgressEvent) EventType() string { return EventTypePipelineProgress }
func (e PipelineProgressEvent) Topic() string     { return TopicStructure }
func (e PipelineProgressEvent) TaskID() string    { return "" }
