package task

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/driver"
)

// fakeStructure is a minimal owner: an id arena and a fixed context.
type fakeStructure struct {
	tasks   map[string]Task
	ctx     Context
	outputs []string
}

func newFakeStructure(ctx Context, tasks ...Task) *fakeStructure {
	s := &fakeStructure{tasks: make(map[string]Task), ctx: ctx}
	for _, t := range tasks {
		s.tasks[t.Base().ID()] = t
		t.Preprocess(s)
	}
	return s
}

func (s *fakeStructure) TaskByID(id string) (Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

func (s *fakeStructure) Context(t Task) Context {
	out := Context{"self": t.Base().ID()}
	for k, v := range s.ctx {
		out[k] = v
	}
	return out
}

func (s *fakeStructure) PublishOutput(taskID, line string) {
	s.outputs = append(s.outputs, taskID+":"+line)
}

func constTask(value string, opts ...Option) *FuncTask {
	return NewFuncTask(func(ctx context.Context, t *FuncTask) (artifact.Artifact, error) {
		return artifact.NewText(value), nil
	}, opts...)
}

func TestNewBaseTask_ID(t *testing.T) {
	a := NewBaseTask()
	b := NewBaseTask()
	if len(a.ID()) != 32 || strings.Contains(a.ID(), "-") {
		t.Errorf("expected 32 hex chars, got %q", a.ID())
	}
	if a.ID() == b.ID() {
		t.Error("expected unique ids")
	}
	if c := NewBaseTask(WithID("fixed")); c.ID() != "fixed" {
		t.Errorf("WithID: got %q", c.ID())
	}
}

func TestPreprocess_SingleShot(t *testing.T) {
	task := constTask("x")
	s := newFakeStructure(nil)

	if err := task.Preprocess(s); err != nil {
		t.Fatalf("first Preprocess: %v", err)
	}
	if task.Structure() != s {
		t.Error("expected structure to be captured")
	}
	if err := task.Preprocess(s); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Preprocess: expected ErrAlreadyAttached, got %v", err)
	}
	if err := constTask("y").Preprocess(nil); err == nil {
		t.Error("expected error for nil structure")
	}
}

func TestParentsChildren_ResolveLazily(t *testing.T) {
	a := constTask("a", WithID("a"))
	b := constTask("b", WithID("b"))
	newFakeStructure(nil, a, b)

	a.ChildIDs = []string{"b", "missing"}
	b.ParentIDs = []string{"a"}

	children := a.Children()
	if len(children) != 1 || children[0] != Task(b) {
		t.Errorf("Children() = %v", children)
	}
	parents := b.Parents()
	if len(parents) != 1 || parents[0] != Task(a) {
		t.Errorf("Parents() = %v", parents)
	}

	unattached := constTask("u")
	unattached.ParentIDs = []string{"a"}
	if got := unattached.Parents(); len(got) != 0 {
		t.Errorf("unattached Parents() = %v", got)
	}
}

func TestFullContext(t *testing.T) {
	a := constTask("a", WithID("a"))
	if ctx := a.FullContext(); len(ctx) != 0 {
		t.Errorf("unattached FullContext() = %v", ctx)
	}

	newFakeStructure(Context{"k": "v"}, a)
	ctx := a.FullContext()
	if ctx["self"] != "a" || ctx["k"] != "v" {
		t.Errorf("FullContext() = %v", ctx)
	}
}

func TestExecute(t *testing.T) {
	ok := constTask("done")
	out, err := Execute(context.Background(), ok)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.ToText() != "done" || ok.Output().ToText() != "done" {
		t.Errorf("output = %v", ok.Output())
	}
	if ok.State() != StateFinished {
		t.Errorf("state = %s, want finished", ok.State())
	}

	boom := errors.New("boom")
	failing := NewFuncTask(func(ctx context.Context, t *FuncTask) (artifact.Artifact, error) {
		return nil, boom
	})
	out, err = Execute(context.Background(), failing)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if failing.State() != StateFailed {
		t.Errorf("state = %s, want failed", failing.State())
	}
	errArt, isErr := failing.Output().(*artifact.ErrorArtifact)
	if !isErr || out != failing.Output() || errArt.Value != "boom" {
		t.Errorf("expected ErrorArtifact output, got %#v", failing.Output())
	}

	failing.Reset()
	if failing.State() != StatePending || failing.Output() != nil {
		t.Errorf("Reset left state=%s output=%v", failing.State(), failing.Output())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		task Task
		want string
	}{
		{constTask("x"), "FuncTask"},
		{NewPromptTask("", nil), "PromptTask"},
		{NewTextQueryTask("", nil, ""), "TextQueryTask"},
	}
	for _, tt := range tests {
		if got := Kind(tt.task); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateExecuting.String() != "executing" || State(42).String() != "State(42)" {
		t.Error("unexpected State strings")
	}
}

func TestRender(t *testing.T) {
	ctx := Context{
		"args":          []string{"first", "second"},
		"parent_output": nil,
		"name":          "gopher",
	}

	tests := []struct {
		name    string
		tmpl    string
		want    string
		wantErr bool
	}{
		{name: "default input", tmpl: "", want: "first"},
		{name: "index", tmpl: "{{ index .args 1 }}", want: "second"},
		{name: "arg out of range", tmpl: "[{{ arg .args 5 }}]", want: "[]"},
		{name: "default func on nil", tmpl: `{{ default "none" .parent_output }}`, want: "none"},
		{name: "default func on value", tmpl: `{{ default "none" .name }}`, want: "gopher"},
		{name: "funcs", tmpl: `{{ upper .name }} {{ join .args "," }}`, want: "GOPHER first,second"},
		{name: "parse error", tmpl: "{{ .args", wantErr: true},
		{name: "exec error", tmpl: "{{ index .args 9 }}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, ctx)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}

	if got, err := Render("", Context{}); err != nil || got != "" {
		t.Errorf("default input without args = %q, %v", got, err)
	}
}

// plainDriver implements only PromptDriver.
type plainDriver struct {
	stack driver.PromptStack
}

func (d *plainDriver) Model() string { return "plain" }

func (d *plainDriver) Run(ctx context.Context, stack driver.PromptStack) (*artifact.TextArtifact, error) {
	d.stack = stack
	return artifact.NewText("reply to " + stack.LastUser()), nil
}

func TestPromptTask_Run(t *testing.T) {
	d := &plainDriver{}
	pt := NewPromptTask("say {{ .word }}", d, WithID("p"))
	pt.SystemPrompt = "be nice"
	s := newFakeStructure(Context{"word": "hi"}, pt)

	out, err := pt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ToText() != "reply to say hi" {
		t.Errorf("Run = %q", out.ToText())
	}
	if d.stack.System() != "be nice" {
		t.Errorf("system prompt = %q", d.stack.System())
	}
	if len(s.outputs) != 1 || s.outputs[0] != "p:reply to say hi" {
		t.Errorf("published = %v", s.outputs)
	}
}

func TestPromptTask_Streams(t *testing.T) {
	pt := NewPromptTask("{{ .word }}", driver.NewEchoPromptDriver(), WithID("p"))
	s := newFakeStructure(Context{"word": "one two"}, pt)

	out, err := pt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ToText() != "one two" {
		t.Errorf("Run = %q", out.ToText())
	}
	want := []string{"p:one ", "p:two"}
	if len(s.outputs) != 2 || s.outputs[0] != want[0] || s.outputs[1] != want[1] {
		t.Errorf("published = %q, want %q", s.outputs, want)
	}
}

func TestPromptTask_Errors(t *testing.T) {
	if _, err := NewPromptTask("x", nil).Run(context.Background()); !errors.Is(err, ErrNoDriver) {
		t.Errorf("expected ErrNoDriver, got %v", err)
	}

	pt := NewPromptTask("{{ .broken", &plainDriver{})
	newFakeStructure(nil, pt)
	if _, err := pt.Run(context.Background()); err == nil {
		t.Error("expected template error")
	}
}

// stubEngine answers every query with a fixed prefix.
type stubEngine struct {
	query, namespace string
}

func (e *stubEngine) Query(ctx context.Context, query, namespace string) (*artifact.TextArtifact, error) {
	e.query, e.namespace = query, namespace
	return artifact.NewText("answer: " + query), nil
}

func (e *stubEngine) LoadArtifacts(ctx context.Context, namespace string) ([]*artifact.TextArtifact, error) {
	return nil, nil
}

func (e *stubEngine) UpsertTextArtifact(ctx context.Context, a *artifact.TextArtifact, namespace string) (string, error) {
	return "", nil
}

func (e *stubEngine) UpsertTextArtifacts(ctx context.Context, arts []*artifact.TextArtifact, namespace string) ([]string, error) {
	return nil, nil
}

func TestTextQueryTask_Run(t *testing.T) {
	e := &stubEngine{}
	qt := NewTextQueryTask("what is {{ arg .args 0 }}?", e, "docs")
	newFakeStructure(Context{"args": []string{"go"}}, qt)

	out, err := qt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ToText() != "answer: what is go?" || e.namespace != "docs" {
		t.Errorf("Run = %q (namespace %q)", out.ToText(), e.namespace)
	}

	if _, err := NewTextQueryTask("x", nil, "").Run(context.Background()); !errors.Is(err, ErrNoDriver) {
		t.Errorf("expected ErrNoDriver, got %v", err)
	}
}

func TestFuncTask_NilFn(t *testing.T) {
	if _, err := (&FuncTask{BaseTask: NewBaseTask()}).Run(context.Background()); err == nil {
		t.Error("expected error for nil Fn")
	}
}
