package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/griptape/internal/driver"
)

// writeConfig writes a quiet YAML config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "griptape.yaml")
	body := "log:\n  level: error\nvector_store:\n  path: " + filepath.Join(dir, "vectors.db") + "\n" + extra
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunEchoPipeline(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := execute(t, "run", "echo", "hello there", "--config", cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "hello there" {
		t.Errorf("output = %q, want %q", out, "hello there")
	}
}

func TestRunShowTasks(t *testing.T) {
	cfg := writeConfig(t, `
pipelines:
  shout:
    tasks:
      - id: first
        type: prompt
        driver: echo
      - id: second
        type: prompt
        driver: echo
        input: "{{ upper .parent_output }}"
`)
	out, err := execute(t, "run", "shout", "quiet words", "--show-tasks", "--config", cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"== first (PromptTask) finished", "== second (PromptTask) finished", "QUIET WORDS"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunImagePipeline(t *testing.T) {
	out := filepath.Join(t.TempDir(), "kite.png")
	cfg := writeConfig(t, `
pipelines:
  draw:
    tasks:
      - type: image_generation
        driver: echo
        output_file: `+out+`
`)
	stdout, err := execute(t, "run", "draw", "a red kite", "--config", cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, "path: "+out) {
		t.Errorf("output = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("file is not a png: % x", data[:min(8, len(data))])
	}
}

func TestRunUnknownPipeline(t *testing.T) {
	cfg := writeConfig(t, "")
	if _, err := execute(t, "run", "nope", "--config", cfg); err == nil {
		t.Fatal("expected error for unknown pipeline")
	}
}

func TestValidate(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "validate", "--config", cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "config ok") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "validate", "echo", "--config", cfg)
	if err != nil {
		t.Fatalf("validate echo: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2", lines)
	}
	if !strings.Contains(lines[0], "parent=-") {
		t.Errorf("first task should have no parent: %q", lines[0])
	}
	if strings.Contains(lines[1], "parent=-") {
		t.Errorf("second task should have a parent: %q", lines[1])
	}
}

func TestValidateBadConfig(t *testing.T) {
	cfg := writeConfig(t, `
pipelines:
  broken:
    tasks:
      - type: prompt
        driver: missing
`)
	if _, err := execute(t, "validate", "--config", cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestChunk(t *testing.T) {
	cfg := writeConfig(t, "")
	file := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(file, []byte(strings.Repeat("abcd", 10)), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "chunk", file, "--max-tokens", "5", "--config", cfg)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	// 40 characters at 4 per token: a chunk closes as soon as it counts 5
	// tokens, which happens at 17 characters.
	if got := strings.Count(out, "--- chunk"); got != 3 {
		t.Errorf("chunks = %d, want 3:\n%s", got, out)
	}
	if !strings.Contains(out, "--- chunk 3 (2 tokens) ---") {
		t.Errorf("last chunk should hold the 6 leftover characters:\n%s", out)
	}
}

func TestChunkBadOverlap(t *testing.T) {
	cfg := writeConfig(t, "")
	file := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(file, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "chunk", file, "--max-tokens", "2", "--overlap", "2", "--config", cfg); err == nil {
		t.Fatal("expected error for overlap >= max tokens")
	}
}

func TestIngest(t *testing.T) {
	cfg := writeConfig(t, "")
	dir := t.TempDir()
	file := filepath.Join(dir, "people.json")
	if err := os.WriteFile(file, []byte(`[{"name":"ada"},{"name":"grace"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "store", "vectors.db")

	out, err := execute(t, "ingest", file, "--namespace", "people", "--db", db, "--config", cfg)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "stored 2 entries from 1 files") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// TestProcessManagerKillAllOnShutdown verifies that KillAll terminates
// tracked processes the way the run command does on a signal.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := driver.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}
	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", count)
	}
}
