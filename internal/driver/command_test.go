package driver

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mock-cli.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestCommandPromptDriver_BuildArgs(t *testing.T) {
	d, err := NewCommandPromptDriver(Config{
		Type:         "command",
		SessionID:    "sess-1",
		Model:        "sonnet",
		SystemPrompt: "be brief",
		Args:         []string{"--verbose"},
		WorkDir:      t.TempDir(),
	}, nil)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}

	tests := []struct {
		name   string
		resume bool
		want   []string
	}{
		{
			name: "first call",
			want: []string{"-p", "hi", "--output-format", "json", "--session-id", "sess-1", "--model", "sonnet", "--system-prompt", "be brief", "--verbose"},
		},
		{
			name:   "resume",
			resume: true,
			want:   []string{"-p", "hi", "--output-format", "json", "--resume", "sess-1", "--model", "sonnet", "--system-prompt", "be brief", "--verbose"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.buildArgs("hi", "be brief", tt.resume)
			if !slices.Equal(got, tt.want) {
				t.Errorf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandPromptDriver_GeneratesSessionID(t *testing.T) {
	d, err := NewCommandPromptDriver(Config{WorkDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}
	if len(d.SessionID()) != 36 {
		t.Errorf("Expected UUID session id, got %q", d.SessionID())
	}
	if d.command != defaultCommand {
		t.Errorf("Expected default command %q, got %q", defaultCommand, d.command)
	}
}

func TestParseCommandOutput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantText    string
		wantSession string
	}{
		{
			name:        "json envelope",
			input:       `{"session_id":"abc","result":{"content":[{"type":"text","text":"Hello "},{"type":"tool","text":"x"},{"type":"text","text":"world"}]}}`,
			wantText:    "Hello world",
			wantSession: "abc",
		},
		{
			name:     "plain text",
			input:    "just text\n",
			wantText: "just text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, session := parseCommandOutput([]byte(tt.input))
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if session != tt.wantSession {
				t.Errorf("session = %q, want %q", session, tt.wantSession)
			}
		})
	}
}

func TestCommandPromptDriver_Run(t *testing.T) {
	// The script echoes the flag following -p and records whether it resumed.
	script := writeScript(t, `
prompt=""
mode="new"
while [ $# -gt 0 ]; do
  case "$1" in
    -p) prompt="$2"; shift ;;
    --resume) mode="resume" ;;
  esac
  shift
done
printf '{"session_id":"from-cli","result":{"content":[{"type":"text","text":"%s:%s"}]}}' "$mode" "$prompt"
`)

	pm := NewProcessManager()
	d, err := NewCommandPromptDriver(Config{Command: script, WorkDir: t.TempDir()}, pm)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}

	var stack PromptStack
	stack.AddUser("ping")

	out, err := d.Run(context.Background(), stack)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Value != "new:ping" {
		t.Errorf("first Run = %q, want %q", out.Value, "new:ping")
	}
	if d.SessionID() != "from-cli" {
		t.Errorf("SessionID = %q, want from-cli", d.SessionID())
	}

	out, err = d.Run(context.Background(), stack)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(out.Value, "resume:") {
		t.Errorf("second Run = %q, want resume prefix", out.Value)
	}
	if pm.Count() != 0 {
		t.Errorf("Expected no tracked processes after Run, got %d", pm.Count())
	}
}

func TestCommandPromptDriver_RunFailure(t *testing.T) {
	script := writeScript(t, "echo 'no credentials' >&2\nexit 1\n")
	d, err := NewCommandPromptDriver(Config{Command: script, WorkDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}

	var stack PromptStack
	stack.AddUser("ping")
	if _, err := d.Run(context.Background(), stack); err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Errorf("Expected error mentioning stderr, got %v", err)
	}
}
