package driver

import (
	"context"
	"testing"
)

func TestLlama3Instruct(t *testing.T) {
	var stack PromptStack
	stack.AddSystem("foo")
	stack.AddUser("bar")

	want := "<|begin_of_text|>" +
		"<|start_header_id|>system<|end_header_id|>\n\nfoo<|eot_id|>" +
		"<|start_header_id|>user<|end_header_id|>\n\nbar<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\n"
	if got := Llama3Instruct(stack); got != want {
		t.Errorf("Llama3Instruct() =\n%q\nwant\n%q", got, want)
	}
}

func TestTrimLlama3Output(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello<|eot_id|>", "hello"},
		{"hello<|eot_id|><|start_header_id|>user", "hello"},
		{"  no terminator \n", "no terminator"},
	}
	for _, tt := range tests {
		if got := trimLlama3Output(tt.in); got != tt.want {
			t.Errorf("trimLlama3Output(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandPromptDriver_Llama3Render(t *testing.T) {
	d, err := NewCommandPromptDriver(Config{PromptFormat: PromptFormatLlama3, SystemPrompt: "be brief", WorkDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}

	var stack PromptStack
	stack.AddUser("hi")
	prompt, system := d.render(stack)
	if system != "" {
		t.Errorf("system = %q, want it folded into the prompt", system)
	}
	want := "<|begin_of_text|>" +
		"<|start_header_id|>system<|end_header_id|>\n\nbe brief<|eot_id|>" +
		"<|start_header_id|>user<|end_header_id|>\n\nhi<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\n"
	if prompt != want {
		t.Errorf("prompt = %q, want %q", prompt, want)
	}
	if len(stack.Messages) != 1 {
		t.Errorf("render modified the caller's stack: %+v", stack.Messages)
	}
}

func TestCommandPromptDriver_Llama3Run(t *testing.T) {
	script := writeScript(t, `
sys="none"
while [ $# -gt 0 ]; do
  case "$1" in
    --system-prompt) sys="$2"; shift ;;
  esac
  shift
done
printf 'sys=%s<|eot_id|><|start_header_id|>user' "$sys"
`)
	d, err := NewCommandPromptDriver(Config{Command: script, PromptFormat: PromptFormatLlama3, SystemPrompt: "x", WorkDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewCommandPromptDriver: %v", err)
	}

	var stack PromptStack
	stack.AddUser("ping")
	out, err := d.Run(context.Background(), stack)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Value != "sys=none" {
		t.Errorf("Run = %q, want %q", out.Value, "sys=none")
	}
}

func TestCommandPromptDriver_UnknownFormat(t *testing.T) {
	if _, err := NewCommandPromptDriver(Config{PromptFormat: "mistral", WorkDir: t.TempDir()}, nil); err == nil {
		t.Error("expected error for unknown prompt format")
	}
}
