package driver

import (
	"fmt"
	"strings"
)

// Prompt formats for drivers that send a whole stack as one prompt string.
const (
	PromptFormatTranscript = "transcript"
	PromptFormatLlama3     = "llama3"
)

// Llama 3 Instruct control tokens.
const (
	llama3BeginOfText = "<|begin_of_text|>"
	llama3StartHeader = "<|start_header_id|>"
	llama3EndHeader   = "<|end_header_id|>"
	llama3EndOfTurn   = "<|eot_id|>"
)

// Llama3Instruct renders stack in the Llama 3 Instruct chat format, ending
// with an open assistant header for the model to complete.
func Llama3Instruct(stack PromptStack) string {
	var b strings.Builder
	b.WriteString(llama3BeginOfText)
	for _, m := range stack.Messages {
		writeLlama3Header(&b, m.Role)
		b.WriteString(m.Content)
		b.WriteString(llama3EndOfTurn)
	}
	writeLlama3Header(&b, RoleAssistant)
	return b.String()
}

func writeLlama3Header(b *strings.Builder, role string) {
	b.WriteString(llama3StartHeader)
	b.WriteString(role)
	b.WriteString(llama3EndHeader)
	b.WriteString("\n\n")
}

// trimLlama3Output cuts a completion at the first end-of-turn token.
func trimLlama3Output(out string) string {
	if i := strings.Index(out, llama3EndOfTurn); i >= 0 {
		out = out[:i]
	}
	return strings.TrimSpace(out)
}

func checkPromptFormat(format string) error {
	switch format {
	case "", PromptFormatTranscript, PromptFormatLlama3:
		return nil
	default:
		return fmt.Errorf("unknown prompt format %q", format)
	}
}
