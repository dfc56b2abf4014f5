package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/aristath/griptape/internal/artifact"
)

const defaultCommand = "claude"

// CommandPromptDriver answers prompts by invoking a CLI agent, one
// subprocess per call. The first call opens a session with --session-id,
// later calls continue it with --resume.
type CommandPromptDriver struct {
	command      string
	extraArgs    []string
	workDir      string
	model        string
	systemPrompt string
	promptFormat string
	pm           *ProcessManager

	mu        sync.Mutex
	sessionID string
	started   bool
}

// commandResponse is the JSON printed by the CLI with --output-format json.
type commandResponse struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// NewCommandPromptDriver creates a CommandPromptDriver. pm may be nil, in
// which case subprocesses are not tracked.
func NewCommandPromptDriver(cfg Config, pm *ProcessManager) (*CommandPromptDriver, error) {
	if err := checkPromptFormat(cfg.PromptFormat); err != nil {
		return nil, err
	}

	command := cfg.Command
	if command == "" {
		command = defaultCommand
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}

	return &CommandPromptDriver{
		command:      command,
		extraArgs:    cfg.Args,
		workDir:      workDir,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		promptFormat: cfg.PromptFormat,
		pm:           pm,
		sessionID:    sessionID,
	}, nil
}

func (d *CommandPromptDriver) Model() string { return d.model }

// SessionID returns the CLI session identifier.
func (d *CommandPromptDriver) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

func (d *CommandPromptDriver) Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prompt, system := d.render(stack)
	args := d.buildArgs(prompt, system, d.started)

	cmd := newCommand(ctx, d.command, args...)
	cmd.Dir = d.workDir

	stdout, _, err := executeCommand(ctx, cmd, d.pm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.command, err)
	}

	text, sessionID := parseCommandOutput(stdout)
	if d.promptFormat == PromptFormatLlama3 {
		text = trimLlama3Output(text)
	}
	if sessionID != "" {
		d.sessionID = sessionID
	}
	d.started = true

	return artifact.NewText(text), nil
}

// render turns stack into the prompt argument and the system prompt flag.
// The Llama 3 format carries the system prompt inside the prompt itself.
func (d *CommandPromptDriver) render(stack PromptStack) (prompt, system string) {
	system = d.systemPrompt
	if s := stack.System(); s != "" {
		system = s
	}
	if d.promptFormat != PromptFormatLlama3 {
		return stack.Transcript(), system
	}

	if stack.System() == "" && system != "" {
		withSystem := PromptStack{Messages: []Message{{Role: RoleSystem, Content: system}}}
		withSystem.Messages = append(withSystem.Messages, stack.Messages...)
		stack = withSystem
	}
	return Llama3Instruct(stack), ""
}

func (d *CommandPromptDriver) buildArgs(prompt, system string, resume bool) []string {
	args := []string{"-p", prompt, "--output-format", "json"}
	if resume {
		args = append(args, "--resume", d.sessionID)
	} else {
		args = append(args, "--session-id", d.sessionID)
	}
	if d.model != "" {
		args = append(args, "--model", d.model)
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}
	return append(args, d.extraArgs...)
}

// parseCommandOutput extracts the answer from CLI output. Output that is not
// the expected JSON envelope is returned verbatim.
func parseCommandOutput(data []byte) (text string, sessionID string) {
	var cr commandResponse
	if err := json.Unmarshal(data, &cr); err != nil || len(cr.Result.Content) == 0 {
		return string(bytes.TrimSpace(data)), cr.SessionID
	}

	var b bytes.Buffer
	for _, item := range cr.Result.Content {
		if item.Type == "text" {
			b.WriteString(item.Text)
		}
	}
	return b.String(), cr.SessionID
}
