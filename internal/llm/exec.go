package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

type execBackend struct {
	cmd []string
}

type execResponse struct {
	Content          *string `json:"content"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
}

// NewExecBackend writes the request as JSON to the command's stdin and reads
// {"content": ...} from stdout. The command manages its own models.
func NewExecBackend(command string) (Backend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse llm command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("llm command empty")
	}
	return &execBackend{cmd: args}, nil
}

func (b *execBackend) Present(context.Context, string) (bool, error) { return true, nil }

func (b *execBackend) Pull(context.Context, string) error { return nil }

func (b *execBackend) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	payload := map[string]any{
		"model":       req.Model,
		"prompt":      req.Prompt,
		"system":      req.System,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	base := b.cmd[0]
	args := append([]string{}, b.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &UnavailableError{Service: "llm command", Endpoint: base, Err: err}
		}
		return fmt.Errorf("llm exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return fmt.Errorf("%w: decode llm exec response: %v", ErrMalformedResponse, err)
	}
	if resp.Content == nil {
		return fmt.Errorf("%w: llm exec response has no content", ErrMalformedResponse)
	}

	return consumer(Chunk{
		RunID:            req.RunID,
		Content:          *resp.Content,
		Partial:          false,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	})
}
