package stt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loqalabs/lecsum/internal/config"
)

type execRecognizer struct {
	cmd []string
}

type execResult struct {
	Text       *string `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence"`
}

// NewExecRecognizer runs cfg.Command with --audio and --model appended and
// expects a JSON object with a text field on stdout.
func NewExecRecognizer(cfg config.STTConfig) (Recognizer, error) {
	args, err := parseCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &execRecognizer{cmd: args}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, model, audioPath string) (TranscriptResult, error) {
	out, err := run(ctx, r.cmd, "--audio", audioPath, "--model", model)
	if err != nil {
		return TranscriptResult{}, err
	}

	var resp execResult
	if err := json.Unmarshal(out, &resp); err != nil {
		return TranscriptResult{}, fmt.Errorf("decode stt response: %w", err)
	}
	if resp.Text == nil {
		return TranscriptResult{}, fmt.Errorf("decode stt response: missing text field")
	}
	return TranscriptResult{Text: *resp.Text, Language: resp.Language, Confidence: resp.Confidence}, nil
}
