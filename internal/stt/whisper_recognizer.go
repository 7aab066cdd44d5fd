package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loqalabs/lecsum/internal/config"
)

type whisperRecognizer struct {
	cmd    []string
	device string
}

type whisperOutput struct {
	Text     *string `json:"text"`
	Language string  `json:"language"`
}

// NewWhisperRecognizer drives the openai-whisper command line tool. The model
// is loaded by the tool on every call.
func NewWhisperRecognizer(cfg config.STTConfig) (Recognizer, error) {
	args, err := parseCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &whisperRecognizer{cmd: args, device: cfg.Device}, nil
}

func (r *whisperRecognizer) Transcribe(ctx context.Context, model, audioPath string) (TranscriptResult, error) {
	outDir, err := os.MkdirTemp("", "lecsum-whisper-*")
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	if r.device != "" {
		args = append(args, "--device", r.device)
	}
	if _, err := run(ctx, r.cmd, args...); err != nil {
		return TranscriptResult{}, err
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, stem+".json"))
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return TranscriptResult{}, fmt.Errorf("decode whisper output: %w", err)
	}
	if out.Text == nil {
		return TranscriptResult{}, fmt.Errorf("decode whisper output: missing text field")
	}
	return TranscriptResult{Text: *out.Text, Language: out.Language}, nil
}
