package stt

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/loqalabs/lecsum/internal/config"
)

var (
	// ErrUnsupportedModel is returned for a model name outside SupportedModels.
	ErrUnsupportedModel = errors.New("whisper model does not exist")
	// ErrUnavailable is returned when the speech engine cannot be started.
	ErrUnavailable = errors.New("speech engine unavailable")
)

// SupportedModels lists the model identifiers accepted by the whisper engine.
var SupportedModels = []string{
	"tiny.en", "tiny",
	"base.en", "base",
	"small.en", "small",
	"medium.en", "medium",
	"large-v1", "large-v2", "large-v3", "large",
	"large-v3-turbo", "turbo",
}

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Language   string
	Confidence float64
}

// Recognizer abstracts STT backends.
type Recognizer interface {
	Transcribe(ctx context.Context, model, audioPath string) (TranscriptResult, error)
}

// CheckModel reports whether model is a supported identifier. It never touches the network.
func CheckModel(model string) error {
	if !slices.Contains(SupportedModels, model) {
		return fmt.Errorf("%w: '%s'", ErrUnsupportedModel, model)
	}
	return nil
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "whisper":
		return NewWhisperRecognizer(cfg)
	case "exec":
		return NewExecRecognizer(cfg)
	case "mock":
		return NewMockRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q (supported: whisper, exec, mock)", cfg.Mode)
	}
}
