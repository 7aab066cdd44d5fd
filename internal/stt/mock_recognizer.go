package stt

import (
	"context"
	"fmt"
	"path/filepath"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(ctx context.Context, model, audioPath string) (TranscriptResult, error) {
	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}
	return TranscriptResult{
		Text:     fmt.Sprintf("[mock %s transcript of %s]", model, filepath.Base(audioPath)),
		Language: "en",
	}, nil
}
