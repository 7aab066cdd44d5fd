package llm

import (
	"context"
	"strings"

	"github.com/loqalabs/lecsum/internal/config"
)

// Summarizer turns a transcript into a summary with a single generation call.
type Summarizer struct {
	gen         Generator
	maxTokens   int
	temperature float64
}

func NewSummarizer(gen Generator, cfg config.LLMConfig) *Summarizer {
	return &Summarizer{gen: gen, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}
}

// Summarize sends prompt immediately followed by transcript. The input is not
// truncated or chunked.
func (s *Summarizer) Summarize(ctx context.Context, runID, model, prompt, transcript string) (string, error) {
	req := Request{
		RunID:       runID,
		Model:       model,
		Prompt:      prompt + transcript,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	var out strings.Builder
	err := s.gen.Generate(ctx, req, func(chunk Chunk) error {
		out.WriteString(chunk.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
