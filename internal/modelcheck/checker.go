// Package modelcheck verifies that the requested speech and generation models
// can be used before any audio is processed.
package modelcheck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loqalabs/lecsum/internal/llm"
	"github.com/loqalabs/lecsum/internal/stt"
)

type Checker struct {
	registry llm.Registry
	logger   *slog.Logger
}

func New(registry llm.Registry, logger *slog.Logger) *Checker {
	return &Checker{registry: registry, logger: logger.With(slog.String("component", "modelcheck"))}
}

// CheckSpeech is a local membership test; it never touches the network.
func (c *Checker) CheckSpeech(model string) error {
	return stt.CheckModel(model)
}

// CheckGeneration pulls model when it is not present locally. It blocks until
// the pull finishes.
func (c *Checker) CheckGeneration(ctx context.Context, model string) error {
	present, err := c.registry.Present(ctx, model)
	if err != nil {
		return err
	}
	if present {
		return nil
	}
	c.logger.Info("pulling generation model", slog.String("model", model))
	if err := c.registry.Pull(ctx, model); err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	c.logger.Info("generation model ready", slog.String("model", model))
	return nil
}

// Check runs both checks; the speech check runs first.
func (c *Checker) Check(ctx context.Context, speech, generation string) error {
	if err := c.CheckSpeech(speech); err != nil {
		return err
	}
	return c.CheckGeneration(ctx, generation)
}
