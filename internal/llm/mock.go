package llm

import (
	"context"
	"strings"
	"time"
)

type mockBackend struct{}

func NewMockBackend() Backend { return &mockBackend{} }

func (m *mockBackend) Present(context.Context, string) (bool, error) { return true, nil }

func (m *mockBackend) Pull(context.Context, string) error { return nil }

func (m *mockBackend) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	content := "[mock summary for " + strings.TrimSpace(req.Prompt) + "]"
	return consumer(Chunk{
		RunID:   req.RunID,
		Content: content,
		Partial: false,
		Latency: 20 * time.Millisecond,
	})
}
