package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

type openAIBackend struct {
	client   *openai.Client
	endpoint string
}

// NewOpenAIBackend targets any OpenAI-compatible endpoint, for example
// Ollama's own /v1 surface or a hosted gateway.
func NewOpenAIBackend(endpoint, apiKey string) Backend {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &openAIBackend{client: openai.NewClientWithConfig(cfg), endpoint: cfg.BaseURL}
}

func (b *openAIBackend) wrap(err error, model string) error {
	if unreachable(err) {
		return &UnavailableError{Service: "OpenAI-compatible server", Endpoint: b.endpoint, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: model '%s': %s", ErrModelNotFound, model, apiErr.Message)
	}
	return err
}

func (b *openAIBackend) Present(ctx context.Context, model string) (bool, error) {
	list, err := b.client.ListModels(ctx)
	if err != nil {
		return false, b.wrap(err, model)
	}
	for _, m := range list.Models {
		if m.ID == model {
			return true, nil
		}
	}
	return false, nil
}

// Pull is not part of the OpenAI API; a model the server does not list is unknown.
func (b *openAIBackend) Pull(ctx context.Context, model string) error {
	return fmt.Errorf("%w: model '%s' is not served by %s", ErrModelNotFound, model, b.endpoint)
}

func (b *openAIBackend) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	stream, err := b.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	})
	if err != nil {
		return b.wrap(err, req.Model)
	}
	defer stream.Close()

	start := time.Now()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.wrap(err, req.Model)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := Chunk{
			RunID:   req.RunID,
			Content: resp.Choices[0].Delta.Content,
			Partial: true,
			Latency: time.Since(start),
		}
		if resp.Usage != nil {
			chunk.PromptTokens = resp.Usage.PromptTokens
			chunk.CompletionTokens = resp.Usage.CompletionTokens
		}
		if err := consumer(chunk); err != nil {
			return err
		}
	}
	return consumer(Chunk{RunID: req.RunID, Partial: false, Latency: time.Since(start)})
}
