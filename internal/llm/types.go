package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/loqalabs/lecsum/internal/config"
)

var (
	// ErrUnavailable is returned when the generation service cannot be reached.
	ErrUnavailable = errors.New("generation service unavailable")
	// ErrModelNotFound is returned when the upstream registry does not know a model.
	ErrModelNotFound = errors.New("generation model not found")
	// ErrMalformedResponse is returned for undecodable or truncated engine output.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// Request describes a language model prompt.
type Request struct {
	RunID       string
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	RunID            string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// Registry reports which models a backend can serve and fetches missing ones.
type Registry interface {
	Present(ctx context.Context, model string) (bool, error)
	Pull(ctx context.Context, model string) error
}

// Backend is a generator with its model registry.
type Backend interface {
	Generator
	Registry
}

// UnavailableError carries an actionable hint for an unreachable service.
type UnavailableError struct {
	Service  string
	Endpoint string
	Hint     string
	Err      error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s is not running at %s.", e.Service, e.Endpoint)
	if e.Hint != "" {
		msg += " " + e.Hint
	}
	return msg
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// New builds the backend selected by cfg.Mode.
func New(cfg config.LLMConfig) (Backend, error) {
	switch cfg.Mode {
	case "ollama":
		return NewOllamaBackend(cfg.Endpoint, nil), nil
	case "openai":
		return NewOpenAIBackend(cfg.Endpoint, cfg.APIKey), nil
	case "exec":
		return NewExecBackend(cfg.Command)
	case "mock":
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unknown llm mode %q (supported: ollama, openai, exec, mock)", cfg.Mode)
	}
}

// unreachable reports whether err is a failure to open a connection.
func unreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
