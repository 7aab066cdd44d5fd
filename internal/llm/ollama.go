package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaHint = "Run the server with `ollama serve`."

type ollamaBackend struct {
	endpoint string
	client   *http.Client
}

// NewOllamaBackend talks to an Ollama server. A nil client uses a client
// without timeout; summaries of long lectures can take minutes.
func NewOllamaBackend(endpoint string, client *http.Client) Backend {
	if client == nil {
		client = &http.Client{}
	}
	return &ollamaBackend{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaStreamResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Error           string `json:"error,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type ollamaPullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type ollamaPullStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (b *ollamaBackend) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, b.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		if unreachable(err) {
			return nil, &UnavailableError{Service: "Ollama", Endpoint: b.endpoint, Hint: ollamaHint, Err: err}
		}
		return nil, err
	}
	return resp, nil
}

// Present lists local models. A name without a tag matches its ":latest" variant.
func (b *ollamaBackend) Present(ctx context.Context, model string) (bool, error) {
	resp, err := b.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("%w: decode tags: %v", ErrMalformedResponse, err)
	}
	want := model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name == model || name == want {
			return true, nil
		}
	}
	return false, nil
}

// Pull blocks until the server reports "success" for model.
func (b *ollamaBackend) Pull(ctx context.Context, model string) error {
	resp, err := b.do(ctx, http.MethodPost, "/api/pull", ollamaPullRequest{Model: model, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: Ollama model '%s' does not exist: %s", ErrModelNotFound, model, readError(resp.Body, resp.Status))
	}

	scanner := bufio.NewScanner(resp.Body)
	var last string
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var status ollamaPullStatus
		if err := json.Unmarshal(line, &status); err != nil {
			return fmt.Errorf("%w: decode pull status: %v", ErrMalformedResponse, err)
		}
		if status.Error != "" {
			return fmt.Errorf("%w: Ollama model '%s' does not exist: %s", ErrModelNotFound, model, status.Error)
		}
		last = status.Status
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if last != "success" {
		return fmt.Errorf("%w: pull of '%s' ended with status %q", ErrMalformedResponse, model, last)
	}
	return nil
}

func (b *ollamaBackend) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	payload := ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: true,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := b.do(reqCtx, http.MethodPost, "/api/generate", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: Ollama model '%s' does not exist", ErrModelNotFound, req.Model)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama returned status %s: %s", resp.Status, readError(resp.Body, ""))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	start := time.Now()
	var promptTokens, completionTokens int
	done := false
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk ollamaStreamResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.EvalCount > 0 {
			completionTokens = chunk.EvalCount
		}
		if chunk.PromptEvalCount > 0 {
			promptTokens = chunk.PromptEvalCount
		}
		done = chunk.Done
		if err := consumer(Chunk{
			RunID:            req.RunID,
			Content:          chunk.Response,
			Partial:          !chunk.Done,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			Latency:          time.Since(start),
		}); err != nil {
			return err
		}
		if done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: stream ended before done marker", ErrMalformedResponse)
	}
	return nil
}

func readError(r io.Reader, fallback string) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return fallback
}
