package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOllama(t *testing.T, handler http.HandlerFunc) Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaBackend(srv.URL, srv.Client())
}

func TestOllamaPresentMatchesLatestTag(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:8b"},{"name":"mistral:latest"}]}`)
	})
	ctx := context.Background()

	cases := map[string]bool{
		"llama3.1:8b":    true,
		"mistral":        true,
		"mistral:latest": true,
		"llama3.1":       false,
		"phi3":           false,
	}
	for model, want := range cases {
		got, err := backend.Present(ctx, model)
		if err != nil {
			t.Fatalf("present %s: %v", model, err)
		}
		if got != want {
			t.Fatalf("present %s: expected %v, got %v", model, want, got)
		}
	}
}

func TestOllamaPullSuccess(t *testing.T) {
	var pulled string
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaPullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode pull request: %v", err)
		}
		pulled = req.Model
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","completed":10,"total":100}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	if err := backend.Pull(context.Background(), "mistral"); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if pulled != "mistral" {
		t.Fatalf("expected mistral pull, got %q", pulled)
	}
}

func TestOllamaPullUnknownModel(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	})
	err := backend.Pull(context.Background(), "nonexistent-model-xyz")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "'nonexistent-model-xyz'") {
		t.Fatalf("expected model name in error, got %v", err)
	}
}

func TestOllamaPullTruncated(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"downloading"}`)
	})
	if err := backend.Pull(context.Background(), "mistral"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestOllamaGenerateAccumulates(t *testing.T) {
	var got ollamaRequest
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode generate request: %v", err)
		}
		fmt.Fprintln(w, `{"response":"The lecture ","done":false}`)
		fmt.Fprintln(w, `{"response":"covered graphs.","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true,"eval_count":7,"prompt_eval_count":12}`)
	})

	summarizer := NewSummarizer(backend, testLLMConfig())
	out, err := summarizer.Summarize(context.Background(), "run-1", "llama3.1:8b", "Summarize: ", "hello")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "The lecture covered graphs." {
		t.Fatalf("unexpected summary %q", out)
	}
	if got.Prompt != "Summarize: hello" || got.Model != "llama3.1:8b" || !got.Stream {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOllamaGenerateMissingDone(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
	})
	err := backend.Generate(context.Background(), Request{Model: "m"}, func(Chunk) error { return nil })
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestOllamaGenerateBadLine(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `not json`)
	})
	err := backend.Generate(context.Background(), Request{Model: "m"}, func(Chunk) error { return nil })
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestOllamaGenerateErrorPayload(t *testing.T) {
	backend := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model runner crashed"}`)
	})
	err := backend.Generate(context.Background(), Request{Model: "m"}, func(Chunk) error { return nil })
	if err == nil || errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected generic engine error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model runner crashed") {
		t.Fatalf("expected upstream message, got %v", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	backend := NewOllamaBackend(endpoint, nil)
	_, err := backend.Present(context.Background(), "llama3.1:8b")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "ollama serve") {
		t.Fatalf("expected actionable hint, got %v", err)
	}
}
