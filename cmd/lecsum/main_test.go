package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mockConfig = `whisper_model: tiny.en
ollama_model: llama3.1:8b
prompt: "Summarize: "
stt:
  mode: mock
llm:
  mode: mock
`

func setup(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "lecsum.yaml")
	if err := os.WriteFile(cfgPath, []byte(mockConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, cfgPath
}

func TestRunWritesOutputsSilently(t *testing.T) {
	dir, cfgPath := setup(t)
	audio := filepath.Join(dir, "lecture.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{audio, "-c", cfgPath}, &stdout, &stderr, nil)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Fatalf("expected no output, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
	for _, name := range []string{"lecture_transcript.txt", "lecture_summary.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestRunMissingAudio(t *testing.T) {
	dir, cfgPath := setup(t)
	missing := filepath.Join(dir, "missing.mp3")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--config", cfgPath, missing}, &stdout, &stderr, nil)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "Error: ") || !strings.Contains(stderr.String(), missing) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the config file, found %d entries", len(entries))
	}
}

func assertEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected entries %v, found %v", want, got)
	}
}

func TestRunMissingConfig(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "lecture.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", filepath.Join(dir, "absent.yaml"), audio}, &stdout, &stderr, nil)
	if code != 1 || !strings.HasPrefix(stderr.String(), "Error: ") {
		t.Fatalf("expected config error, got %d %q", code, stderr.String())
	}
	assertEntries(t, dir, "lecture.mp3")
}

func TestRunUnparsableConfigStopsBeforeOutputs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(cfgPath, []byte("whisper_model: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(dir, "lecture.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--config", cfgPath, audio}, &stdout, &stderr, nil)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "Error: ") || !strings.Contains(stderr.String(), cfgPath) {
		t.Fatalf("expected error naming the config file, got %q", stderr.String())
	}
	assertEntries(t, dir, "broken.yaml", "lecture.mp3")
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr, nil); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
	if code := run(context.Background(), []string{"--version"}, &stdout, &stderr, nil); code != 0 || strings.TrimSpace(stdout.String()) != version {
		t.Fatalf("expected version, got %d %q", code, stdout.String())
	}
}
