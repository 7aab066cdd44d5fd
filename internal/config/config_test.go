package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg, src, err := Resolve("", SearchPaths(filepath.Join(tmp, "cwd"), filepath.Join(tmp, "home")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !src.Defaults {
		t.Fatalf("expected built-in defaults, got %s", src)
	}
	want := Settings{WhisperModel: "base.en", OllamaModel: "llama3.1:8b", Prompt: "Summarize: "}
	if cfg.Settings != want {
		t.Fatalf("expected %+v, got %+v", want, cfg.Settings)
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err := Resolve(path, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) || cfgErr.Path != path {
		t.Fatalf("expected *Error for %s, got %v", path, err)
	}
}

func TestResolveExplicitInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "whisper_model: [unterminated\n")
	if _, _, err := Resolve(path, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveExplicitIgnoresSearchPaths(t *testing.T) {
	tmp := t.TempDir()
	local := writeFile(t, tmp, "cwd/lecsum.yaml", "whisper_model: tiny\nollama_model: a\nprompt: p\n")
	explicit := filepath.Join(tmp, "nope.yaml")
	if _, _, err := Resolve(explicit, []string{local}); err == nil {
		t.Fatal("expected explicit path failure without fallback")
	}
}

func TestResolveSearchOrder(t *testing.T) {
	tmp := t.TempDir()
	cwd := filepath.Join(tmp, "cwd")
	home := filepath.Join(tmp, "home")
	writeFile(t, home, ".config/lecsum.yaml", "whisper_model: small\nollama_model: home-model\nprompt: \"home: \"\n")

	cfg, src, err := Resolve("", SearchPaths(cwd, home))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OllamaModel != "home-model" {
		t.Fatalf("expected home config, got %+v", cfg.Settings)
	}
	if src.Path != filepath.Join(home, ".config", FileName) {
		t.Fatalf("unexpected source %s", src)
	}

	writeFile(t, cwd, "lecsum.yaml", "whisper_model: tiny.en\nollama_model: local-model\nprompt: \"local: \"\n")
	cfg, _, err = Resolve("", SearchPaths(cwd, home))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OllamaModel != "local-model" || cfg.WhisperModel != "tiny.en" || cfg.Prompt != "local: " {
		t.Fatalf("expected working directory config to win, got %+v", cfg.Settings)
	}
}

func TestResolveDoesNotMergeSettings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "partial.yaml", "whisper_model: tiny\nollama_model: mistral\n")
	_, _, err := Resolve(path, nil)
	if err == nil {
		t.Fatal("expected missing prompt to fail validation")
	}
}

func TestResolveKeepsOperationalDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lecsum.yaml", "whisper_model: tiny\nollama_model: mistral\nprompt: \"TL;DR \"\nhttp:\n  port: 9000\n")
	cfg, _, err := Resolve(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.LLM.Endpoint != "http://localhost:11434" {
		t.Fatalf("expected default llm endpoint, got %s", cfg.LLM.Endpoint)
	}
	if cfg.STT.Mode != "whisper" {
		t.Fatalf("expected default stt mode, got %s", cfg.STT.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LECSUM_HTTP_PORT", "9100")
	t.Setenv("LECSUM_LLM_ENDPOINT", "http://gpu-box:11434")
	t.Setenv("LECSUM_LLM_TEMPERATURE", "0.2")
	t.Setenv("LECSUM_PIPELINE_MAX_CONCURRENT", "3")
	t.Setenv("LECSUM_BUS_ENABLED", "true")
	t.Setenv("LECSUM_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, _, err := Resolve("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.LLM.Endpoint != "http://gpu-box:11434" {
		t.Fatalf("expected endpoint override, got %s", cfg.LLM.Endpoint)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.LLM.Temperature)
	}
	if cfg.Pipeline.MaxConcurrent != 3 {
		t.Fatalf("expected max concurrent override, got %d", cfg.Pipeline.MaxConcurrent)
	}
	if !cfg.Bus.Enabled || len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected bus overrides, got %+v", cfg.Bus)
	}
	if cfg.Settings != DefaultSettings() {
		t.Fatalf("settings must not be affected by env overrides, got %+v", cfg.Settings)
	}
}

func TestValidateModes(t *testing.T) {
	cfg := Default()
	cfg.LLM.Mode = "gemini"
	if err := validate(cfg); err == nil {
		t.Fatal("expected unsupported llm mode error")
	}

	cfg = Default()
	cfg.STT.Mode = "exec"
	cfg.STT.Command = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected missing stt command error")
	}

	cfg = Default()
	cfg.Prompt = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected empty prompt error")
	}
}
