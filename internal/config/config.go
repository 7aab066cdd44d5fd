package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration document looked up in the default search paths.
const FileName = "lecsum.yaml"

const (
	DefaultWhisperModel = "base.en"
	DefaultOllamaModel  = "llama3.1:8b"
	DefaultPrompt       = "Summarize: "
)

// ErrNotFound is returned when an explicit configuration path does not name a readable file.
var ErrNotFound = errors.New("configuration file cannot be opened")

// Source records where a resolved configuration came from.
type Source struct {
	Path     string
	Defaults bool
}

func (s Source) String() string {
	if s.Defaults {
		return "built-in defaults"
	}
	return s.Path
}

// Error describes a configuration document that could not be read, parsed or validated.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("configuration file '%s': %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Settings are the per-run pipeline parameters.
type Settings struct {
	WhisperModel string `yaml:"whisper_model"`
	OllamaModel  string `yaml:"ollama_model"`
	Prompt       string `yaml:"prompt"`
}

// DefaultSettings returns the built-in pipeline parameters.
func DefaultSettings() Settings {
	return Settings{
		WhisperModel: DefaultWhisperModel,
		OllamaModel:  DefaultOllamaModel,
		Prompt:       DefaultPrompt,
	}
}

// Validate reports the first missing pipeline parameter.
func (s Settings) Validate() error {
	if s.WhisperModel == "" {
		return errors.New("whisper_model must not be empty")
	}
	if s.OllamaModel == "" {
		return errors.New("ollama_model must not be empty")
	}
	if s.Prompt == "" {
		return errors.New("prompt must not be empty")
	}
	return nil
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	MetricsPath  string `yaml:"metrics_path"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type STTConfig struct {
	Mode    string `yaml:"mode"` // whisper, exec, mock
	Command string `yaml:"command"`
	Device  string `yaml:"device"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // ollama, openai, exec, mock
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Command     string  `yaml:"command"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type PipelineConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	Settings `yaml:",inline"`

	RuntimeName string          `yaml:"runtime_name"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	STT         STTConfig       `yaml:"stt"`
	LLM         LLMConfig       `yaml:"llm"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Bus         BusConfig       `yaml:"bus"`
}

func Default() Config {
	return Config{
		Settings:    DefaultSettings(),
		RuntimeName: "lecsum",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
			MetricsPath:  "/metrics",
		},
		STT: STTConfig{
			Mode:    "whisper",
			Command: "whisper",
		},
		LLM: LLMConfig{
			Mode:     "ollama",
			Endpoint: "http://localhost:11434",
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 1,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

// SearchPaths returns the default configuration locations for the given
// working and home directories, in lookup order.
func SearchPaths(cwd, home string) []string {
	var paths []string
	if cwd != "" {
		paths = append(paths, filepath.Join(cwd, FileName))
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", FileName))
	}
	return paths
}

// DefaultSearchPaths resolves SearchPaths against the current process.
func DefaultSearchPaths() []string {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return SearchPaths(cwd, home)
}

// Resolve loads the configuration from explicit, or the first existing entry
// of search, or the built-in defaults, in that order.
func Resolve(explicit string, search []string) (Config, Source, error) {
	if explicit != "" {
		if !isFile(explicit) {
			return Config{}, Source{Path: explicit}, &Error{Path: explicit, Err: ErrNotFound}
		}
		cfg, err := loadFile(explicit)
		return cfg, Source{Path: explicit}, err
	}

	for _, path := range search {
		if isFile(path) {
			cfg, err := loadFile(path)
			return cfg, Source{Path: path}, err
		}
	}

	cfg := Default()
	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, Source{Defaults: true}, &Error{Err: err}
	}
	return cfg, Source{Defaults: true}, nil
}

// Load is the daemon entry point: an explicit path when given, otherwise the
// default search paths.
func Load(path string) (Config, error) {
	var search []string
	if path == "" {
		search = DefaultSearchPaths()
	}
	cfg, _, err := Resolve(path, search)
	return cfg, err
}

func loadFile(path string) (Config, error) {
	cfg := Default()
	// Pipeline settings are taken from the document only.
	cfg.Settings = Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &Error{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &Error{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LECSUM_RUNTIME_NAME")
	overrideString(&cfg.HTTP.Bind, "LECSUM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LECSUM_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LECSUM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LECSUM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LECSUM_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.MetricsPath, "LECSUM_TELEMETRY_METRICS_PATH")
	overrideString(&cfg.STT.Mode, "LECSUM_STT_MODE")
	overrideString(&cfg.STT.Command, "LECSUM_STT_COMMAND")
	overrideString(&cfg.STT.Device, "LECSUM_STT_DEVICE")
	overrideString(&cfg.LLM.Mode, "LECSUM_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "LECSUM_LLM_ENDPOINT")
	overrideString(&cfg.LLM.APIKey, "LECSUM_LLM_API_KEY")
	overrideString(&cfg.LLM.Command, "LECSUM_LLM_COMMAND")
	overrideInt(&cfg.LLM.MaxTokens, "LECSUM_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "LECSUM_LLM_TEMPERATURE")
	overrideInt(&cfg.Pipeline.MaxConcurrent, "LECSUM_PIPELINE_MAX_CONCURRENT")
	overrideBool(&cfg.Bus.Enabled, "LECSUM_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LECSUM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LECSUM_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LECSUM_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LECSUM_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LECSUM_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LECSUM_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LECSUM_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LECSUM_BUS_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.STT.Mode {
	case "whisper", "exec":
		if cfg.STT.Command == "" {
			return fmt.Errorf("stt.command must be set when mode=%s", cfg.STT.Mode)
		}
	case "mock":
	default:
		return errors.New("stt.mode must be one of whisper|exec|mock")
	}
	switch cfg.LLM.Mode {
	case "ollama", "openai":
		if cfg.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint must be set when mode=%s", cfg.LLM.Mode)
		}
	case "exec":
		if cfg.LLM.Command == "" {
			return errors.New("llm.command must be set when mode=exec")
		}
	case "mock":
	default:
		return errors.New("llm.mode must be one of ollama|openai|exec|mock")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.Pipeline.MaxConcurrent < 0 {
		return errors.New("pipeline.max_concurrent must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port == 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
