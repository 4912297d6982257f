// Package config loads the settings shared by the venice commands.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jpoz/venice"
)

const (
	EnvAPIKey  = "VENICE_API_KEY"
	EnvBaseURL = "VENICE_BASE_URL"
)

// Phase holds the model and sampling of one kind of request.
type Phase struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// Sampling converts the phase into request settings.
func (p Phase) Sampling() venice.Sampling {
	return venice.Sampling{
		Model:       p.Model,
		Temperature: venice.Float(p.Temperature),
		MaxTokens:   p.MaxTokens,
	}
}

// Config holds the complete configuration
type Config struct {
	API struct {
		BaseURL                   string `yaml:"base_url"`
		Key                       string `yaml:"key"`
		IncludeVeniceSystemPrompt bool   `yaml:"include_venice_system_prompt"`
		HTTPLogging               bool   `yaml:"http_logging"`
	} `yaml:"api"`

	// ToolPhase is the first request, made with tools attached.
	ToolPhase Phase `yaml:"tool_phase"`
	// FinalPhase is the request made after tool results are appended.
	FinalPhase   Phase  `yaml:"final_phase"`
	SystemPrompt string `yaml:"system_prompt"`

	Chat struct {
		Phase        `yaml:",inline"`
		SystemPrompt string `yaml:"system_prompt"`
	} `yaml:"chat"`

	Directory struct {
		Path string `yaml:"path"`
	} `yaml:"directory"`

	Logging Logging `yaml:"logging"`

	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.BaseURL = "https://api.venice.ai/api/v1"

	cfg.ToolPhase = Phase{Model: "llama-3.3-70b", Temperature: 0.3, MaxTokens: 500}
	cfg.FinalPhase = Phase{Model: "llama-3.2-3b", Temperature: 0.5, MaxTokens: 500}
	cfg.SystemPrompt = "You are a technical assistant who MUST use the get_user_info tool before answering questions about users. The database only contains Jean Dupont."

	cfg.Chat.Phase = Phase{Model: "llama-3.2-3b", Temperature: 0.7, MaxTokens: 500}
	cfg.Chat.SystemPrompt = "Answer in English concisely"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Web.Host = "localhost"
	cfg.Web.Port = 7860

	return cfg
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.API.Key = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	for name, phase := range map[string]Phase{
		"tool_phase":  c.ToolPhase,
		"final_phase": c.FinalPhase,
		"chat":        c.Chat.Phase,
	} {
		if phase.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", name))
		}
		if phase.Temperature < 0 || phase.Temperature > 2 {
			errs = append(errs, fmt.Errorf("%s.temperature must be between 0 and 2", name))
		}
		if phase.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("%s.max_tokens must not be negative", name))
		}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port out of range: %d", c.Web.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the web listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return l, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}

// NewLogger builds a slog.Logger writing to w.
func NewLogger(w io.Writer, cfg Logging) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: unknown log format %q", cfg.Format)
	}
}
