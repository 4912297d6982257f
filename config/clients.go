package config

import (
	"log/slog"

	"github.com/jpoz/venice/directory"
	"github.com/jpoz/venice/openai"
)

// NewClient builds the Venice client described by the api section.
func (c *Config) NewClient(logger *slog.Logger) *openai.Client {
	mods := []openai.Modifier{
		openai.WithLogger(logger),
		openai.WithBaseURL(c.API.BaseURL),
		openai.WithVeniceSystemPrompt(c.API.IncludeVeniceSystemPrompt),
	}
	if c.API.Key != "" {
		mods = append(mods, openai.WithAPIKey(c.API.Key))
	}
	if c.API.HTTPLogging {
		mods = append(mods, openai.WithHttpLogging())
	}
	return openai.New(mods...)
}

// NewDirectory loads directory.path, or returns the built-in directory when no
// path is set.
func (c *Config) NewDirectory() (*directory.Directory, error) {
	if c.Directory.Path == "" {
		return directory.Default(), nil
	}
	return directory.LoadFile(c.Directory.Path)
}
