package llm

import (
	"context"
	"fmt"
	"strings"
)

// Sampling holds the generation parameters sent with every completion call.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// Named sampling presets consumed by agents via config.
var presets = map[string]Sampling{
	"fast":         {Temperature: 0.8, MaxTokens: 2000},
	"balanced":     {Temperature: 0.5, MaxTokens: 4000},
	"high_quality": {Temperature: 0.2, MaxTokens: 8000},
	"code_focused": {Temperature: 0.1, MaxTokens: 6000},
}

// Preset returns a named sampling preset.
func Preset(name string) (Sampling, bool) {
	s, ok := presets[strings.ToLower(name)]
	return s, ok
}

// DefaultSampling is used when an agent has no preset configured.
func DefaultSampling() Sampling {
	return presets["balanced"]
}

// Provider sends a (system prompt, user input, sampling) triple to a
// completion endpoint and returns the raw response text. Implementations own
// transport-level retry and error classification; anything they return as an
// error is either a *Error or a wrapped context error.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string, sampling Sampling) (string, error)
}

// ProviderKind is the closed set of supported backends.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGrok   ProviderKind = "grok"
	ProviderOllama ProviderKind = "ollama"
)

// Options configures provider construction.
type Options struct {
	Kind    ProviderKind
	Model   string
	APIKey  string // openai/grok
	BaseURL string // grok endpoint or ollama base URL
}

// New constructs a provider for the given backend.
func New(opts Options) (Provider, error) {
	switch opts.Kind {
	case ProviderOpenAI:
		return newOpenAI(opts.Model, opts.APIKey, opts.BaseURL), nil
	case ProviderGrok:
		base := opts.BaseURL
		if base == "" {
			base = "https://api.x.ai/v1"
		}
		return newGrok(opts.Model, opts.APIKey, base), nil
	case ProviderOllama:
		return newOllama(opts.Model, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, grok, ollama)", opts.Kind)
	}
}
