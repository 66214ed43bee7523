// Package llm wraps the OpenAI and Anthropic SDKs behind one small interface
// and implements the summarize and evaluate prompts on top of it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned by New for providers other than openai, anthropic and none.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Completer sends one system+user prompt pair and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New returns a Completer for opts.Provider. Provider "none", or a missing
// API key, yields a nil Completer so callers fall back to heuristics.
func New(opts Options) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" || provider == "none" || opts.APIKey == "" {
		return nil, nil
	}
	switch provider {
	case "openai":
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL), nil
	case "anthropic":
		return NewAnthropic(opts.APIKey, opts.Model, opts.BaseURL), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
}

// cleanJSONResponse strips code fences and any prose around a JSON object or array.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	open, closing := "{", "}"
	if obj, arr := strings.Index(content, "{"), strings.Index(content, "["); arr >= 0 && (obj < 0 || arr < obj) {
		open, closing = "[", "]"
	}
	start := strings.Index(content, open)
	end := strings.LastIndex(content, closing)
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
