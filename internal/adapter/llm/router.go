// Package llm routes model invocations to the provider that serves the
// requested model family.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Completer is the minimal surface a model provider exposes: one
// single-turn text completion against a named model.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Router dispatches prompts to a provider based on the model name and
// falls back to a default model when the caller has no preference.
type Router struct {
	anthropic    Completer
	openai       Completer
	static       Completer
	defaultModel string
}

// RouterConfig wires providers into a Router. Nil providers are allowed;
// routing to a missing provider returns an error at call time.
type RouterConfig struct {
	Anthropic    Completer
	OpenAI       Completer
	Static       Completer
	DefaultModel string
}

// NewRouter constructs a Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		anthropic:    cfg.Anthropic,
		openai:       cfg.OpenAI,
		static:       cfg.Static,
		defaultModel: cfg.DefaultModel,
	}
}

// Invoke sends the prompt to the provider serving modelHint. An empty
// hint selects the configured default model.
func (r *Router) Invoke(ctx context.Context, prompt, modelHint string) (string, error) {
	model := strings.TrimSpace(modelHint)
	if model == "" {
		model = r.defaultModel
	}
	if model == "" {
		return "", fmt.Errorf("no model requested and no default model configured")
	}

	completer, service := r.route(model)
	if completer == nil {
		return "", fmt.Errorf("no provider configured for model %q (service %s)", model, service)
	}

	text, err := completer.Complete(ctx, model, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", service, err)
	}
	return text, nil
}

// route picks the provider by model family prefix.
func (r *Router) route(model string) (Completer, string) {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return r.anthropic, "anthropic"
	case strings.HasPrefix(lower, "gpt") || strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4"):
		return r.openai, "openai"
	case strings.HasPrefix(lower, "static"):
		return r.static, "static"
	default:
		return r.anthropic, "anthropic"
	}
}
