package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/llm"
)

// defaultPromptTemplate is used when an action does not configure one.
// {kind} and {char} expand from the triggering event.
const defaultPromptTemplate = "The ring reported a {kind} gesture. Acknowledge it in one short sentence."

// LLM invokes a text-generation provider in response to an event. The
// provider call is network-bound and potentially slow; the router's
// concurrency ceiling and timeout govern it.
type LLM struct {
	provider    llm.Provider
	model       string
	template    string
	temperature float64
}

// NewLLM builds an LLM executor. Options: provider (registry id, required),
// model (required), prompt (template), temperature.
func NewLLM(deps Deps, opts map[string]string) (Executor, error) {
	if deps.Providers == nil {
		return nil, fmt.Errorf("llm executor: no provider registry")
	}

	provider, err := deps.Providers.Get(opts["provider"])
	if err != nil {
		return nil, fmt.Errorf("llm executor: %w", err)
	}

	model := opts["model"]
	if model == "" {
		return nil, fmt.Errorf("llm executor: model is required")
	}

	template := opts["prompt"]
	if template == "" {
		template = defaultPromptTemplate
	}

	var temperature float64
	if raw := opts["temperature"]; raw != "" {
		temperature, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("llm executor: invalid temperature %q", raw)
		}
	}

	return &LLM{
		provider:    provider,
		model:       model,
		template:    template,
		temperature: temperature,
	}, nil
}

func (*LLM) ID() string { return "llm" }

// Execute expands the prompt template and runs one generation. The detail
// is the generated text, truncated for the outcome journal.
func (x *LLM) Execute(ctx context.Context, ev event.Semantic) (string, error) {
	prompt := strings.NewReplacer(
		"{kind}", ev.Kind.String(),
		"{char}", ev.Characteristic,
	).Replace(x.template)

	resp, err := x.provider.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Model:       x.model,
		Temperature: x.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate via %s: %w", x.provider.ID(), err)
	}

	text := strings.TrimSpace(resp.Text)
	if len(text) > 200 {
		text = text[:200] + "…"
	}
	return text, nil
}

func (x *LLM) Health(ctx context.Context) error {
	return x.provider.Health(ctx)
}
