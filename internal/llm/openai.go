package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider generates text through the OpenAI chat completions API.
// With a base URL it also covers OpenAI-compatible local servers (llama.cpp,
// vLLM and friends).
type OpenAIProvider struct {
	id     string
	name   string
	client openai.Client
}

// OpenAIOptions configures an OpenAIProvider.
type OpenAIOptions struct {
	// ID overrides the registry identifier (default "openai").
	ID      string
	APIKey  string
	BaseURL string
}

// NewOpenAIProvider creates a provider for the OpenAI API or any
// OpenAI-compatible endpoint.
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("openai provider: api key or base url is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	id := opts.ID
	if id == "" {
		id = "openai"
	}
	name := "OpenAI"
	if opts.BaseURL != "" {
		name = "OpenAI-compatible server"
	}

	return &OpenAIProvider{
		id:     id,
		name:   name,
		client: openai.NewClient(reqOpts...),
	}, nil
}

func (p *OpenAIProvider) ID() string          { return p.id }
func (p *OpenAIProvider) DisplayName() string { return p.name }

// Health lists models as a cheap reachability and credential check.
func (p *OpenAIProvider) Health(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai health: %w", err)
	}
	return nil
}

// Models returns the endpoint's model identifiers.
func (p *OpenAIProvider) Models(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}

	var ids []string
	for _, m := range page.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Generate runs one chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat: %w", err)
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return Response{Text: text, Model: resp.Model}, nil
}
