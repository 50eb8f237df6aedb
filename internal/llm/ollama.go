package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultOllamaBaseURL is the stock local ollama endpoint.
const DefaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaProvider generates text through ollama's native REST API
// (/api/tags for discovery, /api/generate for completion).
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

// NewOllamaProvider creates a provider for a local ollama instance.
// An empty baseURL uses DefaultOllamaBaseURL.
func NewOllamaProvider(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OllamaProvider) ID() string          { return "ollama" }
func (p *OllamaProvider) DisplayName() string { return "Ollama (local)" }

// Health checks that the tags endpoint answers.
func (p *OllamaProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ollama health: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Models lists the locally available model tags, sorted and deduplicated.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ollama list models: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, m := range body.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Generate runs one non-streaming completion.
func (p *OllamaProvider) Generate(ctx context.Context, genReq Request) (Response, error) {
	payload := map[string]any{
		"model":  genReq.Model,
		"prompt": genReq.Prompt,
		"stream": false,
	}
	if genReq.Temperature > 0 {
		payload["options"] = map[string]any{"temperature": genReq.Temperature}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("ollama generate: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body struct {
		Model    string `json:"model"`
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("ollama generate: %w", err)
	}

	return Response{Text: body.Response, Model: body.Model}, nil
}
