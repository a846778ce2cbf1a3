package core

import (
	"context"
	"fmt"
	"os"

	"github.com/NabidKabir/kura-final-project/config"
)

// NewLLMProvider creates an LLM provider from configuration. A missing API
// key is not an error: the workflow runs fully degraded (keyword
// classification, deterministic synthesis), so this returns (nil, nil) and
// callers treat a nil provider as "generation disabled".
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, nil
	}

	switch cfg.Provider {
	case "", "openai", "openai-compatible":
		return NewOpenAIProvider(cfg, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}

// NewCollaborators builds the concrete collaborator set the orchestrator
// runs against: classifier, locator, regulation table, and facility
// directory, all wired to the shared HTTP client and the (possibly nil)
// LLM provider.
func NewCollaborators(cfg *config.Config, llm LLMProvider) (Classifier, Locator, RegulationSource, FacilityFinder, error) {
	httpc := NewHTTPClient(cfg.LLM.Timeout, cfg.LLM.Retries, cfg.LLM.Backoff)

	classifier := NewClassifier(llm)
	locator := NewLocator(cfg.General, httpc)
	regs := NewRegulationTable(cfg.General.DefaultState)
	finder, err := NewFacilityDirectory()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to build facility directory: %w", err)
	}
	return classifier, locator, regs, finder, nil
}

// OpenAIProvider implements LLMProvider against any OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	cfg    config.LLMConfig
	apiKey string
	http   *HTTPClient
}

// NewOpenAIProvider creates a provider for the configured endpoint.
func NewOpenAIProvider(cfg config.LLMConfig, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:    cfg,
		apiKey: apiKey,
		http:   NewHTTPClient(cfg.Timeout, cfg.Retries, cfg.Backoff),
	}
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string { return p.cfg.Model }

// Generate produces a completion for the given system and user prompts.
func (p *OpenAIProvider) Generate(ctx context.Context, system, user string) (string, error) {
	out, _, _, err := p.GenerateWithTokens(ctx, system, user)
	return out, err
}

// GenerateWithTokens produces a completion and reports token usage.
func (p *OpenAIProvider) GenerateWithTokens(ctx context.Context, system, user string) (string, int64, int64, error) {
	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	msgs := make([]chatMsg, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMsg{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMsg{Role: "user", Content: user})

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	err := p.http.DoJSON(ctx, "POST", baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		chatReq{
			Model:       p.cfg.Model,
			Messages:    msgs,
			Temperature: p.cfg.Temperature,
			MaxTokens:   p.cfg.MaxTokens,
		}, &out)
	if err != nil {
		return "", 0, 0, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("chat completion returned no choices")
	}

	return out.Choices[0].Message.Content, int64(out.Usage.PromptTokens), int64(out.Usage.CompletionTokens), nil
}

// extractFirstJSON attempts to find the first top-level JSON object in a
// string. LLMs routinely wrap their JSON in prose or code fences; this
// strips all of that without regexes.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
