package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rohits-web03/chainforge/internal/config"
	"golang.org/x/oauth2"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIClient speaks the chat-completions protocol shared by OpenAI and
// compatible gateways. The API key travels as an OAuth2 bearer token.
type OpenAIClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(ctx context.Context, cfg config.LLMConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))
	hc.Timeout = cfg.Timeout

	return &OpenAIClient{baseURL: baseURL, model: model, httpClient: hc}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []openAIMessage
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(openAIRequest{Model: c.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrap("openai", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrap("openai", fmt.Errorf("read response: %w", err))
	}

	var out openAIResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(raw, &out) == nil && out.Error != nil {
			return "", wrap("openai", fmt.Errorf("status %d: %s", resp.StatusCode, out.Error.Message))
		}
		return "", wrap("openai", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", wrap("openai", fmt.Errorf("parse response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", wrap("openai", fmt.Errorf("no completion returned"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
