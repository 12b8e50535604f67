package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohits-web03/chainforge/internal/config"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient uses Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	cfg    config.LLMConfig
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model, cfg: cfg}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		gc.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), gc)
	if err != nil {
		return "", wrap("gemini", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", wrap("gemini", fmt.Errorf("empty response"))
	}
	return text, nil
}
