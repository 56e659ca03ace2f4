package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash-lite"

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	// BaseURL overrides the API endpoint; empty uses the public Gemini API.
	BaseURL string
}

// GeminiCompleter calls the Gemini API through the genai SDK.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiCompleter{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, req Request) (Completion, error) {
	temperature := c.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if strings.TrimSpace(req.System) != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Completion{}, &StatusError{Provider: ProviderGemini, StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Completion{}, ErrEmptyCompletion
	}
	return Completion{Text: text, Provider: ProviderGemini, Model: c.model}, nil
}
