package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls Google's Gemini API through the genai SDK.
//
// The SDK is driven with a single user turn: the system message and the
// first user message's text are flattened into one prompt, and every image
// part of the user message is forwarded inline.
type GeminiClient struct {
	apiKey  string
	baseURL string
}

// NewGeminiClient creates a client bound to apiKey. An empty baseURL uses the
// SDK's default endpoint.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{apiKey: strings.TrimSpace(apiKey), baseURL: baseURL}
}

// Complete implements Gateway.
func (c *GeminiClient) Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", ErrConfigurationMissing
	}

	cfg := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini: create client: %w", err)
	}

	contents := []*genai.Content{genai.NewContentFromParts(geminiParts(messages), genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, GeminiModelName(model), contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: gemini: generate: %w", err)
	}
	return resp.Text(), nil
}

// GeminiModelName strips a routing prefix ("google/gemini-pro" -> "gemini-pro").
func GeminiModelName(model string) string {
	parts := strings.Split(model, "/")
	if len(parts) > 1 {
		return parts[1]
	}
	return model
}

// FlattenPrompt joins the system message and the first user message's text.
func FlattenPrompt(messages []Message) string {
	var system string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Text()
			break
		}
	}
	prompt := system + "\n\n"
	if u, ok := firstUser(messages); ok {
		prompt += u.Text()
	}
	return prompt
}

func firstUser(messages []Message) (Message, bool) {
	for _, m := range messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}

func geminiParts(messages []Message) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(FlattenPrompt(messages))}
	u, ok := firstUser(messages)
	if !ok {
		return parts
	}
	for _, p := range u.Parts {
		if p.Type == PartImage {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		}
	}
	return parts
}
