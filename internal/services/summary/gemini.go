package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator calls Google Gemini through the generative-ai-go SDK.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGemini creates a Gemini client. Close it on shutdown.
func NewGemini(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// Generate sends prompt to model and returns the text of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini: response has no text")
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
