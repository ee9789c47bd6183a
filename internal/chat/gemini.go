package chat

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
)

// GeminiConfig holds generation parameters for the Gemini backend.
type GeminiConfig struct {
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

// GeminiBackend streams generation from the Gemini API with thinking
// enabled, so the model's reasoning arrives as thought parts alongside the
// answer parts.
type GeminiBackend struct {
	client *genai.Client
	cfg    GeminiConfig
	logger log.Logger
}

// NewGeminiBackend creates a GeminiBackend.
func NewGeminiBackend(client *genai.Client, cfg GeminiConfig, logger log.Logger) *GeminiBackend {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GeminiBackend{client: client, cfg: cfg, logger: logger}
}

// Stream implements Backend. Parts flagged as thoughts map to reasoning
// fragments, everything else to answer fragments. A part without usable
// text is malformed; it is dropped and logged, and the stream continues.
func (b *GeminiBackend) Stream(ctx context.Context, p prompt.Prompt, emit func(Fragment) error) error {
	contents := make([]*genai.Content, 0, len(p.Messages))
	for _, m := range p.Messages {
		role := genai.RoleUser
		if m.Role == prompt.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(b.cfg.Temperature),
		TopP:              genai.Ptr(b.cfg.TopP),
		MaxOutputTokens:   b.cfg.MaxTokens,
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
		},
	}

	for resp, err := range b.client.Models.GenerateContentStream(ctx, b.cfg.Model, contents, config) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part == nil || part.Text == "" {
					// Malformed or non-text part; drop it, keep the stream.
					b.logger.Debug("dropping malformed stream part")
					continue
				}
				if err := emit(Fragment{Thought: part.Thought, Text: part.Text}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
