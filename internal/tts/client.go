// Package tts synthesizes speech for answers via the Gemini TTS models.
package tts

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/briefly-ai/briefly/internal/log"
)

// ErrUpstreamUnavailable reports a synthesis provider failure.
var ErrUpstreamUnavailable = errors.New("tts: upstream unavailable")

// DefaultVoice is the prebuilt voice used when none is configured.
const DefaultVoice = "Kore"

// Audio is one synthesized utterance.
type Audio struct {
	Data     []byte
	MIMEType string
}

// Client synthesizes speech from text. Safe for concurrent use.
type Client struct {
	client *genai.Client
	model  string
	voice  string
	logger log.Logger
}

// New creates a Client for the given TTS model.
func New(client *genai.Client, model, voice string, logger log.Logger) *Client {
	if voice == "" {
		voice = DefaultVoice
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{client: client, model: model, voice: voice, logger: logger}
}

// Synthesize converts text to audio. The provider returns raw PCM; the
// MIMEType on the result says exactly what (codec, rate).
func (c *Client) Synthesize(ctx context.Context, text string) (Audio, error) {
	if text == "" {
		return Audio{}, errors.New("tts: empty text")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(text),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
				},
			},
		})
	if err != nil {
		if ctx.Err() != nil {
			return Audio{}, ctx.Err()
		}
		return Audio{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				c.logger.Debug("speech synthesized",
					"bytes", len(part.InlineData.Data),
					"mime", part.InlineData.MIMEType)
				return Audio{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	return Audio{}, fmt.Errorf("%w: response contained no audio", ErrUpstreamUnavailable)
}
