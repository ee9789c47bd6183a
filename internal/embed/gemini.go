package embed

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/briefly-ai/briefly/internal/log"
)

// Gemini is an Embedder backed by the Gemini embedding API.
//
// gemini-embedding-001 outputs 3072 dimensions by default but supports
// truncation via OutputDimensionality; we request the dimension the index
// and the archive schema are built for.
type Gemini struct {
	client  *genai.Client
	model   string
	dim     int
	limiter *rate.Limiter
	logger  log.Logger
}

// NewGemini creates a Gemini embedder. limiter may be nil, in which case a
// conservative default (5 req/s, burst 10) protects the API quota.
func NewGemini(client *genai.Client, model string, dim int, limiter *rate.Limiter, logger log.Logger) *Gemini {
	if limiter == nil {
		limiter = rate.NewLimiter(5, 10)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gemini{client: client, model: model, dim: dim, limiter: limiter, logger: logger}
}

// Dimension implements Embedder.
func (g *Gemini) Dimension() int { return g.dim }

// Embed implements Embedder.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	dim := int32(g.dim) // #nosec G115 -- validated by config
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUpstreamUnavailable)
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != g.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrUpstreamUnavailable, len(vec), g.dim)
	}
	return vec, nil
}
