// Package embed converts text into fixed-dimension vectors.
//
// The production implementation calls the Gemini embedding backend; tests
// use the deterministic fake in internal/testutil. Backend failures wrap
// ErrUpstreamUnavailable so callers can distinguish them from programming
// errors.
package embed

import (
	"context"
	"errors"
)

// ErrUpstreamUnavailable indicates the embedding backend could not be
// reached or returned an unusable response.
var ErrUpstreamUnavailable = errors.New("embedding backend unavailable")

// Embedder converts text into a vector of fixed dimensionality.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
