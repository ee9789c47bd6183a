// Package testutil provides shared testing fakes for the briefly project:
// a deterministic embedder, a scripted chat backend and an SSE stream
// parser matching the wire protocol the API emits.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/briefly-ai/briefly/internal/chat"
	"github.com/briefly-ai/briefly/internal/prompt"
)

// Embedder is a deterministic in-memory embedder: the same text always
// yields the same vector, and explicit vectors can be pinned per text.
type Embedder struct {
	dim int

	mu      sync.Mutex
	pinned  map[string][]float32
	failAll error
	calls   []string
}

// NewEmbedder creates an Embedder producing vectors of the given dimension.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{dim: dim, pinned: make(map[string][]float32)}
}

// Pin fixes the vector returned for an exact text.
func (e *Embedder) Pin(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// FailWith makes every subsequent Embed call return err.
func (e *Embedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAll = err
}

// Calls returns the texts embedded so far.
func (e *Embedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// Embed implements embed.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.failAll != nil {
		return nil, e.failAll
	}
	if vec, ok := e.pinned[text]; ok {
		return vec, nil
	}
	return DeterministicVector(text, e.dim), nil
}

// Dimension implements embed.Embedder.
func (e *Embedder) Dimension() int { return e.dim }

// DeterministicVector derives a stable pseudo-vector from content. Same
// content yields the same vector; different content yields different ones.
func DeterministicVector(content string, dim int) []float32 {
	sum := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[(i*4)%(len(sum)-4):])
		vec[i] = float32(bits%2000)/1000 - 1
	}
	return vec
}

// Backend is a scripted chat backend emitting a fixed fragment sequence.
type Backend struct {
	Fragments []chat.Fragment
	Err       error // returned after all fragments are emitted

	mu      sync.Mutex
	prompts []prompt.Prompt
}

// Stream implements chat.Backend.
func (b *Backend) Stream(ctx context.Context, p prompt.Prompt, emit func(chat.Fragment) error) error {
	b.mu.Lock()
	b.prompts = append(b.prompts, p)
	b.mu.Unlock()

	for _, f := range b.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return b.Err
}

// Prompts returns the prompts streamed so far.
func (b *Backend) Prompts() []prompt.Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]prompt.Prompt, len(b.prompts))
	copy(out, b.prompts)
	return out
}
