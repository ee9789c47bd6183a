// Package retrieve embeds a user query and searches the active index
// snapshot, filtering and truncating the hits to a context budget.
package retrieve

import (
	"context"
	"fmt"

	"github.com/briefly-ai/briefly/internal/embed"
	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
)

// SnapshotProvider yields the currently active index snapshot.
// Active may return nil when no refresh has completed yet.
type SnapshotProvider interface {
	Active() *index.Snapshot
}

// Config holds retrieval parameters.
type Config struct {
	TopK        int     // maximum hits to consider
	Threshold   float64 // minimum cosine similarity to keep a hit
	BudgetChars int     // combined character budget for kept chunks
}

// Retriever performs similarity retrieval against the active snapshot.
type Retriever struct {
	embedder  embed.Embedder
	snapshots SnapshotProvider
	cfg       Config
	logger    log.Logger
}

// New creates a Retriever.
func New(embedder embed.Embedder, snapshots SnapshotProvider, cfg Config, logger log.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.BudgetChars <= 0 {
		cfg.BudgetChars = 6000
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{embedder: embedder, snapshots: snapshots, cfg: cfg, logger: logger}
}

// Retrieve embeds query and returns the best-scoring chunks above the
// threshold, truncated to the character budget (lowest scores dropped
// first). The snapshot reference is captured exactly once at call start, so
// a concurrent refresh can never mix chunks from two versions into one
// result. An empty result is a valid, non-error outcome.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Hit, error) {
	// Capture the active snapshot before any suspension point.
	snap := r.snapshots.Active()
	if snap == nil || snap.Len() == 0 {
		r.logger.Debug("retrieval skipped, no active snapshot")
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits := snap.Search(vec, r.cfg.TopK)

	kept := hits[:0:0]
	budget := r.cfg.BudgetChars
	for _, h := range hits {
		if h.Score < r.cfg.Threshold {
			// Hits are sorted descending; everything after is below too.
			break
		}
		if len(h.Chunk.Text) > budget {
			// Greedy from the top: keep the higher-scoring chunks, drop
			// the rest once the budget is spent.
			break
		}
		budget -= len(h.Chunk.Text)
		kept = append(kept, h)
	}

	r.logger.Debug("retrieval complete",
		"snapshot_version", snap.Version(),
		"candidates", len(hits),
		"kept", len(kept))
	return kept, nil
}
