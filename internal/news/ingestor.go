package news

import (
	"context"
	"time"

	"github.com/briefly-ai/briefly/internal/log"
)

// Source is one origin of documents (a feed, an API, a directory of uploads).
// Fetch returns all currently available documents for the source.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Document, error)
}

const (
	// DefaultSourceTimeout bounds a single fetch attempt.
	DefaultSourceTimeout = 20 * time.Second

	// DefaultRetries is the per-source retry budget on top of the first attempt.
	DefaultRetries = 2

	// retryDelay is the fixed pause between attempts.
	retryDelay = 500 * time.Millisecond
)

// Ingestor fetches documents from all configured sources.
type Ingestor struct {
	sources []Source
	timeout time.Duration
	retries int
	logger  log.Logger
}

// NewIngestor creates an Ingestor over the given sources.
// Zero timeout and negative retries fall back to defaults.
func NewIngestor(sources []Source, timeout time.Duration, retries int, logger log.Logger) *Ingestor {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{sources: sources, timeout: timeout, retries: retries, logger: logger}
}

// Ingest fetches every source and returns the deduplicated document set.
//
// A source that keeps failing after its retry budget is skipped; ingestion
// only returns an error when the context itself is done, so one dead feed
// can never fail the whole run.
func (i *Ingestor) Ingest(ctx context.Context) ([]Document, error) {
	var all []Document
	for _, src := range i.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := i.fetchWithRetry(ctx, src)
		if err != nil {
			i.logger.Warn("source failed, skipping",
				"source", src.Name(),
				"error", err)
			continue
		}

		i.logger.Debug("source fetched", "source", src.Name(), "documents", len(docs))
		all = append(all, docs...)
	}

	deduped := Dedupe(all)
	if len(deduped) < len(all) {
		i.logger.Debug("deduplicated documents",
			"before", len(all),
			"after", len(deduped))
	}
	return deduped, nil
}

func (i *Ingestor) fetchWithRetry(ctx context.Context, src Source) ([]Document, error) {
	var lastErr error
	for attempt := 0; attempt <= i.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, i.timeout)
		docs, err := src.Fetch(fetchCtx)
		cancel()
		if err == nil {
			return docs, nil
		}
		lastErr = err

		// No point retrying once the parent context is gone.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		i.logger.Debug("source fetch attempt failed",
			"source", src.Name(),
			"attempt", attempt+1,
			"error", err)
	}
	return nil, lastErr
}
