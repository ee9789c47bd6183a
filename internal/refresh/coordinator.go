// Package refresh runs the ingest → chunk → embed → index pipeline and
// atomically publishes the resulting snapshot.
//
// The Coordinator is a single-flight job supervisor: at most one refresh
// runs at a time, a trigger during a run is rejected (expected control
// flow, not an error), and the active snapshot pointer is only ever
// replaced by a fully built snapshot, so readers never observe a torn
// index. An optional file lock extends the single-flight guarantee across
// processes sharing a data directory.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/briefly-ai/briefly/internal/chunk"
	"github.com/briefly-ai/briefly/internal/embed"
	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/news"
)

// State is the refresh job lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded // terminal outcome of the last job; admits a new trigger
	StateFailed    // terminal outcome of the last job; admits a new trigger
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is an inspectable view of the refresh job.
type Status struct {
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
	Version    uint64    `json:"version"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
}

// MarshalJSON renders State as its string form in Status JSON.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the string form produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StateIdle
	case "running":
		*s = StateRunning
	case "succeeded":
		*s = StateSucceeded
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown refresh state %q", name)
	}
	return nil
}

// Ingestor is the document ingestion collaborator.
type Ingestor interface {
	Ingest(ctx context.Context) ([]news.Document, error)
}

// Archive optionally persists published snapshots and restores them on
// startup. A nil Archive disables persistence.
type Archive interface {
	Save(ctx context.Context, snap *index.Snapshot, docs []news.Document) error
	Load(ctx context.Context) ([]index.Chunk, uint64, error)
}

// Config wires a Coordinator.
type Config struct {
	Ingestor Ingestor
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Archive  Archive // optional
	Timeout  time.Duration
	LockPath string // optional cross-process lock file
	Logger   log.Logger
}

// DefaultTimeout bounds one full pipeline run.
const DefaultTimeout = 2 * time.Minute

// Coordinator supervises refresh jobs and owns the active snapshot pointer.
type Coordinator struct {
	ingestor Ingestor
	chunker  *chunk.Chunker
	embedder embed.Embedder
	archive  Archive
	timeout  time.Duration
	logger   log.Logger

	// active is read by any number of concurrent retrievals with a single
	// atomic load; written only here, after a successful build.
	active  atomic.Pointer[index.Snapshot]
	version atomic.Uint64

	fileLock *flock.Flock // nil when LockPath is empty

	mu       sync.Mutex // guards status and lockHeld
	status   Status
	lockHeld bool

	wg sync.WaitGroup // tracks the background run, for Wait in tests/shutdown
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if cfg.Chunker == nil {
		return nil, errors.New("chunker is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	c := &Coordinator{
		ingestor: cfg.Ingestor,
		chunker:  cfg.Chunker,
		embedder: cfg.Embedder,
		archive:  cfg.Archive,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
	if cfg.LockPath != "" {
		c.fileLock = flock.New(cfg.LockPath)
	}
	return c, nil
}

// Active implements retrieve.SnapshotProvider. Returns nil before the first
// successful refresh (unless Bootstrap restored one).
func (c *Coordinator) Active() *index.Snapshot {
	return c.active.Load()
}

// Status returns the current job status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Wait blocks until any in-flight background refresh finishes.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Trigger starts a refresh in the background unless one is already running.
// It returns immediately: accepted reports whether a new job was started,
// and the returned Status reflects the job state at admission time. A
// rejection is the expected answer while a job runs, not an error.
func (c *Coordinator) Trigger() (accepted bool, st Status) {
	c.mu.Lock()
	if c.status.State == StateRunning {
		st = c.status
		c.mu.Unlock()
		return false, st
	}

	if c.fileLock != nil {
		locked, err := c.fileLock.TryLock()
		if err != nil || !locked {
			// Another process holds the refresh lock; same rejection as a
			// local in-flight job.
			st = c.status
			st.State = StateRunning
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("refresh lock unavailable", "error", err)
			}
			return false, st
		}
		c.lockHeld = true
	}

	c.status = Status{
		State:     StateRunning,
		StartedAt: time.Now(),
		Version:   c.version.Load(),
	}
	st = c.status
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Detached from the triggering request: an /update-news caller
		// hanging up must not abort the pipeline.
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		c.finish(c.run(ctx))
	}()

	return true, st
}

// RunOnce executes one refresh synchronously. Used by the CLI and by the
// background goroutine via Trigger; callers must not invoke it concurrently
// with Trigger.
func (c *Coordinator) RunOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.status.State == StateRunning {
		c.mu.Unlock()
		return errors.New("refresh already in progress")
	}
	if c.fileLock != nil {
		locked, err := c.fileLock.TryLock()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("acquiring refresh lock: %w", err)
		}
		if !locked {
			c.mu.Unlock()
			return errors.New("refresh lock held by another process")
		}
		c.lockHeld = true
	}
	c.status = Status{State: StateRunning, StartedAt: time.Now(), Version: c.version.Load()}
	c.mu.Unlock()

	result := c.run(ctx)
	c.finish(result)
	return result.err
}

// runResult carries one pipeline outcome into finish.
type runResult struct {
	snap *index.Snapshot
	docs int
	err  error
}

// run executes the pipeline without touching status. On success the new
// snapshot has already been published.
func (c *Coordinator) run(ctx context.Context) runResult {
	started := time.Now()

	docs, err := c.ingestor.Ingest(ctx)
	if err != nil {
		return runResult{err: fmt.Errorf("ingestion: %w", err)}
	}

	var passages []chunk.Passage
	for _, doc := range docs {
		passages = append(passages, c.chunker.Split(doc.ContentHash, doc.Text)...)
	}

	chunks := make([]index.Chunk, 0, len(passages))
	var embedFailures int
	for _, p := range passages {
		if err := ctx.Err(); err != nil {
			return runResult{err: err}
		}
		vec, err := c.embedder.Embed(ctx, p.Text)
		if err != nil {
			// One failed chunk is skipped; a fully dead embedder fails the
			// run below.
			embedFailures++
			c.logger.Warn("skipping chunk, embedding failed",
				"document", p.DocumentID,
				"position", p.Position,
				"error", err)
			continue
		}
		chunks = append(chunks, index.Chunk{
			DocumentID: p.DocumentID,
			Text:       p.Text,
			Embedding:  vec,
			Position:   p.Position,
			CreatedAt:  time.Now(),
		})
	}

	if len(chunks) == 0 && embedFailures > 0 {
		return runResult{err: fmt.Errorf("embedding: all %d chunks failed: %w", embedFailures, embed.ErrUpstreamUnavailable)}
	}

	snap := index.Build(chunks, c.version.Add(1))

	// The single write to the active pointer. Retrievals holding the old
	// snapshot keep reading it unharmed.
	c.active.Store(snap)

	c.logger.Info("knowledge base refreshed",
		"version", snap.Version(),
		"documents", len(docs),
		"chunks", len(chunks),
		"embed_failures", embedFailures,
		"took", time.Since(started))

	if c.archive != nil {
		if err := c.archive.Save(ctx, snap, docs); err != nil {
			// Persistence is best effort; the in-memory swap already
			// happened and stays.
			c.logger.Warn("archiving snapshot failed", "error", err)
		}
	}

	return runResult{snap: snap, docs: len(docs)}
}

// finish records the outcome and releases the cross-process lock.
func (c *Coordinator) finish(r runResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockHeld {
		if err := c.fileLock.Unlock(); err != nil {
			c.logger.Warn("releasing refresh lock failed", "error", err)
		}
		c.lockHeld = false
	}
	c.status.FinishedAt = time.Now()
	if r.err != nil {
		c.status.State = StateFailed
		c.status.Error = r.err.Error()
		c.logger.Error("refresh failed", "error", r.err)
		return
	}
	c.status.State = StateSucceeded
	c.status.Version = r.snap.Version()
	c.status.Documents = r.docs
	c.status.Chunks = r.snap.Len()
}

// Bootstrap restores the last archived snapshot, if any, so the knowledge
// base survives restarts. Missing archive data is not an error.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	if c.archive == nil {
		return nil
	}
	chunks, version, err := c.archive.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading archived snapshot: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	c.version.Store(version)
	c.active.Store(index.Build(chunks, version))
	c.logger.Info("restored archived snapshot", "version", version, "chunks", len(chunks))
	return nil
}
