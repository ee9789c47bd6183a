// Package index stores chunk vectors and answers nearest-neighbor queries
// against immutable snapshots.
//
// A Snapshot is built once by a refresh run and never mutated; the active
// snapshot is published through a single atomic pointer (see
// internal/refresh), so the read path needs no locks.
package index

import (
	"math"
	"sort"
	"time"
)

// Chunk is the unit of retrieval: a bounded passage plus its embedding.
// Chunks are owned by the Snapshot that contains them and never mutated
// after construction.
type Chunk struct {
	DocumentID string
	Text       string
	Embedding  []float32
	Position   int
	CreatedAt  time.Time
}

// Snapshot is an immutable, versioned view of the full searchable chunk set.
type Snapshot struct {
	version uint64
	builtAt time.Time
	chunks  []Chunk
}

// Build constructs a Snapshot from the given chunks. The slice is copied so
// later mutation by the caller cannot reach into the snapshot.
func Build(chunks []Chunk, version uint64) *Snapshot {
	owned := make([]Chunk, len(chunks))
	copy(owned, chunks)
	return &Snapshot{
		version: version,
		builtAt: time.Now(),
		chunks:  owned,
	}
}

// Version reports the snapshot's monotonically increasing version.
func (s *Snapshot) Version() uint64 { return s.version }

// BuiltAt reports when the snapshot was constructed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len reports the number of chunks in the snapshot.
func (s *Snapshot) Len() int { return len(s.chunks) }

// Chunks exposes the chunk arena for persistence. Callers must not mutate.
func (s *Snapshot) Chunks() []Chunk { return s.chunks }

// Hit is one search result.
type Hit struct {
	Chunk Chunk
	Score float64
}

// Search returns the k nearest chunks to vec by cosine similarity, sorted by
// score descending. Ties break to the more recently created chunk, then to
// the lower position, so results are deterministic. Chunks whose embedding
// dimension does not match vec are skipped.
func (s *Snapshot) Search(vec []float32, k int) []Hit {
	if s == nil || len(s.chunks) == 0 || len(vec) == 0 || k <= 0 {
		return nil
	}

	hits := make([]Hit, 0, len(s.chunks))
	for i := range s.chunks {
		c := &s.chunks[i]
		if len(c.Embedding) != len(vec) {
			continue
		}
		hits = append(hits, Hit{Chunk: *c, Score: cosineSimilarity(vec, c.Embedding)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Chunk.CreatedAt.Equal(hits[j].Chunk.CreatedAt) {
			return hits[i].Chunk.CreatedAt.After(hits[j].Chunk.CreatedAt)
		}
		return hits[i].Chunk.Position < hits[j].Chunk.Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Accumulation in float64 avoids precision loss on long vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
