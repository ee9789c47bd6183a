// Package news implements document ingestion for the knowledge base.
//
// An Ingestor fans out over a set of Sources (RSS feeds, NewsAPI endpoints,
// uploaded PDFs), normalizes every item to a plain-text Document and
// deduplicates the result by content hash. Ingestion is partial-failure
// tolerant: a broken source is skipped and logged, never fatal.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document is one normalized unit of ingested content.
// Documents are immutable after creation.
type Document struct {
	SourceID    string
	Text        string
	FetchedAt   time.Time
	ContentHash string
}

// NewDocument builds a Document and computes its content hash.
func NewDocument(sourceID, text string, fetchedAt time.Time) Document {
	sum := sha256.Sum256([]byte(text))
	return Document{
		SourceID:    sourceID,
		Text:        text,
		FetchedAt:   fetchedAt,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// Dedupe collapses documents with equal content hash, keeping the first
// occurrence. Input order is preserved.
func Dedupe(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		if _, ok := seen[d.ContentHash]; ok {
			continue
		}
		seen[d.ContentHash] = struct{}{}
		out = append(out, d)
	}
	return out
}
