// Package chunk splits documents into bounded, overlapping passages for
// embedding. Windows are fixed-size in characters with a fixed overlap, and
// window ends snap back to the nearest sentence or paragraph break so
// passages do not cut mid-sentence when a break is available.
package chunk

import (
	"strings"
)

// Passage is one chunk of a document's text, before embedding.
type Passage struct {
	DocumentID string
	Text       string
	Position   int
}

// Chunker splits raw text into passages.
type Chunker struct {
	size    int
	overlap int
}

const (
	// DefaultSize is the window size in characters.
	DefaultSize = 1200

	// minBreakFraction limits how far back a window may shrink to reach a
	// sentence break. A break earlier than size/2 is ignored to keep
	// passages from degenerating.
	minBreakFraction = 2
)

// New creates a Chunker. size <= 0 falls back to DefaultSize; overlap < 0 or
// overlap >= size falls back to size/10.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into overlapping passages tagged with docID and ordinal
// position. A document shorter than one window yields exactly one passage;
// empty or whitespace-only text yields none.
func (c *Chunker) Split(docID, text string) []Passage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []Passage{{DocumentID: docID, Text: text, Position: 0}}
	}

	var passages []Passage
	start := 0
	for pos := 0; start < len(runes); pos++ {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if snapped := snapToBreak(runes[start:end]); snapped > c.size/minBreakFraction && snapped > c.overlap {
			// snapped > overlap keeps the next start ahead of this one;
			// a break inside the overlap region would walk the window
			// backwards.
			end = start + snapped
		}

		passage := strings.TrimSpace(string(runes[start:end]))
		if passage != "" {
			passages = append(passages, Passage{
				DocumentID: docID,
				Text:       passage,
				Position:   len(passages),
			})
		}

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return passages
}

// snapToBreak returns the rune offset just after the last sentence or
// paragraph break inside window, or 0 when the window holds none.
func snapToBreak(window []rune) int {
	best := 0
	for i, r := range window {
		switch r {
		case '\n':
			best = i + 1
		case '.', '!', '?':
			// Only treat the terminator as a break when followed by
			// whitespace or the window edge, so "3.14" stays intact.
			if i+1 == len(window) || isSpace(window[i+1]) {
				best = i + 1
			}
		}
	}
	return best
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Size reports the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap reports the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }
