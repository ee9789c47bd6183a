package chunk

import (
	"strings"
	"testing"
)

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	c := New(100, 10)
	passages := c.Split("doc1", "A short document.")

	if len(passages) != 1 {
		t.Fatalf("got %d passages, want 1", len(passages))
	}
	if passages[0].Text != "A short document." {
		t.Errorf("Text = %q", passages[0].Text)
	}
	if passages[0].Position != 0 || passages[0].DocumentID != "doc1" {
		t.Errorf("metadata = %+v", passages[0])
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	c := New(100, 10)
	if got := c.Split("doc1", "   \n "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitWindowsOverlap(t *testing.T) {
	// No sentence breaks: fixed windows with fixed overlap.
	text := strings.Repeat("a", 250)
	c := New(100, 10)

	passages := c.Split("doc1", text)
	if len(passages) < 2 {
		t.Fatalf("got %d passages, want several", len(passages))
	}

	for i, p := range passages {
		if p.Position != i {
			t.Errorf("passages[%d].Position = %d", i, p.Position)
		}
		if len([]rune(p.Text)) > 100 {
			t.Errorf("passages[%d] length %d exceeds window", i, len(p.Text))
		}
	}

	// Consecutive windows share the overlap region.
	first := []rune(passages[0].Text)
	second := []rune(passages[1].Text)
	tail := string(first[len(first)-10:])
	head := string(second[:10])
	if tail != head {
		t.Errorf("overlap mismatch: tail %q, head %q", tail, head)
	}
}

func TestSplitSnapsToSentenceBreak(t *testing.T) {
	// The break sits past size/2, so the window should end right after it.
	sentence := strings.Repeat("x", 80) + ". "
	text := sentence + strings.Repeat("y", 100)
	c := New(100, 0)

	passages := c.Split("doc1", text)
	if len(passages) < 2 {
		t.Fatalf("got %d passages, want at least 2", len(passages))
	}
	if !strings.HasSuffix(passages[0].Text, ".") {
		t.Errorf("first passage should end at the sentence break, got %q", passages[0].Text)
	}
	if strings.Contains(passages[0].Text, "y") {
		t.Errorf("first passage leaked past the break: %q", passages[0].Text)
	}
}

func TestSplitDoesNotBreakOnDecimalPoint(t *testing.T) {
	text := strings.Repeat("a", 70) + "3.14" + strings.Repeat("b", 70)
	c := New(100, 0)

	passages := c.Split("doc1", text)
	for _, p := range passages {
		if strings.HasSuffix(p.Text, "3.") {
			t.Errorf("window split inside a number: %q", p.Text)
		}
	}
}

func TestSplitCoversFullText(t *testing.T) {
	text := "First sentence here. Second sentence there. " + strings.Repeat("filler ", 100)
	c := New(120, 12)

	passages := c.Split("doc1", text)
	joined := ""
	for _, p := range passages {
		joined += p.Text
	}
	// Every non-space character of the input must appear in some passage.
	for _, word := range []string{"First", "Second", "filler"} {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost during chunking", word)
		}
	}
}

func TestSplitLargeOverlapAdvances(t *testing.T) {
	// A sentence break past size/2 but inside the overlap region must not
	// pull the next window backwards.
	text := strings.Repeat("A", 599) + ". " + strings.Repeat("B", 1500)
	c := New(1000, 700)

	passages := c.Split("doc1", text)
	if len(passages) < 2 {
		t.Fatalf("got %d passages, want several", len(passages))
	}
	for i, p := range passages {
		if p.Position != i {
			t.Errorf("passages[%d].Position = %d", i, p.Position)
		}
	}
	last := passages[len(passages)-1].Text
	if !strings.HasSuffix(last, "B") {
		t.Errorf("last passage should reach the end of the text, got %q tail", last[len(last)-10:])
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(0, -1)
	if c.Size() != DefaultSize {
		t.Errorf("Size() = %d, want %d", c.Size(), DefaultSize)
	}
	if c.Overlap() != DefaultSize/10 {
		t.Errorf("Overlap() = %d, want %d", c.Overlap(), DefaultSize/10)
	}
}
