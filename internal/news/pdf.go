package news

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/briefly-ai/briefly/internal/log"
)

// PDFSource ingests uploaded PDF files from a local directory.
//
// Every page becomes its own document so that retrieval can point at a
// specific page. A file or page that cannot be parsed is skipped, not fatal.
type PDFSource struct {
	dir    string
	logger log.Logger
}

// NewPDFSource creates a PDFSource rooted at dir. The directory is created
// on first fetch if it does not exist.
func NewPDFSource(dir string, logger log.Logger) *PDFSource {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PDFSource{dir: dir, logger: logger}
}

// Name implements Source.
func (s *PDFSource) Name() string { return "pdf:" + s.dir }

// Fetch implements Source.
func (s *PDFSource) Fetch(ctx context.Context) ([]Document, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(s.dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating uploads dir: %w", err)
		}
		return nil, nil
	}

	now := time.Now()
	var docs []Document
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = d.Name()
		}

		pages, extractErr := extractPages(path)
		if extractErr != nil {
			s.logger.Warn("skipping unreadable pdf", "file", rel, "error", extractErr)
			return nil
		}

		for i, text := range pages {
			if strings.TrimSpace(text) == "" {
				continue
			}
			docText := fmt.Sprintf(
				"[Ingested: %s]\nSOURCE: PDF Document (%s, Page %d)\nCONTENT: %s",
				now.Format("2006-01-02"), rel, i+1, text)
			docs = append(docs, NewDocument(s.Name(), docText, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// extractPages returns per-page plain text of one PDF file.
func extractPages(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Broken page, keep the rest of the file.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
