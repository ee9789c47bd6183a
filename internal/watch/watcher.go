// Package watch monitors the uploads directory and triggers a knowledge
// base refresh when new PDF material lands in it.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/briefly-ai/briefly/internal/log"
)

// DefaultDebounce batches the burst of events a single file copy produces
// into one trigger.
const DefaultDebounce = 2 * time.Second

// Trigger is the refresh entry point the watcher fires. The bool result is
// whether the trigger was admitted; a rejection just means a refresh is
// already running and the new material will be picked up by it or the next
// run.
type Trigger func() bool

// Watcher fires a refresh trigger after PDF changes in a directory settle.
type Watcher struct {
	dir      string
	debounce time.Duration
	trigger  Trigger
	logger   log.Logger
	fs       *fsnotify.Watcher
}

// New creates a Watcher over dir, creating the directory if needed.
func New(dir string, trigger Trigger, debounce time.Duration, logger log.Logger) (*Watcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("trigger is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating watch directory: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		trigger:  trigger,
		logger:   logger,
		fs:       fs,
	}, nil
}

// Run blocks consuming events until ctx is canceled. Each settled burst of
// PDF creates/writes fires the trigger once.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fs.Close(); err != nil {
			w.logger.Warn("closing file watcher", "error", err)
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.logger.Debug("upload detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			if w.trigger() {
				w.logger.Info("refresh triggered by upload", "dir", w.dir)
			} else {
				w.logger.Info("upload noted, refresh already running", "dir", w.dir)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
