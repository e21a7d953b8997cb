// Package sink stores finished records.
package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"timeline_spider/internal/models"
)

// Writer is the durable end of the pipeline. Implementations are safe for
// concurrent use by several seed workers.
type Writer interface {
	Write(ctx context.Context, rec models.Persistable) error
	Close() error
}

// Opener is implemented by writers that defer acquiring their target until
// the run has seeds to crawl.
type Opener interface {
	Open() error
}

// FileWriter appends one JSON object per line to a file that is truncated
// when the writer is opened.
type FileWriter struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	lines  int64
	closed bool
}

// NewFile returns a FileWriter for path without touching the filesystem.
// Open must be called before the first Write.
func NewFile(path string) *FileWriter {
	return &FileWriter{path: path}
}

// OpenFile is NewFile followed by Open.
func OpenFile(path string) (*FileWriter, error) {
	w := NewFile(path)
	if err := w.Open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Open creates the output directory and truncates the file. Calling it on an
// open writer does nothing.
func (w *FileWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return nil
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewConfigurationError(eris.Wrapf(err, "sink: create output dir %s", dir))
		}
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return models.NewConfigurationError(eris.Wrapf(err, "sink: open %s", w.path))
	}
	w.file = f
	return nil
}

// Write marshals rec completely before touching the file and writes the line
// with a single call, so a cancelled run never leaves half a line behind.
func (w *FileWriter) Write(ctx context.Context, rec models.Persistable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sink: marshal record")
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return eris.Errorf("sink: write to closed file %s", w.path)
	}
	if w.file == nil {
		return eris.Errorf("sink: write to unopened file %s", w.path)
	}
	if _, err := w.file.Write(line); err != nil {
		return eris.Wrapf(err, "sink: write %s", w.path)
	}
	w.lines++
	return nil
}

func (w *FileWriter) Lines() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return eris.Wrapf(err, "sink: sync %s", w.path)
	}
	return w.file.Close()
}
