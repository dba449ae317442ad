// Package pipeline runs select, fetch, extract, split and emit for one
// stream, and tracks the watermark the run may advance to.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"textanywhere/internal/chunker"
	"textanywhere/internal/errs"
	"textanywhere/internal/selector"
	"textanywhere/internal/storage"
)

// Stats reports run results.
type Stats struct {
	FilesListed    int
	FilesSelected  int
	FilesExtracted int
	FilesFailed    int
	ChunksEmitted  int
	Watermark      time.Time
	WatermarkSet   bool
}

// ProgressFunc is called after each processed file.
type ProgressFunc func(phase string, processed, total int)

// Fetcher stages a listed file on local disk.
type Fetcher interface {
	Fetch(ctx context.Context, h storage.FileHandle) (string, func(), error)
}

// TextExtractor turns a local file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Config holds the pipeline collaborators.
type Config struct {
	Fetcher           Fetcher
	Extractor         TextExtractor
	Splitter          *chunker.Splitter
	FailOnDecodeError bool
	Logger            *slog.Logger
	OnProgress        ProgressFunc
}

// Pipeline processes the files of one backend sequentially.
type Pipeline struct {
	backend storage.Backend
	cfg     Config
	logger  *slog.Logger
}

// New creates a pipeline over backend.
func New(backend storage.Backend, cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{backend: backend, cfg: cfg, logger: logger}
}

// countingBackend records how many entries the last listing returned.
type countingBackend struct {
	storage.Backend
	listed int
}

func (c *countingBackend) List(ctx context.Context, root string) ([]storage.FileHandle, error) {
	hs, err := c.Backend.List(ctx, root)
	c.listed = len(hs)
	return hs, err
}

// Run selects files with c and emits one record per chunk in order. Decode
// failures skip the file unless FailOnDecodeError is set; everything else
// aborts the run. The returned Stats are valid even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, c selector.Criteria, emit func(Record) error) (*Stats, error) {
	stats := &Stats{}
	counter := &countingBackend{Backend: p.backend}

	seq, err := selector.Select(ctx, counter, c)
	stats.FilesListed = counter.listed
	if err != nil {
		return stats, err
	}

	// Filters run in memory, so counting the selection up front costs no I/O
	// and gives progress a total of files that will actually be processed.
	total := 0
	for range seq {
		total++
	}

	tracker := NewWatermark(c.Watermark)
	timestamps := p.backend.SupportsTimestamps()
	finish := func() {
		stats.Watermark, stats.WatermarkSet = tracker.Value()
	}

	for h := range seq {
		stats.FilesSelected++
		p.logger.Info("file selected", "path", h.Path, "size", h.Size)

		n, err := p.processFile(ctx, h, timestamps, emit)
		stats.ChunksEmitted += n
		if err != nil {
			if errs.Fatal(err) || p.cfg.FailOnDecodeError {
				finish()
				return stats, err
			}
			stats.FilesFailed++
			p.logger.Warn("decode failed", "path", h.Path, "code", errs.Classify(err), "err", err)
			if timestamps {
				tracker.Failed(h.LastModified)
			}
		} else {
			stats.FilesExtracted++
			if timestamps {
				tracker.Succeeded(h.LastModified)
			}
		}

		if p.cfg.OnProgress != nil {
			p.cfg.OnProgress("Extracting files...", stats.FilesSelected, total)
		}
	}

	finish()
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) processFile(ctx context.Context, h storage.FileHandle, timestamps bool, emit func(Record) error) (int, error) {
	path, release, err := p.cfg.Fetcher.Fetch(ctx, h)
	if err != nil {
		return 0, err
	}
	defer release()

	text, err := p.cfg.Extractor.Extract(ctx, path)
	if err != nil {
		var de *errs.DecodeError
		if errors.As(err, &de) {
			return 0, &errs.DecodeError{Path: h.Path, Err: de.Err}
		}
		return 0, err
	}

	chunks := p.cfg.Splitter.Split(text)
	for i, c := range chunks {
		if err := emit(NewRecord(h, c.Text, timestamps)); err != nil {
			return i, fmt.Errorf("emit record: %w", err)
		}
	}
	p.logger.Info("file extracted", "path", h.Path, "chunks", len(chunks))
	return len(chunks), nil
}
