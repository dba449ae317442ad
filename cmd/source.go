package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"textanywhere/internal/cache"
	"textanywhere/internal/chunker"
	"textanywhere/internal/config"
	"textanywhere/internal/extract"
	"textanywhere/internal/pipeline"
	"textanywhere/internal/singer"
	"textanywhere/internal/storage"
	"textanywhere/internal/store"
)

// source bundles what every extracting command opens.
type source struct {
	backend storage.Backend
	stager  *cache.Stager
}

// openSource opens the configured backend with a stager using strategy.
func openSource(ctx context.Context, c *config.Config, strategy cache.Strategy, st *store.SQLiteStore, log *slog.Logger) (*source, error) {
	backend, err := storage.New(ctx, c.StorageOptions())
	if err != nil {
		return nil, err
	}
	stager, err := cache.New(backend, cache.Options{
		Strategy: strategy,
		Dir:      c.CacheDir,
		Index:    st,
		Logger:   log,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &source{backend: backend, stager: stager}, nil
}

func (s *source) newPipeline(c *config.Config, log *slog.Logger, onProgress pipeline.ProgressFunc) (*pipeline.Pipeline, error) {
	splitter, err := chunker.NewSplitter(c.ChunkSize, c.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return pipeline.New(s.backend, pipeline.Config{
		Fetcher:           s.stager,
		Extractor:         extract.New(),
		Splitter:          splitter,
		FailOnDecodeError: c.FailOnDecodeError,
		Logger:            log,
		OnProgress:        onProgress,
	}), nil
}

func (s *source) Close() error {
	serr := s.stager.Close()
	if err := s.backend.Close(); err != nil {
		return err
	}
	return serr
}

// startingWatermark prefers a Singer state file over the state DB.
func startingWatermark(statePath, stream string, st *store.SQLiteStore) (time.Time, error) {
	if statePath != "" {
		state, err := singer.ReadState(statePath)
		if err != nil {
			return time.Time{}, err
		}
		t, ok, err := state.Watermark(stream)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return t, nil
		}
	}
	if st == nil {
		return time.Time{}, nil
	}
	t, err := st.GetWatermark(stream)
	if err != nil {
		return time.Time{}, fmt.Errorf("load watermark: %w", err)
	}
	return t, nil
}
