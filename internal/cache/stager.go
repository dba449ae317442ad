// Package cache stages remote files on local disk so decoders that need a
// path can read them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"textanywhere/internal/errs"
	"textanywhere/internal/storage"
	"textanywhere/internal/store"
)

// Strategy controls how long staged copies live.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyOnce       Strategy = "once"
	StrategyPersistent Strategy = "persistent"
)

// ParseStrategy validates a caching_strategy value.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyNone, StrategyOnce, StrategyPersistent:
		return Strategy(s), nil
	case "":
		return StrategyOnce, nil
	}
	return "", errs.Config("caching_strategy", s, "must be one of none, once, persistent")
}

// DefaultDir is the persistent cache location when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "textanywhere-cache")
}

// Index is the part of the state store that tracks persistent copies.
type Index interface {
	GetCacheEntry(key string) (*store.CacheEntry, error)
	PutCacheEntry(e store.CacheEntry) error
	DeleteCacheEntry(key string) error
}

// Options configure a Stager.
type Options struct {
	Strategy Strategy
	// Dir is the shared scratch dir for StrategyPersistent.
	Dir    string
	Index  Index
	Logger *slog.Logger
}

// Stager hands out local paths for listed files.
type Stager struct {
	backend  storage.Backend
	strategy Strategy
	dir      string
	index    Index
	staged   map[string]string
	logger   *slog.Logger
}

// New creates a stager for backend. With StrategyOnce a run-scoped temp dir
// is created immediately; Close removes it.
func New(backend storage.Backend, opts Options) (*Stager, error) {
	s := &Stager{
		backend:  backend,
		strategy: opts.Strategy,
		index:    opts.Index,
		staged:   make(map[string]string),
		logger:   opts.Logger,
	}
	if s.strategy == "" {
		s.strategy = StrategyOnce
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	switch s.strategy {
	case StrategyNone:
	case StrategyOnce:
		dir, err := os.MkdirTemp("", "textanywhere-run-")
		if err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
		s.dir = dir
	case StrategyPersistent:
		if s.index == nil {
			return nil, errs.Config("caching_strategy", string(s.strategy), "persistent caching needs a state store")
		}
		s.dir = opts.Dir
		if s.dir == "" {
			s.dir = DefaultDir()
		}
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	default:
		return nil, errs.Config("caching_strategy", string(s.strategy), "must be one of none, once, persistent")
	}
	return s, nil
}

// Key identifies a remote file across runs.
func Key(protocol, path string) string {
	sum := sha256.Sum256([]byte(protocol + ":" + path))
	return hex.EncodeToString(sum[:])
}

func noop() {}

// Fetch returns a local path holding h's content and a release func the
// caller must invoke when done with it. Staged copies keep h's basename so
// decoders can rely on the extension.
func (s *Stager) Fetch(ctx context.Context, h storage.FileHandle) (string, func(), error) {
	if p, ok := s.backend.LocalPath(h); ok {
		return p, noop, nil
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	switch s.strategy {
	case StrategyNone:
		dir, err := os.MkdirTemp("", "textanywhere-file-")
		if err != nil {
			return "", nil, s.stageErr(h, err)
		}
		dst := filepath.Join(dir, filepath.Base(h.Name))
		if err := s.copyTo(ctx, h, dst); err != nil {
			os.RemoveAll(dir)
			return "", nil, err
		}
		return dst, func() { os.RemoveAll(dir) }, nil

	case StrategyOnce:
		if p, ok := s.staged[h.Path]; ok {
			return p, noop, nil
		}
		dst := filepath.Join(s.dir, Key(s.backend.Protocol(), h.Path)[:16], filepath.Base(h.Name))
		if err := s.copyTo(ctx, h, dst); err != nil {
			return "", nil, err
		}
		s.staged[h.Path] = dst
		return dst, noop, nil

	default:
		return s.fetchPersistent(ctx, h)
	}
}

func (s *Stager) fetchPersistent(ctx context.Context, h storage.FileHandle) (string, func(), error) {
	key := Key(s.backend.Protocol(), h.Path)
	e, err := s.index.GetCacheEntry(key)
	if err != nil {
		s.logger.Warn("cache index lookup failed", "path", h.Path, "err", err)
	}
	if e != nil && h.HasTimestamp() && e.Size == h.Size && e.LastModified.Equal(h.LastModified) {
		if _, err := os.Stat(e.LocalPath); err == nil {
			s.logger.Debug("cache hit", "path", h.Path)
			return e.LocalPath, noop, nil
		}
	}

	dst := filepath.Join(s.dir, key, filepath.Base(h.Name))
	if e != nil && e.LocalPath != dst {
		os.Remove(e.LocalPath)
	}
	if err := s.copyTo(ctx, h, dst); err != nil {
		if derr := s.index.DeleteCacheEntry(key); derr != nil {
			s.logger.Warn("cache index delete failed", "path", h.Path, "err", derr)
		}
		return "", nil, err
	}
	err = s.index.PutCacheEntry(store.CacheEntry{
		Key:          key,
		RemotePath:   h.Path,
		LocalPath:    dst,
		LastModified: h.LastModified,
		Size:         h.Size,
	})
	if err != nil {
		s.logger.Warn("cache index update failed", "path", h.Path, "err", err)
	}
	return dst, noop, nil
}

// copyTo streams h into dst through a sibling temp file so a partial copy is
// never visible under the final name.
func (s *Stager) copyTo(ctx context.Context, h storage.FileHandle, dst string) error {
	rc, err := s.backend.Open(ctx, h)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return s.stageErr(h, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return s.stageErr(h, err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.stageErr(h, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return s.stageErr(h, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return s.stageErr(h, err)
	}
	return nil
}

func (s *Stager) stageErr(h storage.FileHandle, err error) error {
	return &errs.BackendError{Protocol: s.backend.Protocol(), Path: h.Path, Op: "stage", Err: err}
}

// Close removes run-scoped copies. Persistent copies are left in place.
func (s *Stager) Close() error {
	if s.strategy != StrategyOnce || s.dir == "" {
		return nil
	}
	s.staged = make(map[string]string)
	return os.RemoveAll(s.dir)
}
