// Package storage normalises listing and retrieval across backends. One
// Backend is chosen by protocol at startup; callers never branch on protocol.
package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"textanywhere/internal/errs"
)

// Protocol names accepted in configuration.
const (
	ProtocolFile = "file"
	ProtocolS3   = "s3"
	ProtocolGit  = "git"
)

// Kind distinguishes listable entries.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "regular"
}

// FileHandle is one entry of a listing. A zero LastModified means the
// backend supplied no timestamp.
type FileHandle struct {
	Path         string
	Name         string
	Kind         Kind
	Size         int64
	LastModified time.Time
}

// IsDir reports whether h is a directory.
func (h FileHandle) IsDir() bool { return h.Kind == KindDirectory }

// HasTimestamp reports whether h carries a modification time.
func (h FileHandle) HasTimestamp() bool { return !h.LastModified.IsZero() }

// Backend lists and retrieves files.
type Backend interface {
	// Protocol returns the configured protocol name.
	Protocol() string
	// SupportsTimestamps reports whether listings carry LastModified.
	SupportsTimestamps() bool
	// List returns the entries directly under root (non-recursive).
	List(ctx context.Context, root string) ([]FileHandle, error)
	// Open streams the content of a listed file.
	Open(ctx context.Context, h FileHandle) (io.ReadCloser, error)
	// LocalPath returns a path on local disk when no staging is needed.
	LocalPath(h FileHandle) (string, bool)
	// Close releases clones, clients and temporary state.
	Close() error
}

// Options configure backend construction. Fields not used by the selected
// protocol are ignored.
type Options struct {
	Protocol string

	// Object storage.
	Anonymous       bool
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string

	// Git.
	GitRef string

	// Local filesystem.
	IgnoreFile string
}

type factory func(ctx context.Context, opts Options) (Backend, error)

var registry = map[string]factory{
	ProtocolFile: func(_ context.Context, opts Options) (Backend, error) {
		return NewLocal(opts.IgnoreFile)
	},
	ProtocolS3: func(ctx context.Context, opts Options) (Backend, error) {
		return NewS3(ctx, opts)
	},
	ProtocolGit: func(_ context.Context, opts Options) (Backend, error) {
		return NewGit(opts.GitRef), nil
	},
}

// Protocols returns the supported protocol names, sorted.
func Protocols() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether protocol has a backend.
func Supported(protocol string) bool {
	_, ok := registry[protocol]
	return ok
}

// New constructs the backend for opts.Protocol.
func New(ctx context.Context, opts Options) (Backend, error) {
	f, ok := registry[opts.Protocol]
	if !ok {
		return nil, errs.Config("protocol", opts.Protocol, "unsupported protocol, use one of "+strings.Join(Protocols(), ", "))
	}
	return f(ctx, opts)
}

func backendErr(protocol, path, op string, err error) error {
	return &errs.BackendError{Protocol: protocol, Path: path, Op: op, Err: err}
}
