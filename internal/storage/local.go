package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/monochromegane/go-gitignore"

	"textanywhere/internal/errs"
)

// Local lists a directory on the local filesystem.
type Local struct {
	ignoreFile string
}

// NewLocal creates a local backend. ignoreFile, when set, is a file in
// .gitignore syntax whose patterns are resolved relative to the listed root.
func NewLocal(ignoreFile string) (*Local, error) {
	if ignoreFile != "" {
		if _, err := os.Stat(ignoreFile); err != nil {
			return nil, errs.Config("ignore_file", ignoreFile, err.Error())
		}
	}
	return &Local{ignoreFile: ignoreFile}, nil
}

func (l *Local) Protocol() string { return ProtocolFile }

func (l *Local) SupportsTimestamps() bool { return true }

// List returns the entries of root. A root that is itself a file lists as
// that single file. Symlinks are followed; dangling links and special files
// are skipped.
func (l *Local) List(ctx context.Context, root string) ([]FileHandle, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, backendErr(ProtocolFile, root, "list", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, backendErr(ProtocolFile, root, "list", err)
	}
	if !info.IsDir() {
		if h, ok := localHandle(abs, info); ok {
			return []FileHandle{h}, nil
		}
		return nil, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, backendErr(ProtocolFile, root, "list", err)
	}

	var matcher gitignore.IgnoreMatcher
	if l.ignoreFile != "" {
		matcher, err = gitignore.NewGitIgnore(l.ignoreFile, abs)
		if err != nil {
			return nil, errs.Config("ignore_file", l.ignoreFile, err.Error())
		}
	}

	handles := make([]FileHandle, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(abs, e.Name())
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // dangling symlink
			}
			return nil, backendErr(ProtocolFile, p, "stat", err)
		}
		if matcher != nil && matcher.Match(p, info.IsDir()) {
			continue
		}
		if h, ok := localHandle(p, info); ok {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

func localHandle(path string, info fs.FileInfo) (FileHandle, bool) {
	h := FileHandle{
		Path:         path,
		Name:         filepath.Base(path),
		LastModified: info.ModTime().UTC(),
	}
	switch {
	case info.IsDir():
		h.Kind = KindDirectory
	case info.Mode().IsRegular():
		h.Kind = KindRegular
		h.Size = info.Size()
	default:
		return FileHandle{}, false
	}
	return h, true
}

func (l *Local) Open(_ context.Context, h FileHandle) (io.ReadCloser, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, backendErr(ProtocolFile, h.Path, "open", err)
	}
	return f, nil
}

func (l *Local) LocalPath(h FileHandle) (string, bool) { return h.Path, true }

func (l *Local) Close() error { return nil }
