package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Git lists the committed tree of a repository at HEAD. Roots take the form
// url//subdir. A url naming an existing local repository is opened in place;
// anything else is cloned once into a temporary directory.
type Git struct {
	ref string

	mu    sync.Mutex
	repos map[string]*git.Repository
	temps []string
}

// NewGit creates a git backend. ref selects a branch to clone; empty means
// the remote default.
func NewGit(ref string) *Git {
	return &Git{ref: ref, repos: make(map[string]*git.Repository)}
}

func (g *Git) Protocol() string { return ProtocolGit }

func (g *Git) SupportsTimestamps() bool { return true }

// splitGitRoot separates the repository url from the in-repo directory.
func splitGitRoot(root string) (url, subdir string) {
	off := 0
	if i := strings.Index(root, "://"); i >= 0 {
		off = i + len("://")
	}
	j := strings.Index(root[off:], "//")
	if j < 0 {
		return root, ""
	}
	return root[:off+j], strings.Trim(root[off+j+2:], "/")
}

func (g *Git) open(ctx context.Context, url string) (*git.Repository, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.repos[url]; ok {
		return r, nil
	}
	if r, err := git.PlainOpen(url); err == nil {
		g.repos[url] = r
		return r, nil
	}

	dir, err := os.MkdirTemp("", "textanywhere-git-")
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	opts := &git.CloneOptions{URL: url, SingleBranch: true}
	if g.ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.ref)
	}
	r, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	g.temps = append(g.temps, dir)
	g.repos[url] = r
	return r, nil
}

func headTree(r *git.Repository) (*object.Tree, plumbing.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.CommitObject(head.Hash())
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("load HEAD tree: %w", err)
	}
	return tree, head.Hash(), nil
}

func (g *Git) List(ctx context.Context, root string) ([]FileHandle, error) {
	url, sub := splitGitRoot(root)
	r, err := g.open(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, backendErr(ProtocolGit, url, "clone", err)
	}
	tree, head, err := headTree(r)
	if err != nil {
		return nil, backendErr(ProtocolGit, root, "list", err)
	}
	if sub != "" {
		tree, err = tree.Tree(sub)
		if err != nil {
			return nil, backendErr(ProtocolGit, root, "list", err)
		}
	}

	var handles []FileHandle
	for i := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &tree.Entries[i]
		full := path.Join(sub, e.Name)
		h := FileHandle{Path: url + "//" + full, Name: e.Name}

		switch e.Mode {
		case filemode.Dir:
			h.Kind = KindDirectory
		case filemode.Regular, filemode.Executable, filemode.Deprecated:
			f, err := tree.TreeEntryFile(e)
			if err != nil {
				return nil, backendErr(ProtocolGit, h.Path, "stat", err)
			}
			when, err := lastCommitTime(r, head, full)
			if err != nil {
				return nil, backendErr(ProtocolGit, h.Path, "log", err)
			}
			h.Kind = KindRegular
			h.Size = f.Size
			h.LastModified = when
		default:
			continue // submodules and symlinks
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// lastCommitTime returns the committer time of the newest commit reachable
// from from that touched name.
func lastCommitTime(r *git.Repository, from plumbing.Hash, name string) (time.Time, error) {
	iter, err := r.Log(&git.LogOptions{From: from, FileName: &name})
	if err != nil {
		return time.Time{}, err
	}
	defer iter.Close()
	c, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return c.Committer.When.UTC(), nil
}

func (g *Git) Open(ctx context.Context, h FileHandle) (io.ReadCloser, error) {
	url, name := splitGitRoot(h.Path)
	r, err := g.open(ctx, url)
	if err != nil {
		return nil, backendErr(ProtocolGit, url, "clone", err)
	}
	tree, _, err := headTree(r)
	if err != nil {
		return nil, backendErr(ProtocolGit, h.Path, "fetch", err)
	}
	f, err := tree.File(name)
	if err != nil {
		return nil, backendErr(ProtocolGit, h.Path, "fetch", err)
	}
	rc, err := f.Reader()
	if err != nil {
		return nil, backendErr(ProtocolGit, h.Path, "fetch", err)
	}
	return rc, nil
}

// LocalPath is never offered: the working tree may differ from HEAD.
func (g *Git) LocalPath(FileHandle) (string, bool) { return "", false }

func (g *Git) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for _, dir := range g.temps {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.temps = nil
	g.repos = make(map[string]*git.Repository)
	return firstErr
}
