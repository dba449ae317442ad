package selector

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"textanywhere/internal/errs"
	"textanywhere/internal/storage"
)

type listBackend struct {
	handles    []storage.FileHandle
	timestamps bool
	err        error
	lists      int
}

func (b *listBackend) Protocol() string { return "fake" }
func (b *listBackend) SupportsTimestamps() bool { return b.timestamps }
func (b *listBackend) List(context.Context, string) ([]storage.FileHandle, error) {
	b.lists++
	return b.handles, b.err
}
func (b *listBackend) Open(context.Context, storage.FileHandle) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (b *listBackend) LocalPath(storage.FileHandle) (string, bool) { return "", false }
func (b *listBackend) Close() error { return nil }

var (
	jan = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func file(name string, size int64, mod time.Time) storage.FileHandle {
	return storage.FileHandle{Path: "/root/" + name, Name: name, Size: size, LastModified: mod}
}

func collect(t *testing.T, b storage.Backend, c Criteria) []string {
	t.Helper()
	seq, err := Select(context.Background(), b, c)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	var out []string
	for h := range seq {
		out = append(out, h.Name)
	}
	return out
}

func TestCompilePatternMatchesFromStart(t *testing.T) {
	re, err := CompilePattern(`.*\.csv`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cases := map[string]bool{
		"data.csv":    true,
		"data.csv.gz": true,
		"DATA.CSV":    false,
		"data.txt":    false,
	}
	for name, want := range cases {
		if got := re.MatchString(name); got != want {
			t.Errorf("%s: match = %v, want %v", name, got, want)
		}
	}

	prefix, _ := CompilePattern("report")
	if prefix.MatchString("q1-report.txt") {
		t.Errorf("pattern must anchor at the start of the name")
	}
	if PatternSource(prefix) != "report" {
		t.Errorf("source = %q", PatternSource(prefix))
	}

	if _, err := CompilePattern("("); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("bad pattern: err = %v", err)
	}
	if re, err := CompilePattern(""); re != nil || err != nil {
		t.Fatalf("empty pattern should mean no filter")
	}
}

func TestSelectFiltersAndKeepsOrder(t *testing.T) {
	b := &listBackend{
		timestamps: true,
		handles: []storage.FileHandle{
			file("c.csv", 10, mar),
			{Path: "/root/dir.csv", Name: "dir.csv", Kind: storage.KindDirectory, LastModified: mar},
			file("empty.csv", 0, mar),
			file("a.csv", 10, feb),
			file("b.txt", 10, mar),
			file("old.csv", 10, jan),
		},
	}
	re, _ := CompilePattern(`.*\.csv`)
	got := collect(t, b, Criteria{Root: "/root", Pattern: re, Watermark: jan})
	if !slices.Equal(got, []string{"c.csv", "a.csv"}) {
		t.Fatalf("selected %v", got)
	}
}

func TestSelectBoundsAreStrict(t *testing.T) {
	b := &listBackend{timestamps: true, handles: []storage.FileHandle{file("a", 1, feb), file("b", 1, mar)}}

	if got := collect(t, b, Criteria{StartDate: feb}); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("start date: %v", got)
	}
	if got := collect(t, b, Criteria{StartDate: jan, Watermark: feb}); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("both bounds: %v", got)
	}
	if got := collect(t, b, Criteria{Watermark: mar}); len(got) != 0 {
		t.Fatalf("watermark at newest file should select nothing: %v", got)
	}
}

func TestSelectIgnoresTimeBoundsWithoutTimestamps(t *testing.T) {
	b := &listBackend{handles: []storage.FileHandle{file("a", 1, time.Time{}), file("b", 1, time.Time{})}}
	got := collect(t, b, Criteria{StartDate: mar, Watermark: mar})
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("selected %v", got)
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	b := &listBackend{timestamps: true, handles: []storage.FileHandle{file("a", 1, feb), file("b", 1, mar)}}
	c := Criteria{Watermark: jan}
	first := collect(t, b, c)
	second := collect(t, b, c)
	if !slices.Equal(first, second) || b.lists != 2 {
		t.Fatalf("first %v second %v lists %d", first, second, b.lists)
	}
}

func TestSelectNoFilesFound(t *testing.T) {
	cases := map[string][]storage.FileHandle{
		"empty root": nil,
		"only dirs":  {{Name: "sub", Kind: storage.KindDirectory}},
		"zero byte":  {file("empty.txt", 0, feb)},
	}
	for name, handles := range cases {
		_, err := Select(context.Background(), &listBackend{handles: handles}, Criteria{Root: "/data"})
		var nf *errs.NoFilesFoundError
		if !errors.As(err, &nf) || nf.Path != "/data" {
			t.Errorf("%s: err = %v, want NoFilesFoundError", name, err)
		}
	}
}

func TestSelectFilteredToNothingIsNotAnError(t *testing.T) {
	b := &listBackend{timestamps: true, handles: []storage.FileHandle{file("a.txt", 1, feb)}}
	re, _ := CompilePattern(`.*\.csv`)
	if got := collect(t, b, Criteria{Pattern: re}); len(got) != 0 {
		t.Fatalf("selected %v", got)
	}
}

func TestSelectPropagatesListError(t *testing.T) {
	boom := &errs.BackendError{Protocol: "fake", Path: "/x", Op: "list", Err: errors.New("denied")}
	_, err := Select(context.Background(), &listBackend{err: boom}, Criteria{Root: "/x"})
	if !errors.Is(err, errs.ErrBackendUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
