package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"textanywhere/internal/cache"
	"textanywhere/internal/errs"
)

func TestLoadDefaults(t *testing.T) {
	v := New()
	v.Set(KeyProtocol, "file")
	v.Set(KeyFilePath, "/data")

	c, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.StreamName != "file" || c.ChunkSize != 2000 || c.ChunkOverlap != 500 {
		t.Fatalf("defaults = %+v", c)
	}
	if c.Strategy() != cache.StrategyOnce || c.S3Region != "us-east-1" || c.StateDB != DefaultStateDB {
		t.Fatalf("defaults = %+v", c)
	}
	if c.Pattern() != nil || !c.Start().IsZero() {
		t.Fatalf("optional bounds should be unset")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TEXTANYWHERE_PROTOCOL", "s3")
	t.Setenv("TEXTANYWHERE_FILEPATH", "bucket/docs")
	t.Setenv("TEXTANYWHERE_CHUNK_SIZE", "100")
	t.Setenv("TEXTANYWHERE_CHUNK_OVERLAP", "10")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	c, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Protocol != "s3" || c.FilePath != "bucket/docs" || c.ChunkSize != 100 || c.ChunkOverlap != 10 {
		t.Fatalf("config = %+v", c)
	}
	opts := c.StorageOptions()
	if opts.AccessKeyID != "AKIDEXAMPLE" || opts.SecretAccessKey != "secret" {
		t.Fatalf("credentials = %+v", opts)
	}
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tap.yaml")
	os.WriteFile(p, []byte("protocol: git\nfilepath: https://example.com/repo.git//docs\nfile_regex: '.*\\.md'\nstart_date: '2024-01-15'\n"), 0o644)

	v := New()
	if err := ReadFile(v, p); err != nil {
		t.Fatalf("read: %v", err)
	}
	c, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Pattern().MatchString("notes.md") || c.Pattern().MatchString("notes.txt") {
		t.Fatalf("pattern = %v", c.Pattern())
	}
	if !c.Start().Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", c.Start())
	}
	crit := c.Criteria(time.Time{})
	if crit.Root != "https://example.com/repo.git//docs" || crit.Pattern == nil {
		t.Fatalf("criteria = %+v", crit)
	}

	if err := ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("missing file: err = %v", err)
	}
}

func TestChunkSettingsFromJSON(t *testing.T) {
	dir := t.TempDir()
	load := func(body string) (*Config, error) {
		p := filepath.Join(dir, "tap.json")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		v := New()
		if err := ReadFile(v, p); err != nil {
			t.Fatalf("read: %v", err)
		}
		return Load(v)
	}

	c, err := load(`{"protocol": "file", "filepath": "/data", "chunk_size": 300, "chunk_overlap": 50.0}`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ChunkSize != 300 || c.ChunkOverlap != 50 {
		t.Fatalf("chunk settings = %d/%d", c.ChunkSize, c.ChunkOverlap)
	}

	_, err = load(`{"protocol": "file", "filepath": "/data", "chunk_size": 10.7}`)
	var ce *errs.ConfigError
	if !errors.As(err, &ce) || ce.Field != KeyChunkSize || ce.Value != "10.7" {
		t.Fatalf("fractional chunk_size: err = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]struct {
		key, value string
		field      string
	}{
		"missing protocol": {KeyProtocol, "", KeyProtocol},
		"unknown protocol": {KeyProtocol, "ftp", KeyProtocol},
		"empty filepath":   {KeyFilePath, "", KeyFilePath},
		"bad regex":        {KeyFileRegex, "(", KeyFileRegex},
		"bad strategy":     {KeyCachingStrategy, "forever", KeyCachingStrategy},
		"bad date":         {KeyStartDate, "last tuesday", KeyStartDate},
		"overlap too big":  {KeyChunkOverlap, "2000", "chunk_overlap"},
		"size not numeric": {KeyChunkSize, "big", KeyChunkSize},
	}
	for name, tc := range cases {
		v := New()
		v.Set(KeyProtocol, "file")
		v.Set(KeyFilePath, "/data")
		v.Set(tc.key, tc.value)

		_, err := Load(v)
		var ce *errs.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("%s: err = %v, want ConfigError", name, err)
			continue
		}
		if ce.Field != tc.field {
			t.Errorf("%s: field = %q, want %q", name, ce.Field, tc.field)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2024-03-01T10:00:00Z":      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01T12:00:00+02:00": time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01T10:00:00":       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		if err != nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", in, got, err)
		}
	}
}
