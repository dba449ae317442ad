// Package extract turns a local file into plain text. Decoding is chosen by
// file extension; unknown extensions fall back to plain text when the content
// sniffs as text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"textanywhere/internal/errs"
)

// Decoder converts the file at path into text.
type Decoder interface {
	Decode(ctx context.Context, path string) (string, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, path string) (string, error)

func (f DecoderFunc) Decode(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// Extractor decodes files through a Registry.
type Extractor struct {
	registry *Registry
}

// New returns an Extractor over the default formats.
func New() *Extractor {
	return NewWithRegistry(DefaultRegistry())
}

// NewWithRegistry returns an Extractor over r.
func NewWithRegistry(r *Registry) *Extractor {
	return &Extractor{registry: r}
}

// DefaultRegistry registers the built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("text", DecoderFunc(decodeText),
		"txt", "text", "md", "markdown", "csv", "tsv", "json", "jsonl", "log",
		"yaml", "yml", "xml", "rst", "ini", "toml", "srt", "vtt")
	r.Register("html", DecoderFunc(decodeHTML), "html", "htm", "xhtml")
	r.Register("pdf", DecoderFunc(decodePDF), "pdf")
	r.Register("docx", DecoderFunc(decodeDOCX), "docx")
	return r
}

// Registry returns the registry backing e.
func (e *Extractor) Registry() *Registry { return e.registry }

// Extract returns the normalised text of the file at path. Any failure to
// decode is a *errs.DecodeError; context cancellation is returned as is.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d := e.registry.Lookup(path)
	if d == nil {
		ok, err := sniffText(path)
		if err != nil {
			return "", &errs.DecodeError{Path: path, Err: err}
		}
		if !ok {
			return "", &errs.DecodeError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
		}
		d = e.registry.Format("text")
	}

	text, err := d.Decode(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var de *errs.DecodeError
		if errors.As(err, &de) {
			return "", err
		}
		return "", &errs.DecodeError{Path: path, Err: err}
	}
	return normalize(text), nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
