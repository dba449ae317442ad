// Package selector decides which listed files a run processes.
package selector

import (
	"context"
	"iter"
	"regexp"
	"strings"
	"time"

	"textanywhere/internal/errs"
	"textanywhere/internal/storage"
)

// Criteria bound a selection. Zero times are absent bounds; a nil Pattern
// matches every name.
type Criteria struct {
	Root      string
	Pattern   *regexp.Regexp
	StartDate time.Time
	Watermark time.Time
}

// CompilePattern compiles a basename filter that must match at the start of
// the name but need not consume all of it.
func CompilePattern(p string) (*regexp.Regexp, error) {
	if p == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + p + ")")
	if err != nil {
		return nil, errs.Config("file_regex", p, err.Error())
	}
	return re, nil
}

// PatternSource returns the filter as the user wrote it.
func PatternSource(re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	s := re.String()
	if strings.HasPrefix(s, "^(?:") && strings.HasSuffix(s, ")") {
		return s[len("^(?:") : len(s)-1]
	}
	return s
}

// Eligible drops directories and empty files.
func Eligible(h storage.FileHandle) bool {
	return !h.IsDir() && h.Size > 0
}

// Matches reports whether h passes the name and time bounds of c. Time
// bounds only apply when timestamps is true.
func (c Criteria) Matches(h storage.FileHandle, timestamps bool) bool {
	if c.Pattern != nil && !c.Pattern.MatchString(h.Name) {
		return false
	}
	if !timestamps {
		return true
	}
	if !c.StartDate.IsZero() && !h.LastModified.After(c.StartDate) {
		return false
	}
	if !c.Watermark.IsZero() && !h.LastModified.After(c.Watermark) {
		return false
	}
	return true
}

// Select lists c.Root and returns the files to process in listing order.
// The listing and the empty-root check happen before Select returns; the
// name and time filters run as the sequence is consumed. An empty sequence
// after filtering is not an error.
func Select(ctx context.Context, b storage.Backend, c Criteria) (iter.Seq[storage.FileHandle], error) {
	handles, err := b.List(ctx, c.Root)
	if err != nil {
		return nil, err
	}

	eligible := make([]storage.FileHandle, 0, len(handles))
	for _, h := range handles {
		if Eligible(h) {
			eligible = append(eligible, h)
		}
	}
	if len(eligible) == 0 {
		return nil, &errs.NoFilesFoundError{Path: c.Root, Pattern: PatternSource(c.Pattern)}
	}

	timestamps := b.SupportsTimestamps()
	return func(yield func(storage.FileHandle) bool) {
		for _, h := range eligible {
			if ctx.Err() != nil {
				return
			}
			if !c.Matches(h, timestamps) {
				continue
			}
			if !yield(h) {
				return
			}
		}
	}, nil
}
