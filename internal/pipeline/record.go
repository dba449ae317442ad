package pipeline

import (
	"time"

	"textanywhere/internal/storage"
)

// Record is one emitted chunk.
type Record struct {
	Filename    string `json:"filename"`
	TextContent string `json:"textcontent"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// FormatTimestamp renders a replication value the way records and state
// carry it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewRecord builds the record for one chunk of h, named by its basename.
// UpdatedAt is left empty when the backend supplies no timestamps.
func NewRecord(h storage.FileHandle, text string, timestamps bool) Record {
	r := Record{Filename: h.Name, TextContent: text}
	if timestamps && h.HasTimestamp() {
		r.UpdatedAt = FormatTimestamp(h.LastModified)
	}
	return r
}
