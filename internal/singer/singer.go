// Package singer writes Singer tap messages and reads Singer state.
package singer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplicationKey is the record field bookmarks track.
const ReplicationKey = "updated_at"

// Property is one JSON schema property.
type Property struct {
	Type        []string `json:"type"`
	Description string   `json:"description,omitempty"`
}

// Schema is the JSON schema of an emitted record.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
}

// RecordSchema describes the chunk records. name is reserved and never set.
func RecordSchema() Schema {
	optional := []string{"string", "null"}
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"name":        {Type: optional},
			"filename":    {Type: optional, Description: "The name of the file"},
			"textcontent": {Type: optional},
			"updated_at":  {Type: optional, Description: "The last time the file was updated"},
		},
	}
}

type schemaMessage struct {
	Type               string   `json:"type"`
	Stream             string   `json:"stream"`
	Schema             Schema   `json:"schema"`
	KeyProperties      []string `json:"key_properties"`
	BookmarkProperties []string `json:"bookmark_properties"`
}

type recordMessage struct {
	Type          string `json:"type"`
	Stream        string `json:"stream"`
	Record        any    `json:"record"`
	TimeExtracted string `json:"time_extracted"`
}

type stateMessage struct {
	Type  string `json:"type"`
	Value State  `json:"value"`
}

// Writer emits one JSON message per line.
type Writer struct {
	enc *json.Encoder
	now func() time.Time
}

// NewWriter returns a Writer on w, usually stdout.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc, now: time.Now}
}

// WriteSchema announces the record schema for stream.
func (w *Writer) WriteSchema(stream string) error {
	err := w.enc.Encode(schemaMessage{
		Type:               "SCHEMA",
		Stream:             stream,
		Schema:             RecordSchema(),
		KeyProperties:      []string{"filename"},
		BookmarkProperties: []string{ReplicationKey},
	})
	if err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}

// WriteRecord emits one record.
func (w *Writer) WriteRecord(stream string, record any) error {
	err := w.enc.Encode(recordMessage{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// WriteState emits a state checkpoint.
func (w *Writer) WriteState(s State) error {
	if err := w.enc.Encode(stateMessage{Type: "STATE", Value: s}); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Bookmark is the per-stream replication position.
type Bookmark struct {
	ReplicationKey      string `json:"replication_key"`
	ReplicationKeyValue string `json:"replication_key_value"`
}

// State is the Singer state document.
type State struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// NewState returns a state holding value as stream's bookmark.
func NewState(stream string, value time.Time) State {
	return State{Bookmarks: map[string]Bookmark{
		stream: {
			ReplicationKey:      ReplicationKey,
			ReplicationKeyValue: value.UTC().Format(time.RFC3339Nano),
		},
	}}
}

// Watermark returns stream's bookmark. ok is false when there is none.
func (s State) Watermark(stream string) (t time.Time, ok bool, err error) {
	b, found := s.Bookmarks[stream]
	if !found || b.ReplicationKeyValue == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339Nano, b.ReplicationKeyValue)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse bookmark for %s: %w", stream, err)
	}
	return t, true, nil
}

// ReadState loads a state file. Both a bare state document and a STATE
// message captured from tap output are accepted.
func ReadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var doc struct {
		State
		Value *State `json:"value"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	if doc.Bookmarks == nil && doc.Value != nil {
		return *doc.Value, nil
	}
	return doc.State, nil
}
