package singer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterMessages(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	if err := w.WriteSchema("file"); err != nil {
		t.Fatalf("schema: %v", err)
	}
	rec := map[string]string{"filename": "a.txt", "textcontent": "<b> & co"}
	if err := w.WriteRecord("file", rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.WriteState(NewState("file", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("state: %v", err)
	}

	raw := buf.String()
	if !bytes.Contains([]byte(raw), []byte(`"<b> & co"`)) {
		t.Errorf("html should not be escaped: %s", raw)
	}

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, typ := range []string{"SCHEMA", "RECORD", "STATE"} {
		if lines[i]["type"] != typ {
			t.Errorf("line %d type = %v, want %s", i, lines[i]["type"], typ)
		}
	}
	if lines[1]["time_extracted"] != "2024-06-01T12:00:00Z" {
		t.Errorf("time_extracted = %v", lines[1]["time_extracted"])
	}
	value := lines[2]["value"].(map[string]any)["bookmarks"].(map[string]any)["file"].(map[string]any)
	if value["replication_key"] != "updated_at" || value["replication_key_value"] != "2024-01-01T00:00:00Z" {
		t.Errorf("bookmark = %v", value)
	}
}

func TestReadState(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, "state.json")
	os.WriteFile(bare, []byte(`{"bookmarks":{"file":{"replication_key":"updated_at","replication_key_value":"2024-02-03T04:05:06.5Z"}}}`), 0o644)
	wrapped := filepath.Join(dir, "message.json")
	os.WriteFile(wrapped, []byte(`{"type":"STATE","value":{"bookmarks":{"file":{"replication_key":"updated_at","replication_key_value":"2024-02-03T04:05:06.5Z"}}}}`), 0o644)

	want := time.Date(2024, 2, 3, 4, 5, 6, 500000000, time.UTC)
	for _, p := range []string{bare, wrapped} {
		s, err := ReadState(p)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		got, ok, err := s.Watermark("file")
		if err != nil || !ok || !got.Equal(want) {
			t.Fatalf("%s: watermark %v %v %v", p, got, ok, err)
		}
		if _, ok, _ := s.Watermark("other"); ok {
			t.Fatalf("%s: unexpected bookmark for other stream", p)
		}
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"bookmarks":{"file":{"replication_key_value":"yesterday"}}}`), 0o644)
	s, err := ReadState(bad)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, _, err := s.Watermark("file"); err == nil {
		t.Fatalf("unparseable bookmark should fail")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog("docs")
	if len(c.Streams) != 1 {
		t.Fatalf("streams = %d", len(c.Streams))
	}
	e := c.Streams[0]
	if e.TapStreamID != "docs" || e.ReplicationKey != "updated_at" || e.KeyProperties[0] != "filename" {
		t.Fatalf("entry = %+v", e)
	}
	for _, name := range []string{"name", "filename", "textcontent", "updated_at"} {
		if _, ok := e.Schema.Properties[name]; !ok {
			t.Errorf("schema missing %s", name)
		}
	}
	if _, err := json.Marshal(c); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}
