package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"textanywhere/internal/store"
)

func TestStartingWatermark(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	stored := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := st.SetWatermark("file", stored); err != nil {
		t.Fatal(err)
	}

	got, err := startingWatermark("", "file", st)
	if err != nil || !got.Equal(stored) {
		t.Fatalf("from db = %v, %v", got, err)
	}

	statePath := filepath.Join(dir, "state.json")
	state := `{"bookmarks":{"file":{"replication_key":"updated_at","replication_key_value":"2024-06-01T00:00:00Z"}}}`
	if err := os.WriteFile(statePath, []byte(state), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = startingWatermark(statePath, "file", st)
	if err != nil || !got.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from state file = %v, %v", got, err)
	}

	// A state file without this stream falls back to the db.
	got, err = startingWatermark(statePath, "other", st)
	if err != nil || !got.IsZero() {
		t.Fatalf("other stream = %v, %v", got, err)
	}
}
