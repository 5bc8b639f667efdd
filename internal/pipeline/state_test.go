package pipeline

import (
	"path/filepath"
	"testing"
)

func TestState_FreshWhenMissing(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	if s.StartedAt.IsZero() {
		t.Error("expected started_at to be set")
	}
	if s.IsProcessed("anything") {
		t.Error("fresh state should have no processed files")
	}
}

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := LoadState(path)
	if err != nil {
		t.Fatal(err)
	}
	s.MarkProcessed("/exports/a.json")
	s.RecordsProcessed = 7
	s.AddError("bad record")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.IsProcessed("/exports/a.json") {
		t.Error("processed file lost across save/load")
	}
	if loaded.IsProcessed("/exports/b.json") {
		t.Error("unexpected processed file")
	}
	if loaded.RecordsProcessed != 7 {
		t.Errorf("records = %d, want 7", loaded.RecordsProcessed)
	}
	if len(loaded.Errors) != 1 || loaded.Errors[0] != "bad record" {
		t.Errorf("errors = %v", loaded.Errors)
	}
	if loaded.LastProcessedAt.IsZero() {
		t.Error("expected last_processed_at to be set")
	}
}
