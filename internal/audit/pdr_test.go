package audit

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fentz26/autopilot/internal/store"
)

func TestRecord(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	w := NewPDRWriter(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	inputs := map[string]int{"tasks": 2}

	rec := w.Record("agent.update", inputs, OutcomeSuccess, "agent-1", "")
	if rec == nil {
		t.Fatal("Expected record")
	}
	if rec.InputsHash != hashInputs(inputs) || len(rec.InputsHash) != 64 {
		t.Errorf("Unexpected hash %q", rec.InputsHash)
	}

	recs, err := w.Recent("agent-1", 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != OutcomeSuccess {
		t.Errorf("Unexpected records: %+v", recs)
	}
}

func TestHashInputs_Unmarshalable(t *testing.T) {
	if got := hashInputs(make(chan int)); got != "hash_error" {
		t.Errorf("Expected hash_error, got %q", got)
	}
}
