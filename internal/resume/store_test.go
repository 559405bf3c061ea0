package resume

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "pointers"), testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestStore_PutGetClear(t *testing.T) {
	store := newTestStore(t)

	if ptr, err := store.Get("mika"); err != nil || ptr != nil {
		t.Fatalf("Expected (nil, nil) for missing pointer, got %+v, %v", ptr, err)
	}

	in := &models.SessionPointer{
		SessionID:     "s-1",
		CounterpartID: "mika",
		ScenarioID:    "cafe",
		StartedAt:     time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		LastSeenStage: 3,
	}
	if err := store.Put(in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, err := store.Get("mika")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.SessionID != "s-1" || out.ScenarioID != "cafe" || out.LastSeenStage != 3 {
		t.Errorf("Round trip mismatch: %+v", out)
	}
	if !out.StartedAt.Equal(in.StartedAt) {
		t.Errorf("StartedAt mismatch: %v", out.StartedAt)
	}
	if out.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt stamped on Put")
	}

	// Put replaces, never accumulates.
	in.LastSeenStage = 4
	if err := store.Put(in); err != nil {
		t.Fatalf("Second Put failed: %v", err)
	}
	out, _ = store.Get("mika")
	if out.LastSeenStage != 4 {
		t.Errorf("Expected replaced pointer, got %+v", out)
	}

	if err := store.Clear("mika"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ptr, _ := store.Get("mika"); ptr != nil {
		t.Errorf("Expected pointer gone after Clear, got %+v", ptr)
	}

	// Clearing again is not an error.
	if err := store.Clear("mika"); err != nil {
		t.Errorf("Clear of missing pointer should succeed, got %v", err)
	}
}

func TestStore_ListOrdersByRecency(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"aoi", "mika", "rin"} {
		if err := store.Put(&models.SessionPointer{SessionID: "s-" + id, CounterpartID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	pointers, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pointers) != 3 {
		t.Fatalf("Expected 3 pointers, got %d", len(pointers))
	}
	if pointers[0].CounterpartID != "rin" || pointers[2].CounterpartID != "aoi" {
		t.Errorf("Expected most recent first, got %s, %s, %s",
			pointers[0].CounterpartID, pointers[1].CounterpartID, pointers[2].CounterpartID)
	}
}

func TestStore_SanitizesCounterpartIDs(t *testing.T) {
	store := newTestStore(t)

	ptr := &models.SessionPointer{SessionID: "s-1", CounterpartID: "../evil/../../name"}
	if err := store.Put(ptr); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	out, err := store.Get("../evil/../../name")
	if err != nil || out == nil {
		t.Fatalf("Expected sanitized round trip, got %+v, %v", out, err)
	}
	if out.SessionID != "s-1" {
		t.Errorf("Round trip mismatch: %+v", out)
	}

	entries, err := os.ReadDir(filepath.Join(store.dir))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Base(e.Name()) != e.Name() {
			t.Errorf("Pointer escaped the store directory: %s", e.Name())
		}
	}
}
