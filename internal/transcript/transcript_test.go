package transcript

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWriter_StagesAndSummary(t *testing.T) {
	dataDir := t.TempDir()
	w, err := NewWriter(dataDir, testLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	records := []StageRecord{
		{StageNum: 1, Narrative: "The cafe hums.", ActionKind: "choose", ChoiceText: "Compliment her outfit", AffectionDelta: 5, AffectionScore: 55},
		{StageNum: 2, Narrative: "She smiles.", ActionKind: "free_input", FreeInputText: "tell me more", AffectionDelta: -2, AffectionScore: 53, JudgeComment: "she seems confused"},
	}
	for _, rec := range records {
		if err := w.WriteStage(rec); err != nil {
			t.Fatalf("WriteStage failed: %v", err)
		}
	}

	summary := Summary{
		SessionID:      "s-1",
		CounterpartID:  "mika",
		ScenarioID:     "cafe",
		StagesPlayed:   2,
		AffectionScore: 53,
		Ending:         &models.Ending{Kind: "good"},
		Rewards:        &models.Rewards{XP: 100, Affection: 3},
	}
	if err := w.WriteSummary(summary); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(w.Dir()), "date_") {
		t.Errorf("Unexpected session directory name: %s", w.Dir())
	}

	// One JSONL line per stage, in play order.
	f, err := os.Open(filepath.Join(w.Dir(), "transcript.jsonl"))
	if err != nil {
		t.Fatalf("Failed to open transcript: %v", err)
	}
	defer f.Close()

	var lines []StageRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec StageRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Corrupt transcript line: %v", err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 transcript lines, got %d", len(lines))
	}
	if lines[0].StageNum != 1 || lines[1].StageNum != 2 {
		t.Errorf("Stage order not preserved: %+v", lines)
	}
	if lines[1].JudgeComment != "she seems confused" {
		t.Errorf("Expected judge comment recorded, got %q", lines[1].JudgeComment)
	}
	if lines[0].RecordedAt.IsZero() {
		t.Error("Expected RecordedAt stamped on write")
	}

	data, err := os.ReadFile(filepath.Join(w.Dir(), "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Corrupt summary: %v", err)
	}
	if got.SessionID != "s-1" || got.StagesPlayed != 2 || got.Ending == nil || got.Ending.Kind != "good" {
		t.Errorf("Summary round trip mismatch: %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("Expected FinishedAt stamped on write")
	}
}

func TestWriter_DistinctSessionDirectories(t *testing.T) {
	dataDir := t.TempDir()

	a, err := NewWriter(dataDir, testLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer a.Close()
	b, err := NewWriter(dataDir, testLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer b.Close()

	if a.Dir() == b.Dir() {
		t.Errorf("Concurrent sessions share a directory: %s", a.Dir())
	}
}
