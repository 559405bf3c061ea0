// Package transcript records a playthrough to disk: one JSONL line per
// stage as it is played, plus a summary file when the session terminates.
// Transcripts are a convenience record for the player (and QA); nothing in
// the engine reads them back.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

const (
	transcriptFilename = "transcript.jsonl"
	summaryFilename    = "summary.json"
)

// StageRecord is one transcript line, written after each folded advance.
type StageRecord struct {
	StageNum       int       `json:"stage_num"`
	Narrative      string    `json:"narrative"`
	Expression     string    `json:"expression"`
	ActionKind     string    `json:"action_kind,omitempty"`
	ChoiceText     string    `json:"choice_text,omitempty"`
	FreeInputText  string    `json:"free_input_text,omitempty"`
	AffectionDelta int       `json:"affection_delta"`
	AffectionScore int       `json:"affection_score"`
	JudgeComment   string    `json:"judge_comment,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Summary is the terminal record for one session.
type Summary struct {
	SessionID      string          `json:"session_id"`
	CounterpartID  string          `json:"counterpart_id"`
	ScenarioID     string          `json:"scenario_id"`
	StagesPlayed   int             `json:"stages_played"`
	IsExtended     bool            `json:"is_extended"`
	AffectionScore int             `json:"affection_score"`
	Abandoned      bool            `json:"abandoned,omitempty"`
	Ending         *models.Ending  `json:"ending,omitempty"`
	Rewards        *models.Rewards `json:"rewards,omitempty"`
	StorySummary   string          `json:"story_summary,omitempty"`
	UnlockedPhoto  string          `json:"unlocked_photo,omitempty"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Writer appends stage records for one session and writes the summary on
// close. Writes are synchronized; the CLI and any pause/cleanup path may
// touch it from different goroutines.
type Writer struct {
	dir    string
	file   *os.File
	mu     sync.Mutex
	logger *slog.Logger
}

// NewWriter creates a session directory under dataDir and opens the
// transcript file. The directory name embeds the start time and a short
// random suffix, mirroring the session layout used for pointers.
func NewWriter(dataDir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	shortID := uuid.NewString()[:8]
	dir := filepath.Join(dataDir, fmt.Sprintf("date_%s_%s", timestamp, shortID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, transcriptFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	logger.Info("Created transcript", "path", dir)
	return &Writer{
		dir:    dir,
		file:   file,
		logger: logger.With("component", "transcript"),
	}, nil
}

// Dir returns the session directory path.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteStage appends one stage record.
func (w *Writer) WriteStage(record StageRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	record.RecordedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal stage record: %w", err)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write stage record: %w", err)
	}
	return nil
}

// WriteSummary writes the terminal summary next to the transcript.
func (w *Writer) WriteSummary(summary Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	summary.FinishedAt = time.Now()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, summaryFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Close syncs and closes the transcript file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		w.logger.Warn("Failed to sync transcript file", "error", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript file: %w", err)
	}
	return nil
}
