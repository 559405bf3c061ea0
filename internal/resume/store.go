// Package resume reconstructs client session state after an interruption:
// the Controller rebuilds a Session from the authoritative server snapshot,
// and the Store keeps a small local pointer file per counterpart so the
// client can offer "continue?" after a crash without a network round trip.
package resume

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

const pointerSuffix = ".pointer.json"

// Store persists active-session pointers under the data directory, one JSON
// file per counterpart. Writes are atomic (temp file + rename) so a crash
// mid-write can never leave a torn pointer behind. Pointers hold identity
// only; the server snapshot stays authoritative for all progress.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a pointer store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pointer directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "pointer_store"),
	}, nil
}

// Put writes the pointer for its counterpart, replacing any previous one.
func (s *Store) Put(p *models.SessionPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}

	path := s.path(p.CounterpartID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp pointer: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename pointer: %w", err)
	}

	s.logger.Debug("Pointer saved",
		"counterpart_id", p.CounterpartID,
		"session_id", p.SessionID,
		"last_seen_stage", p.LastSeenStage)
	return nil
}

// Get reads the pointer for a counterpart. Returns (nil, nil) when none
// exists.
func (s *Store) Get(counterpartID string) (*models.SessionPointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(counterpartID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pointer: %w", err)
	}

	var p models.SessionPointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pointer: %w", err)
	}
	return &p, nil
}

// Clear removes the pointer for a counterpart. Clearing a missing pointer
// is not an error.
func (s *Store) Clear(counterpartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(counterpartID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pointer: %w", err)
	}
	if err == nil {
		s.logger.Debug("Pointer cleared", "counterpart_id", counterpartID)
	}
	return nil
}

// List returns all stored pointers, most recently updated first.
func (s *Store) List() ([]*models.SessionPointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pointer directory: %w", err)
	}

	var pointers []*models.SessionPointer
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), pointerSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable pointer", "file", entry.Name(), "error", err)
			continue
		}
		var p models.SessionPointer
		if err := json.Unmarshal(data, &p); err != nil {
			s.logger.Warn("Skipping corrupt pointer", "file", entry.Name(), "error", err)
			continue
		}
		pointers = append(pointers, &p)
	}

	for i := 1; i < len(pointers); i++ {
		for j := i; j > 0 && pointers[j].UpdatedAt.After(pointers[j-1].UpdatedAt); j-- {
			pointers[j], pointers[j-1] = pointers[j-1], pointers[j]
		}
	}
	return pointers, nil
}

func (s *Store) path(counterpartID string) string {
	return filepath.Join(s.dir, sanitize(counterpartID)+pointerSuffix)
}

// sanitize keeps counterpart IDs filesystem-safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
