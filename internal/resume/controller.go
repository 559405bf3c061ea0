package resume

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/internal/metrics"
	"github.com/lumen-chat/rendezvous/internal/shuffle"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

// Controller rebuilds a Session from the authoritative server snapshot.
// Both entry points that lead back into a mid-flight session (an
// "active session exists" answer from the eligibility gate, and an explicit
// resume of a known session ID) route through here so there is exactly one
// reconstruction path.
type Controller struct {
	apiClient *api.Client
	store     *Store
	rng       *rand.Rand
	logger    *slog.Logger
}

// NewController creates a resumption controller. The rng seeds the fresh
// option permutation applied to the resumed stage.
func NewController(apiClient *api.Client, store *Store, rng *rand.Rand, logger *slog.Logger) *Controller {
	return &Controller{
		apiClient: apiClient,
		store:     store,
		rng:       rng,
		logger:    logger.With("component", "resume"),
	}
}

// Resume fetches the session snapshot and reconstructs local state. If the
// server no longer offers the session, the stale local pointer (if any) is
// cleared before the error is returned.
func (c *Controller) Resume(ctx context.Context, sessionID string) (*models.Session, error) {
	snap, err := c.apiClient.Snapshot(ctx, sessionID)
	if err != nil {
		if apiErr, ok := err.(*api.APIError); ok && apiErr.StatusCode == 404 {
			c.dropStalePointer(sessionID)
			return nil, fmt.Errorf("session %s is no longer resumable: %w", sessionID, err)
		}
		return nil, fmt.Errorf("failed to fetch session snapshot: %w", err)
	}

	sess := Rebuild(snap, c.rng)

	if c.store != nil {
		ptr := &models.SessionPointer{
			SessionID:     sess.ID,
			CounterpartID: sess.CounterpartID,
			ScenarioID:    sess.ScenarioID,
			StartedAt:     snap.StartedAt,
			LastSeenStage: sess.CurrentStageNum,
		}
		if err := c.store.Put(ptr); err != nil {
			c.logger.Warn("Failed to refresh session pointer", "error", err)
		}
	}

	metrics.RecordResume()
	c.logger.Info("Session resumed",
		"session_id", sess.ID,
		"counterpart_id", sess.CounterpartID,
		"current_stage", sess.CurrentStageNum,
		"is_extended", sess.IsExtended,
		"phase", models.PhaseOf(sess))
	return sess, nil
}

// Rebuild reconstructs a Session from a snapshot without re-deriving any
// value the server provides. Idempotent: rebuilding the same snapshot twice
// yields equivalent sessions, modulo the intentionally fresh option
// permutation on the current stage.
//
// A snapshot never encodes a finale or ending; a session that reached those
// is no longer active and the server would not serve it here. The phase
// therefore falls out of stage position alone: at or past the base stage
// count without an extension means the session is parked at the checkpoint,
// anything else is mid-play.
func Rebuild(snap *api.SnapshotResponse, rng *rand.Rand) *models.Session {
	totalStages := models.BaseTotalStages
	if snap.IsExtended {
		totalStages = models.ExtendedTotalStages
	}

	stages := make([]models.Stage, len(snap.Stages))
	for i := range snap.Stages {
		stages[i] = snap.Stages[i].ToModel()
	}

	sess := &models.Session{
		ID:              snap.SessionID,
		CounterpartID:   snap.CounterpartID,
		ScenarioID:      snap.ScenarioID,
		CurrentStageNum: snap.CurrentStage,
		TotalStages:     totalStages,
		IsExtended:      snap.IsExtended,
		AffectionScore:  snap.Affection,
		Stages:          stages,
		AtCheckpoint:    snap.CurrentStage >= models.BaseTotalStages && !snap.IsExtended,
	}

	shuffle.Rematerialize(sess.CurrentStage(), rng)
	return sess
}

// dropStalePointer clears whichever local pointer references the session.
func (c *Controller) dropStalePointer(sessionID string) {
	if c.store == nil {
		return
	}
	pointers, err := c.store.List()
	if err != nil {
		c.logger.Warn("Failed to scan pointers for stale entry", "error", err)
		return
	}
	for _, p := range pointers {
		if p.SessionID == sessionID {
			if err := c.store.Clear(p.CounterpartID); err != nil {
				c.logger.Warn("Failed to clear stale pointer", "counterpart_id", p.CounterpartID, "error", err)
			} else {
				c.logger.Info("Cleared stale session pointer", "session_id", sessionID, "counterpart_id", p.CounterpartID)
			}
		}
	}
}
