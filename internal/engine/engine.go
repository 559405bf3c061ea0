// Package engine drives the client side of an interactive date session: the
// phase lifecycle (select, playing, checkpoint, finale, ending), the choice
// submission protocol, and the one-time monetized continuation gate. The
// server owns narrative generation, affection scoring, and ending
// computation; this engine is a reducer over server responses and never
// advances a phase speculatively.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/internal/eligibility"
	"github.com/lumen-chat/rendezvous/internal/metrics"
	"github.com/lumen-chat/rendezvous/internal/resume"
	"github.com/lumen-chat/rendezvous/internal/shuffle"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

// Engine owns one session at a time. All session-mutating operations share
// a single pending-action guard: at most one submission is in flight, and a
// second attempt while one is pending is rejected locally, never queued.
type Engine struct {
	apiClient *api.Client
	gate      *eligibility.Gate
	pointers  *resume.Store // optional; nil disables local pointers
	rng       *rand.Rand
	logger    *slog.Logger

	mu      sync.Mutex
	session *models.Session
	pending *models.PendingAction
}

// New creates a session engine. The rng seeds option permutations; pass a
// fixed-seed rand.New in tests for reproducible display orders.
func New(apiClient *api.Client, gate *eligibility.Gate, pointers *resume.Store, rng *rand.Rand, logger *slog.Logger) *Engine {
	return &Engine{
		apiClient: apiClient,
		gate:      gate,
		pointers:  pointers,
		rng:       rng,
		logger:    logger.With("component", "engine"),
	}
}

// IneligibleError means the eligibility gate refused the start. The result
// carries the reason and any corrective detail (cooldown remaining, stamina
// shortfall, or the active session that must be resolved first).
type IneligibleError struct {
	Result *models.EligibilityResult
}

func (e *IneligibleError) Error() string {
	if e.Result.ActiveSession != nil {
		return fmt.Sprintf("an unfinished session exists (%s), continue or abandon it first", e.Result.ActiveSession.SessionID)
	}
	return fmt.Sprintf("date not available: %s", e.Result.Reason)
}

// AdvanceOutcome reports what one folded advance did, for presentation.
type AdvanceOutcome struct {
	Phase          models.SessionPhase
	AffectionDelta int
	AffectionScore int
	JudgeComment   string
	Stage          *models.Stage // newly appended stage; nil at the finale
	Extension      *models.ExtensionState
	Ending         *models.Ending
	Rewards        *models.Rewards
}

// FinishOutcome is the terminal payload, passed through to the host
// application unmodified.
type FinishOutcome struct {
	Ending        *models.Ending
	Rewards       *models.Rewards
	StorySummary  string
	UnlockedPhoto string
}

// Snapshot returns a copy of the current session, or nil before start.
func (e *Engine) Snapshot() *models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySession(e.session)
}

// Phase derives the current lifecycle phase.
func (e *Engine) Phase() models.SessionPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.PhaseOf(e.session)
}

// Pending reports whether a submission is currently in flight.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// Start runs the eligibility gate and, if clear, begins a new session with
// the counterpart in the chosen scenario. Returns the opening stage with
// its display order materialized.
func (e *Engine) Start(ctx context.Context, counterpartID, scenarioID string) (*models.Stage, error) {
	result, err := e.gate.Check(ctx, counterpartID)
	if err != nil {
		return nil, err
	}
	if !result.CanStart() {
		return nil, &IneligibleError{Result: result}
	}

	pa, err := e.begin(models.ActionStart, "", 0)
	if err != nil {
		return nil, err
	}
	defer e.end()

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return nil, ErrSessionExists
	}
	e.mu.Unlock()

	resp, err := e.apiClient.Start(ctx, counterpartID, scenarioID, pa.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if !resp.Success {
		return nil, &RefusedError{Op: "start", Reason: resp.Reason}
	}
	if resp.Stage == nil {
		return nil, fmt.Errorf("start response missing opening stage")
	}

	stage := resp.Stage.ToModel()
	sess := &models.Session{
		ID:              resp.SessionID,
		CounterpartID:   counterpartID,
		ScenarioID:      scenarioID,
		CurrentStageNum: stage.StageNum,
		TotalStages:     models.BaseTotalStages,
		AffectionScore:  models.AffectionBaseline,
		Stages:          []models.Stage{stage},
	}
	if resp.Progress != nil {
		applyProgress(sess, resp.Progress, e.logger)
	}

	e.mu.Lock()
	e.session = sess
	shuffle.Materialize(e.session.CurrentStage(), e.rng)
	current := copyStage(e.session.CurrentStage())
	e.mu.Unlock()

	e.savePointer(sess, time.Now())
	e.logger.Info("Session started",
		"session_id", sess.ID,
		"counterpart_id", counterpartID,
		"scenario_id", scenarioID)
	return current, nil
}

// Attach adopts a session reconstructed by the resumption controller.
func (e *Engine) Attach(sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("cannot attach an empty session")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return ErrSessionExists
	}
	e.session = sess
	return nil
}

// Choose submits one of the stage's presented options. Locked choices and
// unknown IDs are rejected before any network call.
func (e *Engine) Choose(ctx context.Context, choiceID int) (*AdvanceOutcome, error) {
	e.mu.Lock()
	if err := e.advanceableLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	stage := e.session.CurrentStage()
	choice := findChoice(stage, choiceID)
	if choice == nil {
		e.mu.Unlock()
		return nil, &UnknownChoiceError{ChoiceID: choiceID, StageNum: stage.StageNum}
	}
	if choice.IsLocked {
		e.mu.Unlock()
		return nil, &LockedChoiceError{ChoiceID: choiceID, Reason: choice.LockedReason}
	}
	sessionID, stageNum := e.session.ID, stage.StageNum
	e.mu.Unlock()

	pa, err := e.begin(models.ActionChoose, sessionID, stageNum)
	if err != nil {
		return nil, err
	}
	defer e.end()

	res, err := e.apiClient.Choose(ctx, sessionID, stageNum, choiceID, pa.IdempotencyKey)
	if err != nil {
		metrics.RecordAdvance(string(models.ActionChoose), "error")
		return nil, fmt.Errorf("failed to submit choice: %w", err)
	}
	return e.fold(models.ActionChoose, res)
}

// FreeInput submits free-form text for the current stage. Only allowed when
// the stage supports it; the server-side judge interprets the text and may
// attach a transient comment.
func (e *Engine) FreeInput(ctx context.Context, text string) (*AdvanceOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("free input text is empty")
	}

	e.mu.Lock()
	if err := e.advanceableLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	stage := e.session.CurrentStage()
	if !stage.SupportsFreeInput {
		e.mu.Unlock()
		return nil, ErrFreeInputUnsupported
	}
	sessionID, stageNum := e.session.ID, stage.StageNum
	e.mu.Unlock()

	pa, err := e.begin(models.ActionFreeInput, sessionID, stageNum)
	if err != nil {
		return nil, err
	}
	defer e.end()

	res, err := e.apiClient.FreeInput(ctx, sessionID, stageNum, text, pa.IdempotencyKey)
	if err != nil {
		metrics.RecordAdvance(string(models.ActionFreeInput), "error")
		return nil, fmt.Errorf("failed to submit free input: %w", err)
	}
	return e.fold(models.ActionFreeInput, res)
}

// Extend purchases the one-time paid continuation at the checkpoint. On
// insufficient balance the session is left at the checkpoint untouched and
// the shortfall is surfaced; the engine never retries a purchase on its
// own. Any other refusal is likewise state-preserving and retryable.
func (e *Engine) Extend(ctx context.Context) (*models.Stage, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if e.session.IsExtended {
		e.mu.Unlock()
		metrics.RecordExtend("already_extended")
		return nil, ErrAlreadyExtended
	}
	if models.PhaseOf(e.session) != models.PhaseCheckpoint {
		e.mu.Unlock()
		return nil, ErrNotAtCheckpoint
	}
	sessionID := e.session.ID
	e.mu.Unlock()

	pa, err := e.begin(models.ActionExtend, sessionID, 0)
	if err != nil {
		return nil, err
	}
	defer e.end()

	resp, err := e.apiClient.Extend(ctx, sessionID, pa.IdempotencyKey)
	if err != nil {
		metrics.RecordExtend("error")
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	if !resp.Success {
		if resp.Reason == "insufficient_balance" {
			metrics.RecordExtend("insufficient_balance")
			return nil, &models.InsufficientBalanceError{
				CurrentBalance: resp.CurrentBalance,
				Required:       resp.Required,
			}
		}
		metrics.RecordExtend("error")
		return nil, &RefusedError{Op: "extend", Reason: resp.Reason}
	}
	if resp.Stage == nil {
		metrics.RecordExtend("error")
		return nil, fmt.Errorf("extend response missing continuation stage")
	}

	stage := resp.Stage.ToModel()

	e.mu.Lock()
	e.session.IsExtended = true
	e.session.TotalStages = models.ExtendedTotalStages
	e.session.AtCheckpoint = false
	e.session.Extension = nil
	e.session.Stages = append(e.session.Stages, stage)
	e.session.CurrentStageNum = stage.StageNum
	if resp.Progress != nil {
		applyProgress(e.session, resp.Progress, e.logger)
	}
	shuffle.Materialize(e.session.CurrentStage(), e.rng)
	current := copyStage(e.session.CurrentStage())
	sess := copySession(e.session)
	e.mu.Unlock()

	e.savePointer(sess, time.Time{})
	metrics.RecordExtend("success")
	e.logger.Info("Session extended",
		"session_id", sessionID,
		"credits_deducted", resp.CreditsDeducted,
		"total_stages", models.ExtendedTotalStages)
	return current, nil
}

// Finish declines the extension and ends the session normally at the
// checkpoint. Always available there, at no cost.
func (e *Engine) Finish(ctx context.Context) (*FinishOutcome, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if models.PhaseOf(e.session) != models.PhaseCheckpoint {
		e.mu.Unlock()
		return nil, ErrNotAtCheckpoint
	}
	sessionID := e.session.ID
	e.mu.Unlock()

	pa, err := e.begin(models.ActionFinish, sessionID, 0)
	if err != nil {
		return nil, err
	}
	defer e.end()

	resp, err := e.apiClient.Finish(ctx, sessionID, pa.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to finish session: %w", err)
	}
	if !resp.Success {
		return nil, &RefusedError{Op: "finish", Reason: "service rejected finish"}
	}

	e.mu.Lock()
	e.session.Completed = true
	e.session.AtCheckpoint = false
	e.session.Ending = resp.Ending
	e.session.Rewards = resp.Rewards
	e.session.StorySummary = resp.StorySummary
	e.session.UnlockedPhoto = resp.UnlockedPhoto
	counterpartID := e.session.CounterpartID
	e.mu.Unlock()

	e.clearPointer(counterpartID)
	e.logger.Info("Session finished", "session_id", sessionID)
	return &FinishOutcome{
		Ending:        resp.Ending,
		Rewards:       resp.Rewards,
		StorySummary:  resp.StorySummary,
		UnlockedPhoto: resp.UnlockedPhoto,
	}, nil
}

// Acknowledge records that the player has read the closing narrative. It is
// purely local, transitions finale to ending, and returns the reward
// payload for delivery to the host application.
func (e *Engine) Acknowledge() (*FinishOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, ErrNoActiveSession
	}
	switch models.PhaseOf(e.session) {
	case models.PhaseFinale:
	case models.PhaseEnding:
		return nil, ErrSessionFinished
	default:
		return nil, ErrNotAtFinale
	}
	e.session.Acknowledged = true
	e.logger.Info("Session acknowledged", "session_id", e.session.ID)
	return &FinishOutcome{
		Ending:        e.session.Ending,
		Rewards:       e.session.Rewards,
		StorySummary:  e.session.StorySummary,
		UnlockedPhoto: e.session.UnlockedPhoto,
	}, nil
}

// Abandon terminates the session irreversibly, server-side and locally.
// It must only be called on explicit user confirmation: leaving the UI is a
// Pause, which keeps the session resumable.
func (e *Engine) Abandon(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	switch models.PhaseOf(e.session) {
	case models.PhaseFinale, models.PhaseEnding:
		// A finished session still holds undelivered ending and rewards;
		// wiping it here would lose them.
		e.mu.Unlock()
		return ErrSessionFinished
	}
	sessionID, counterpartID := e.session.ID, e.session.CounterpartID
	e.mu.Unlock()

	pa, err := e.begin(models.ActionAbandon, sessionID, 0)
	if err != nil {
		return err
	}
	defer e.end()

	if _, err := e.apiClient.Abandon(ctx, sessionID, pa.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}

	e.mu.Lock()
	e.session = nil
	e.mu.Unlock()

	e.clearPointer(counterpartID)
	e.logger.Info("Session abandoned", "session_id", sessionID)
	return nil
}

// Pause persists the local pointer and leaves the server-side session
// untouched and resumable. Safe to call at any point.
func (e *Engine) Pause() error {
	e.mu.Lock()
	sess := copySession(e.session)
	e.mu.Unlock()
	if sess == nil || models.PhaseOf(sess).Terminal() || sess.Completed {
		return nil
	}
	e.savePointer(sess, time.Time{})
	e.logger.Info("Session paused", "session_id", sess.ID, "current_stage", sess.CurrentStageNum)
	return nil
}

// Reset detaches a terminal session so a new one can start. Refused while
// the session is still live; live sessions end via Abandon or Finish.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	if !models.PhaseOf(e.session).Terminal() {
		return fmt.Errorf("cannot reset a live session (phase %s)", models.PhaseOf(e.session))
	}
	e.session = nil
	return nil
}

// fold applies one advance result under the lock and reports the outcome.
func (e *Engine) fold(action models.ActionKind, res *api.AdvanceResult) (*AdvanceOutcome, error) {
	if !res.Success {
		reason := res.Reason
		if reason == "" {
			reason = "unspecified"
		}
		metrics.RecordAdvance(string(action), "error")
		return nil, &RefusedError{Op: string(action), Reason: reason}
	}

	e.mu.Lock()
	next := applyAdvance(*e.session, res, e.logger)
	e.session = &next
	if res.NextStage != nil {
		shuffle.Materialize(e.session.CurrentStage(), e.rng)
	}
	outcome := &AdvanceOutcome{
		Phase:          models.PhaseOf(e.session),
		AffectionDelta: res.AffectionDelta,
		AffectionScore: e.session.AffectionScore,
		JudgeComment:   res.JudgeComment,
		Extension:      e.session.Extension,
		Ending:         e.session.Ending,
		Rewards:        e.session.Rewards,
	}
	if res.NextStage != nil {
		outcome.Stage = copyStage(e.session.CurrentStage())
	}
	sess := copySession(e.session)
	e.mu.Unlock()

	if sess.Completed {
		e.clearPointer(sess.CounterpartID)
	} else {
		e.savePointer(sess, time.Time{})
	}

	metrics.RecordAdvance(string(action), string(outcome.Phase))
	e.logger.Info("Stage advanced",
		"session_id", sess.ID,
		"action", action,
		"current_stage", sess.CurrentStageNum,
		"affection", sess.AffectionScore,
		"phase", outcome.Phase)
	return outcome, nil
}

// advanceableLocked validates that a choice or free input may be submitted.
// Caller holds e.mu.
func (e *Engine) advanceableLocked() error {
	if e.session == nil {
		return ErrNoActiveSession
	}
	switch models.PhaseOf(e.session) {
	case models.PhasePlaying:
		return nil
	case models.PhaseFinale, models.PhaseEnding:
		return ErrSessionFinished
	default:
		return fmt.Errorf("cannot advance in phase %s", models.PhaseOf(e.session))
	}
}

// begin installs the pending-action guard. A second submission while one is
// in flight is dropped here, silently from the player's point of view.
func (e *Engine) begin(kind models.ActionKind, sessionID string, stageNum int) (*models.PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		metrics.RecordDuplicateSubmission()
		e.logger.Debug("Dropped duplicate submission",
			"kind", kind,
			"pending_kind", e.pending.Kind)
		return nil, ErrActionPending
	}
	pa := &models.PendingAction{
		Kind:           kind,
		SessionID:      sessionID,
		StageNum:       stageNum,
		IdempotencyKey: uuid.NewString(),
		StartedAt:      time.Now(),
	}
	e.pending = pa
	return pa, nil
}

// end clears the guard. It runs on success and failure alike: a failed
// round trip leaves the session unchanged and the guard clear, so a manual
// retry is always possible.
func (e *Engine) end() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}

func (e *Engine) savePointer(sess *models.Session, startedAt time.Time) {
	if e.pointers == nil || sess == nil {
		return
	}
	ptr := &models.SessionPointer{
		SessionID:     sess.ID,
		CounterpartID: sess.CounterpartID,
		ScenarioID:    sess.ScenarioID,
		StartedAt:     startedAt,
		LastSeenStage: sess.CurrentStageNum,
	}
	if startedAt.IsZero() {
		if prev, err := e.pointers.Get(sess.CounterpartID); err == nil && prev != nil {
			ptr.StartedAt = prev.StartedAt
		}
	}
	if err := e.pointers.Put(ptr); err != nil {
		e.logger.Warn("Failed to save session pointer", "error", err)
	}
}

func (e *Engine) clearPointer(counterpartID string) {
	if e.pointers == nil {
		return
	}
	if err := e.pointers.Clear(counterpartID); err != nil {
		e.logger.Warn("Failed to clear session pointer", "error", err)
	}
}

func findChoice(stage *models.Stage, choiceID int) *models.Choice {
	for i := range stage.Options {
		if stage.Options[i].ID == choiceID {
			return &stage.Options[i]
		}
	}
	return nil
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Stages = make([]models.Stage, len(s.Stages))
	copy(out.Stages, s.Stages)
	return &out
}

func copyStage(s *models.Stage) *models.Stage {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
