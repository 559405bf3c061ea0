package api

import (
	"time"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

// StatusResponse is the eligibility status payload for one counterpart.
type StatusResponse struct {
	CanDate                  bool            `json:"can_date"`
	Reason                   string          `json:"reason,omitempty"`
	CooldownRemainingMinutes int             `json:"cooldown_remaining_minutes,omitempty"`
	CurrentEmotion           int             `json:"current_emotion,omitempty"`
	RequiredStamina          int             `json:"required_stamina,omitempty"`
	CurrentStamina           int             `json:"current_stamina,omitempty"`
	ActiveSession            *ActiveSession  `json:"active_session,omitempty"`
	Extension                *ExtensionState `json:"extension,omitempty"`
}

// ActiveSession identifies a prior session that never reached a terminal
// phase and is still resumable server-side.
type ActiveSession struct {
	SessionID    string    `json:"session_id"`
	ScenarioID   string    `json:"scenario_id"`
	CurrentStage int       `json:"current_stage"`
	StartedAt    time.Time `json:"started_at"`
}

// Progress is the server's progress block attached to most responses.
type Progress struct {
	CurrentStage int  `json:"current_stage"`
	TotalStages  int  `json:"total_stages"`
	IsExtended   bool `json:"is_extended"`
	Affection    int  `json:"affection"`
}

// StagePayload is the wire form of a narrative stage.
type StagePayload struct {
	StageNum          int             `json:"stage_num"`
	Narrative         string          `json:"narrative"`
	Expression        string          `json:"expression"`
	Options           []ChoicePayload `json:"options"`
	SupportsFreeInput bool            `json:"supports_free_input"`
}

// ChoicePayload is the wire form of a selectable option.
type ChoicePayload struct {
	ID           int    `json:"id"`
	Text         string `json:"text"`
	IsSpecial    bool   `json:"is_special,omitempty"`
	IsLocked     bool   `json:"is_locked,omitempty"`
	LockedReason string `json:"locked_reason,omitempty"`
}

// ExtensionState is the wire form of the continuation offer.
type ExtensionState struct {
	CanExtend        bool `json:"can_extend"`
	RemainingExtends int  `json:"remaining_extends"`
	Cost             int  `json:"cost"`
}

// StartRequest begins a new session.
type StartRequest struct {
	CounterpartID string `json:"counterpart_id"`
	ScenarioID    string `json:"scenario_id"`
}

// StartResponse is the reply to a start request.
type StartResponse struct {
	Success   bool          `json:"success"`
	Reason    string        `json:"reason,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Stage     *StagePayload `json:"stage,omitempty"`
	Progress  *Progress     `json:"progress,omitempty"`
}

// ChooseRequest submits a presented option.
type ChooseRequest struct {
	StageNum int `json:"stage_num"`
	ChoiceID int `json:"choice_id"`
}

// FreeInputRequest submits free-form text for the server-side judge.
type FreeInputRequest struct {
	StageNum int    `json:"stage_num"`
	Text     string `json:"text"`
}

// AdvanceResult is the unified reply to choose and free_input. Exactly one
// result is folded into the session per submission.
type AdvanceResult struct {
	Success        bool            `json:"success"`
	Reason         string          `json:"reason,omitempty"`
	AffectionDelta int             `json:"affection_delta"`
	NextStage      *StagePayload   `json:"next_stage,omitempty"`
	Progress       *Progress       `json:"progress,omitempty"`
	AtCheckpoint   bool            `json:"at_checkpoint"`
	Completed      bool            `json:"completed"`
	Ending         *models.Ending  `json:"ending,omitempty"`
	Rewards        *models.Rewards `json:"rewards,omitempty"`
	Extension      *ExtensionState `json:"extension,omitempty"`
	JudgeComment   string          `json:"judge_comment,omitempty"`
}

// ExtendResponse is the reply to a paid extension request. On failure with
// reason "insufficient_balance" the balance fields are populated.
type ExtendResponse struct {
	Success         bool          `json:"success"`
	Reason          string        `json:"reason,omitempty"`
	Stage           *StagePayload `json:"stage,omitempty"`
	Progress        *Progress     `json:"progress,omitempty"`
	CreditsDeducted int           `json:"credits_deducted,omitempty"`
	CurrentBalance  int           `json:"current_balance,omitempty"`
	Required        int           `json:"required,omitempty"`
}

// FinishResponse is the reply to ending the session at the checkpoint.
type FinishResponse struct {
	Success       bool            `json:"success"`
	Completed     bool            `json:"completed"`
	Ending        *models.Ending  `json:"ending,omitempty"`
	Rewards       *models.Rewards `json:"rewards,omitempty"`
	StorySummary  string          `json:"story_summary,omitempty"`
	UnlockedPhoto string          `json:"unlocked_photo,omitempty"`
}

// SnapshotResponse is the authoritative session snapshot used for
// resumption. Snapshots are only served for active sessions, so they never
// encode a finale or ending.
type SnapshotResponse struct {
	SessionID     string         `json:"session_id"`
	CounterpartID string         `json:"counterpart_id"`
	ScenarioID    string         `json:"scenario_id"`
	CurrentStage  int            `json:"current_stage"`
	IsExtended    bool           `json:"is_extended"`
	Affection     int            `json:"affection"`
	Stages        []StagePayload `json:"stages"`
	StartedAt     time.Time      `json:"started_at"`
}

// ResetCooldownRequest spends currency to clear a cooldown block.
type ResetCooldownRequest struct {
	CounterpartID string `json:"counterpart_id"`
}

// ResetCooldownResponse is the reply to a cooldown reset.
type ResetCooldownResponse struct {
	Success         bool   `json:"success"`
	Reason          string `json:"reason,omitempty"`
	CreditsDeducted int    `json:"credits_deducted,omitempty"`
	CurrentBalance  int    `json:"current_balance,omitempty"`
	Required        int    `json:"required,omitempty"`
}

// AbandonResponse acknowledges a terminal abandon.
type AbandonResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body the service attaches to non-200 replies.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ToModel converts a wire stage to the domain form. The display permutation
// is left unset; materialization happens in the engine.
func (p *StagePayload) ToModel() models.Stage {
	opts := make([]models.Choice, len(p.Options))
	for i, c := range p.Options {
		opts[i] = models.Choice{
			ID:           c.ID,
			Text:         c.Text,
			IsSpecial:    c.IsSpecial,
			IsLocked:     c.IsLocked,
			LockedReason: c.LockedReason,
		}
	}
	return models.Stage{
		StageNum:          p.StageNum,
		NarrativeText:     p.Narrative,
		ExpressionTag:     p.Expression,
		Options:           opts,
		SupportsFreeInput: p.SupportsFreeInput,
	}
}

// ToModel converts the wire extension offer to the domain form.
func (e *ExtensionState) ToModel() *models.ExtensionState {
	if e == nil {
		return nil
	}
	return &models.ExtensionState{
		CanExtend:        e.CanExtend,
		RemainingExtends: e.RemainingExtends,
		Cost:             e.Cost,
	}
}
