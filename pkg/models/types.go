package models

import "time"

const (
	// BaseTotalStages is the stage count of an unextended session
	BaseTotalStages = 5
	// ExtendedTotalStages is the stage count after a purchased extension
	ExtendedTotalStages = 8

	// AffectionBaseline is the score a fresh session starts from
	AffectionBaseline = 50
	// AffectionMin is the lower bound of the affection score
	AffectionMin = 0
	// AffectionMax is the upper bound of the affection score
	AffectionMax = 100
)

// Session is the client-side view of one date playthrough. The server owns
// progress, affection and outcomes; this struct only holds what the server
// has reported plus two client-local flags (AtCheckpoint is folded from the
// latest advance result, Acknowledged is set when the player has read the
// closing narrative).
type Session struct {
	ID              string  `json:"session_id"`
	CounterpartID   string  `json:"counterpart_id"`
	ScenarioID      string  `json:"scenario_id"`
	CurrentStageNum int     `json:"current_stage"`
	TotalStages     int     `json:"total_stages"`
	IsExtended      bool    `json:"is_extended"`
	AffectionScore  int     `json:"affection"`
	Stages          []Stage `json:"stages"`

	AtCheckpoint bool `json:"at_checkpoint"`
	Completed    bool `json:"completed"`
	Acknowledged bool `json:"-"`

	Ending        *Ending  `json:"ending,omitempty"`
	Rewards       *Rewards `json:"rewards,omitempty"`
	StorySummary  string   `json:"story_summary,omitempty"`
	UnlockedPhoto string   `json:"unlocked_photo,omitempty"`

	// Extension holds the server-computed continuation offer; only
	// meaningful while the session sits at the checkpoint.
	Extension *ExtensionState `json:"extension,omitempty"`
}

// CurrentStage returns the most recently received stage, or nil before the
// first stage has arrived.
func (s *Session) CurrentStage() *Stage {
	if s == nil || len(s.Stages) == 0 {
		return nil
	}
	return &s.Stages[len(s.Stages)-1]
}

// Stage is one narrative beat presented to the player. Stages are immutable
// once received; advancing produces a new Stage, never mutates this one.
type Stage struct {
	StageNum          int      `json:"stage_num"`
	NarrativeText     string   `json:"narrative"`
	ExpressionTag     string   `json:"expression"`
	Options           []Choice `json:"options"`
	SupportsFreeInput bool     `json:"supports_free_input"`
	JudgeComment      string   `json:"judge_comment,omitempty"`

	// Display is the materialized presentation order, a permutation of
	// Options set exactly once when the stage is materialized (first
	// received, or re-shown after resumption). Renders must use Display,
	// never Options, so that option position carries no narrative signal
	// across playthroughs.
	Display []Choice `json:"-"`
}

// Choice is one selectable action within a stage. IDs are server-assigned,
// unique within their stage, and carry no cross-stage meaning.
type Choice struct {
	ID           int    `json:"id"`
	Text         string `json:"text"`
	IsSpecial    bool   `json:"is_special,omitempty"`
	IsLocked     bool   `json:"is_locked,omitempty"`
	LockedReason string `json:"locked_reason,omitempty"`
}

// ActionKind distinguishes the ways a player can act on a session.
type ActionKind string

const (
	ActionStart     ActionKind = "start"
	ActionChoose    ActionKind = "choose"
	ActionFreeInput ActionKind = "free_input"
	ActionExtend    ActionKind = "extend"
	ActionFinish    ActionKind = "finish"
	ActionAbandon   ActionKind = "abandon"
)

// PendingAction records the single in-flight submission for a session.
// At most one exists at a time; a second submission while one is pending
// is dropped locally so a double-tap can never apply two affection deltas.
type PendingAction struct {
	Kind      ActionKind `json:"kind"`
	SessionID string     `json:"session_id"`
	StageNum  int        `json:"stage_num"`
	ChoiceID  int        `json:"choice_id,omitempty"`
	Text      string     `json:"text,omitempty"`

	// IdempotencyKey is a client-generated UUID sent with the request so
	// the server can deduplicate a manual retry after a dropped response.
	IdempotencyKey string    `json:"idempotency_key"`
	StartedAt      time.Time `json:"started_at"`
}

// ExtensionState is the server-computed continuation offer at the checkpoint.
// RemainingExtends is informational; the client enforces the once-per-session
// rule off Session.IsExtended alone.
type ExtensionState struct {
	CanExtend        bool `json:"can_extend"`
	RemainingExtends int  `json:"remaining_extends"`
	Cost             int  `json:"cost"`
}

// Ending describes how the session concluded. Computed server-side.
type Ending struct {
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Rewards is the terminal reward payload. The engine passes it through to
// the host application unmodified and never interprets it.
type Rewards struct {
	XP        int `json:"xp"`
	Affection int `json:"affection"`
}

// SessionSummary identifies a resumable session, as reported by the
// eligibility status endpoint or the local pointer store.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	CounterpartID   string    `json:"counterpart_id"`
	ScenarioID      string    `json:"scenario_id"`
	CurrentStageNum int       `json:"current_stage"`
	StartedAt       time.Time `json:"started_at"`
}
