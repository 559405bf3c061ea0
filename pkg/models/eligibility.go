package models

import "time"

// BlockReason explains why the eligibility gate refused a session start.
type BlockReason string

const (
	// BlockEmotionTooLow means the relationship's affect state is too
	// negative; dating is refused until it recovers.
	BlockEmotionTooLow BlockReason = "emotion_too_low"
	// BlockCooldown means the minimum interval between sessions with the
	// same counterpart has not elapsed yet. Bypassable by ResetCooldown.
	BlockCooldown BlockReason = "cooldown"
	// BlockInsufficientStamina means the stamina balance is below the
	// session cost.
	BlockInsufficientStamina BlockReason = "insufficient_stamina"
)

// EligibilityResult is the outcome of the pre-flight status check. Exactly
// one of the three shapes holds: Eligible, Blocked with a reason, or an
// active session that must be continued or abandoned first. A service
// failure is an error, never a result.
type EligibilityResult struct {
	Eligible bool
	Reason   BlockReason

	// EmotionLevel is set when Reason is BlockEmotionTooLow.
	EmotionLevel int
	// CooldownRemaining is set when Reason is BlockCooldown.
	CooldownRemaining time.Duration
	// RequiredStamina and CurrentStamina are set when Reason is
	// BlockInsufficientStamina.
	RequiredStamina int
	CurrentStamina  int

	// ActiveSession is non-nil when a prior session never reached a
	// terminal phase; the client must offer continue-or-abandon before
	// allowing a new start.
	ActiveSession *SessionSummary
}

// Blocked reports whether the result is a refusal with a reason attached.
func (r EligibilityResult) Blocked() bool {
	return !r.Eligible && r.ActiveSession == nil
}

// CanStart reports whether a fresh session may begin right now.
func (r EligibilityResult) CanStart() bool {
	return r.Eligible && r.ActiveSession == nil
}
