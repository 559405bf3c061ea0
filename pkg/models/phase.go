package models

// SessionPhase is the client-local lifecycle phase. It is never persisted
// and never advanced speculatively: PhaseOf derives it from session fields
// so a stored phase can never drift from the data that implies it.
type SessionPhase string

const (
	// PhaseSelect is the initial phase, before a session exists.
	PhaseSelect SessionPhase = "select"
	// PhasePlaying covers normal stage progression.
	PhasePlaying SessionPhase = "playing"
	// PhaseCheckpoint is the server-declared point where the session may
	// end normally or be extended.
	PhaseCheckpoint SessionPhase = "checkpoint"
	// PhaseFinale means the server reported the session completed; the
	// closing narrative is on screen awaiting acknowledgment.
	PhaseFinale SessionPhase = "finale"
	// PhaseEnding is terminal: the player acknowledged the finale and
	// rewards have been handed to the host application.
	PhaseEnding SessionPhase = "ending"
)

// Terminal reports whether the phase admits no further transitions.
func (p SessionPhase) Terminal() bool {
	return p == PhaseEnding
}

// PhaseOf derives the current phase from session fields. Completion wins
// over the checkpoint flag: a response reporting both means the session is
// over and the checkpoint is moot.
func PhaseOf(s *Session) SessionPhase {
	switch {
	case s == nil || s.ID == "":
		return PhaseSelect
	case s.Acknowledged:
		return PhaseEnding
	case s.Completed:
		return PhaseFinale
	case s.AtCheckpoint:
		return PhaseCheckpoint
	default:
		return PhasePlaying
	}
}
