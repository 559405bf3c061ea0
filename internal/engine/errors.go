package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrActionPending means a submission is already in flight for this
	// session. The caller drops the new one; it is never queued.
	ErrActionPending = errors.New("an action is already pending for this session")
	// ErrNoActiveSession means the operation needs a live session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionExists means Start was called while a session is attached.
	ErrSessionExists = errors.New("a session is already active")
	// ErrNotAtCheckpoint means extend/finish was called outside the
	// checkpoint phase.
	ErrNotAtCheckpoint = errors.New("session is not at the checkpoint")
	// ErrAlreadyExtended means the one-time extension was already bought.
	// The client enforces this locally and never re-offers, even if the
	// server were to allow it.
	ErrAlreadyExtended = errors.New("session has already been extended")
	// ErrFreeInputUnsupported means the current stage does not accept
	// free-form text.
	ErrFreeInputUnsupported = errors.New("current stage does not support free input")
	// ErrSessionFinished means the session reached a terminal state and
	// cannot be acted on.
	ErrSessionFinished = errors.New("session is already finished")
	// ErrNotAtFinale means Acknowledge was called before the server
	// reported completion.
	ErrNotAtFinale = errors.New("session has not reached the finale")
)

// LockedChoiceError rejects a visible-but-locked option before any network
// call, carrying the server-attached reason for display.
type LockedChoiceError struct {
	ChoiceID int
	Reason   string
}

func (e *LockedChoiceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("choice %d is locked: %s", e.ChoiceID, e.Reason)
	}
	return fmt.Sprintf("choice %d is locked", e.ChoiceID)
}

// UnknownChoiceError rejects a choice ID that is not on the current stage.
type UnknownChoiceError struct {
	ChoiceID int
	StageNum int
}

func (e *UnknownChoiceError) Error() string {
	return fmt.Sprintf("choice %d does not exist on stage %d", e.ChoiceID, e.StageNum)
}

// RefusedError is a logical refusal from the service (success=false with a
// reason) on a session-mutating call. Session state is left unchanged.
type RefusedError struct {
	Op     string
	Reason string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("%s refused by service: %s", e.Op, e.Reason)
}
