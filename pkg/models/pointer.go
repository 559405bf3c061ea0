package models

import "time"

// SessionPointer is the locally persisted record of an in-flight session,
// one file per counterpart. It stores identity only, never progress: the
// server snapshot is authoritative for everything replayable, the pointer
// just lets the client offer "continue?" after a crash without a network
// round trip first.
type SessionPointer struct {
	SessionID     string    `json:"session_id"`
	CounterpartID string    `json:"counterpart_id"`
	ScenarioID    string    `json:"scenario_id"`
	StartedAt     time.Time `json:"started_at"`
	LastSeenStage int       `json:"last_seen_stage"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summary converts the pointer to the summary shape used by the
// eligibility and resumption paths.
func (p *SessionPointer) Summary() SessionSummary {
	return SessionSummary{
		SessionID:       p.SessionID,
		CounterpartID:   p.CounterpartID,
		ScenarioID:      p.ScenarioID,
		CurrentStageNum: p.LastSeenStage,
		StartedAt:       p.StartedAt,
	}
}
