package models

import "testing"

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		name string
		sess *Session
		want SessionPhase
	}{
		{
			name: "nil session",
			sess: nil,
			want: PhaseSelect,
		},
		{
			name: "empty session",
			sess: &Session{},
			want: PhaseSelect,
		},
		{
			name: "fresh session",
			sess: &Session{ID: "s1", CurrentStageNum: 1},
			want: PhasePlaying,
		},
		{
			name: "at checkpoint",
			sess: &Session{ID: "s1", CurrentStageNum: 5, AtCheckpoint: true},
			want: PhaseCheckpoint,
		},
		{
			name: "completed wins over checkpoint",
			sess: &Session{ID: "s1", CurrentStageNum: 5, AtCheckpoint: true, Completed: true},
			want: PhaseFinale,
		},
		{
			name: "acknowledged",
			sess: &Session{ID: "s1", Completed: true, Acknowledged: true},
			want: PhaseEnding,
		},
		{
			name: "extended mid play",
			sess: &Session{ID: "s1", CurrentStageNum: 6, IsExtended: true},
			want: PhasePlaying,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseOf(tt.sess); got != tt.want {
				t.Errorf("PhaseOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPhaseTerminal(t *testing.T) {
	if PhaseEnding.Terminal() != true {
		t.Error("Expected ending to be terminal")
	}
	for _, p := range []SessionPhase{PhaseSelect, PhasePlaying, PhaseCheckpoint, PhaseFinale} {
		if p.Terminal() {
			t.Errorf("Expected %s not to be terminal", p)
		}
	}
}

func TestCurrentStage(t *testing.T) {
	var nilSess *Session
	if nilSess.CurrentStage() != nil {
		t.Error("Expected nil stage on nil session")
	}

	sess := &Session{ID: "s1"}
	if sess.CurrentStage() != nil {
		t.Error("Expected nil stage before first stage arrives")
	}

	sess.Stages = []Stage{{StageNum: 1}, {StageNum: 2}}
	got := sess.CurrentStage()
	if got == nil || got.StageNum != 2 {
		t.Errorf("Expected stage 2, got %+v", got)
	}
}
