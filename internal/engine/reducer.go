package engine

import (
	"log/slog"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

// applyAdvance folds exactly one advance result into a session, value in,
// value out. It never computes affection, narrative, or outcomes locally;
// it only applies what the server reported. The returned session's display
// permutation for a newly appended stage is unset; materialization is the
// engine's job.
//
// Edge policy: a result reporting both at_checkpoint and completed resolves
// to completed (the session is over, the checkpoint is moot). A server stage
// number behind the client's last-known value is trusted and logged, never
// reconciled locally.
func applyAdvance(sess models.Session, res *api.AdvanceResult, logger *slog.Logger) models.Session {
	sess.AffectionScore = clampAffection(sess.AffectionScore + res.AffectionDelta)

	if res.NextStage != nil {
		stage := res.NextStage.ToModel()
		stage.JudgeComment = res.JudgeComment
		if stage.StageNum < sess.CurrentStageNum {
			logger.Warn("Server reported stage behind local progress, trusting server",
				"local_stage", sess.CurrentStageNum,
				"server_stage", stage.StageNum)
		}
		sess.Stages = append(sess.Stages, stage)
		sess.CurrentStageNum = stage.StageNum
	}

	if res.Progress != nil {
		applyProgress(&sess, res.Progress, logger)
	}

	if res.Extension != nil {
		sess.Extension = res.Extension.ToModel()
	}

	switch {
	case res.Completed:
		sess.Completed = true
		sess.AtCheckpoint = false
		if res.Ending != nil {
			sess.Ending = res.Ending
		}
		if res.Rewards != nil {
			sess.Rewards = res.Rewards
		}
	case res.AtCheckpoint:
		sess.AtCheckpoint = true
	default:
		sess.AtCheckpoint = false
	}

	return sess
}

// applyProgress adopts the server's progress block. The one exception to
// server-wins is the extension flag: it is irreversible client-side, so a
// server report of false after a local true is ignored and logged.
func applyProgress(sess *models.Session, p *api.Progress, logger *slog.Logger) {
	if p.CurrentStage < sess.CurrentStageNum {
		logger.Warn("Server progress behind local progress, trusting server",
			"local_stage", sess.CurrentStageNum,
			"server_stage", p.CurrentStage)
	}
	if p.CurrentStage > 0 {
		sess.CurrentStageNum = p.CurrentStage
	}
	if p.TotalStages > 0 {
		sess.TotalStages = p.TotalStages
	}
	if p.IsExtended {
		sess.IsExtended = true
	} else if sess.IsExtended {
		logger.Warn("Server reported is_extended=false after local extension, keeping extended")
	}
	if p.Affection != sess.AffectionScore {
		logger.Debug("Adopting server affection score",
			"local", sess.AffectionScore,
			"server", p.Affection)
		sess.AffectionScore = clampAffection(p.Affection)
	}
}

func clampAffection(v int) int {
	if v < models.AffectionMin {
		return models.AffectionMin
	}
	if v > models.AffectionMax {
		return models.AffectionMax
	}
	return v
}
