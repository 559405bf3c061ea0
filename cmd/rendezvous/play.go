package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lumen-chat/rendezvous/internal/engine"
	"github.com/lumen-chat/rendezvous/internal/transcript"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

func runDate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	counterpartID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.startSession(ctx, counterpartID); err != nil {
		return err
	}
	return a.play(ctx)
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	sessionID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := a.resumer.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := a.engine.Attach(sess); err != nil {
		return err
	}

	fmt.Printf("Resumed date with %s (stage %d of %d)\n\n",
		sess.CounterpartID, sess.CurrentStageNum, sess.TotalStages)
	return a.play(ctx)
}

// startSession runs the eligibility gate via the engine and walks the user
// through whatever stands in the way: an unfinished session, a resettable
// cooldown, or a hard block.
func (a *app) startSession(ctx context.Context, counterpartID string) error {
	for {
		_, err := a.engine.Start(ctx, counterpartID, scenarioID)
		if err == nil {
			fmt.Printf("Date started with %s at %q (session %s)\n\n",
				counterpartID, scenarioID, a.engine.Snapshot().ID)
			return nil
		}

		var inel *engine.IneligibleError
		if !errors.As(err, &inel) {
			return err
		}

		result := inel.Result
		switch {
		case result.ActiveSession != nil:
			summary := result.ActiveSession
			fmt.Printf("An unfinished date exists (session %s, stage %d).\n",
				summary.SessionID, summary.CurrentStageNum)
			answer := a.prompt("Continue it, abandon it, or quit? [c/a/q]: ")
			switch answer {
			case "c", "C":
				sess, err := a.resumer.Resume(ctx, summary.SessionID)
				if err != nil {
					return err
				}
				return a.engine.Attach(sess)
			case "a", "A":
				if !a.confirm("Abandoning is permanent. Are you sure?") {
					return fmt.Errorf("aborted")
				}
				sess, err := a.resumer.Resume(ctx, summary.SessionID)
				if err != nil {
					return err
				}
				if err := a.engine.Attach(sess); err != nil {
					return err
				}
				if err := a.engine.Abandon(ctx); err != nil {
					return err
				}
				fmt.Println("Previous session abandoned.")
				continue
			default:
				return fmt.Errorf("aborted")
			}

		case result.Reason == models.BlockCooldown:
			fmt.Printf("You dated %s too recently; %s to go.\n", counterpartID, result.CooldownRemaining)
			if !a.confirm("Spend credits to reset the cooldown?") {
				return fmt.Errorf("date blocked by cooldown")
			}
			fresh, err := a.gate.ResetCooldown(ctx, counterpartID)
			if err != nil {
				var balErr *models.InsufficientBalanceError
				if errors.As(err, &balErr) {
					fmt.Printf("Not enough credits: have %d, need %d. Top up and try again.\n",
						balErr.CurrentBalance, balErr.Required)
					return fmt.Errorf("insufficient balance")
				}
				return err
			}
			if !fresh.CanStart() {
				return fmt.Errorf("still not eligible after cooldown reset: %s", describeResult(fresh))
			}
			continue

		case result.Reason == models.BlockEmotionTooLow:
			fmt.Printf("%s is not in the mood (emotion level %d). Spend some time together first.\n",
				counterpartID, result.EmotionLevel)
			return fmt.Errorf("date blocked: emotion too low")

		case result.Reason == models.BlockInsufficientStamina:
			fmt.Printf("Not enough stamina: have %d, need %d.\n",
				result.CurrentStamina, result.RequiredStamina)
			return fmt.Errorf("date blocked: insufficient stamina")

		default:
			return fmt.Errorf("date blocked: %s", result.Reason)
		}
	}
}

// play drives the session until it ends, is abandoned, or the user leaves.
// Leaving (Ctrl-C) pauses: the session stays resumable server-side.
func (a *app) play(ctx context.Context) error {
	var tw *transcript.Writer
	if a.cfg.Session.TranscriptEnabled {
		var err error
		tw, err = transcript.NewWriter(a.cfg.Session.DataDir, a.logger)
		if err != nil {
			a.logger.Warn("Transcript disabled", "error", err)
		} else {
			defer func() {
				if err := tw.Close(); err != nil {
					a.logger.Warn("Failed to close transcript", "error", err)
				}
			}()
		}
	}

	lastShown := 0
	for {
		if ctx.Err() != nil {
			return a.pause()
		}

		switch a.engine.Phase() {
		case models.PhasePlaying:
			sess := a.engine.Snapshot()
			stage := sess.CurrentStage()
			if stage.StageNum != lastShown {
				a.showStage(ctx, sess, stage)
				lastShown = stage.StageNum
			}
			if err := a.actOnStage(ctx, stage, tw); err != nil {
				if ctx.Err() != nil {
					return a.pause()
				}
				return err
			}

		case models.PhaseCheckpoint:
			if err := a.checkpointMenu(ctx, tw); err != nil {
				if ctx.Err() != nil {
					return a.pause()
				}
				return err
			}
			lastShown = 0 // re-show the continuation stage if extended

		case models.PhaseFinale:
			return a.finale(tw)

		case models.PhaseEnding, models.PhaseSelect:
			return nil
		}
	}
}

// showStage renders one stage: progress, narrative reveal, counterpart
// expression, and the shuffled options.
func (a *app) showStage(ctx context.Context, sess *models.Session, stage *models.Stage) {
	bar := progressbar.Default(int64(sess.TotalStages), fmt.Sprintf("Stage %d", stage.StageNum))
	_ = bar.Set(stage.StageNum)
	fmt.Println()

	if stage.ExpressionTag != "" {
		fmt.Printf("[%s]\n", stage.ExpressionTag)
	}
	a.revealer.Reveal(ctx, stage.NarrativeText)
	fmt.Println()
	fmt.Println()

	for i, choice := range stage.Display {
		marker := ""
		if choice.IsSpecial {
			marker = " *"
		}
		if choice.IsLocked {
			reason := choice.LockedReason
			if reason == "" {
				reason = "locked"
			}
			fmt.Printf("  %d) %s%s (%s)\n", i+1, choice.Text, marker, reason)
			continue
		}
		fmt.Printf("  %d) %s%s\n", i+1, choice.Text, marker)
	}
	if stage.SupportsFreeInput {
		fmt.Println("  f) say something in your own words")
	}
}

// actOnStage reads one action and submits it. Local rejections (locked
// choice, unsupported free input) and transient service failures re-prompt;
// a folded advance returns nil and the caller re-reads the phase.
func (a *app) actOnStage(ctx context.Context, stage *models.Stage, tw *transcript.Writer) error {
	for {
		answer := a.prompt("> ")
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var outcome *engine.AdvanceOutcome
		var err error
		record := transcript.StageRecord{
			StageNum:   stage.StageNum,
			Narrative:  stage.NarrativeText,
			Expression: stage.ExpressionTag,
		}

		switch {
		case answer == "f" && stage.SupportsFreeInput:
			text := a.prompt("You say: ")
			outcome, err = a.engine.FreeInput(ctx, text)
			record.ActionKind = string(models.ActionFreeInput)
			record.FreeInputText = text
		default:
			idx, convErr := strconv.Atoi(answer)
			if convErr != nil || idx < 1 || idx > len(stage.Display) {
				fmt.Println("Pick an option by number.")
				continue
			}
			choice := stage.Display[idx-1]
			outcome, err = a.engine.Choose(ctx, choice.ID)
			record.ActionKind = string(models.ActionChoose)
			record.ChoiceText = choice.Text
		}

		if err != nil {
			if handled := a.explainAdvanceError(err); handled {
				continue
			}
			return err
		}

		if outcome.AffectionDelta != 0 {
			fmt.Printf("(affection %+d, now %d)\n", outcome.AffectionDelta, outcome.AffectionScore)
		}
		if outcome.JudgeComment != "" {
			fmt.Printf("-- %s --\n", outcome.JudgeComment)
		}

		if tw != nil {
			record.AffectionDelta = outcome.AffectionDelta
			record.AffectionScore = outcome.AffectionScore
			record.JudgeComment = outcome.JudgeComment
			if err := tw.WriteStage(record); err != nil {
				a.logger.Warn("Failed to write transcript record", "error", err)
			}
		}
		return nil
	}
}

// checkpointMenu offers the one-time extension, or just the finish path if
// the offer is gone.
func (a *app) checkpointMenu(ctx context.Context, tw *transcript.Writer) error {
	sess := a.engine.Snapshot()
	fmt.Println("\nThe date has reached its natural end point.")

	offerExtend := !sess.IsExtended
	if ext := sess.Extension; ext != nil {
		if ext.Cost > 0 {
			fmt.Printf("Extend the evening for %d credits? (%d stages instead of %d)\n",
				ext.Cost, models.ExtendedTotalStages, models.BaseTotalStages)
		}
		offerExtend = offerExtend && ext.CanExtend
	}

	for {
		var answer string
		if offerExtend {
			answer = a.prompt("Extend or finish? [e/f]: ")
		} else {
			answer = "f"
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch answer {
		case "e", "E":
			_, err := a.engine.Extend(ctx)
			if err != nil {
				var balErr *models.InsufficientBalanceError
				if errors.As(err, &balErr) {
					fmt.Printf("Not enough credits: have %d, need %d. Top up to extend, or finish the date.\n",
						balErr.CurrentBalance, balErr.Required)
					offerExtend = false // still at checkpoint; finish remains available
					continue
				}
				if handled := a.explainAdvanceError(err); handled {
					continue
				}
				return err
			}
			fmt.Println("The evening continues...")
			return nil
		case "f", "F":
			_, err := a.engine.Finish(ctx)
			if err != nil {
				// Without the extend prompt there is no user in the loop
				// to decide on a retry; bail out instead of hammering.
				if offerExtend && a.explainAdvanceError(err) {
					continue
				}
				return err
			}
			return nil
		default:
			fmt.Println("Answer e (extend) or f (finish).")
		}
	}
}

// finale prints the closing narrative, waits for acknowledgment, and hands
// the rewards through.
func (a *app) finale(tw *transcript.Writer) error {
	sess := a.engine.Snapshot()

	fmt.Println()
	if sess.Ending != nil {
		if sess.Ending.Title != "" {
			fmt.Printf("== %s ==\n", sess.Ending.Title)
		}
		if sess.Ending.Text != "" {
			a.revealer.Reveal(context.Background(), sess.Ending.Text)
			fmt.Println()
		}
	}
	if sess.StorySummary != "" {
		fmt.Printf("\n%s\n", sess.StorySummary)
	}

	a.prompt("\nPress Enter to finish. ")
	outcome, err := a.engine.Acknowledge()
	if err != nil {
		return err
	}

	if outcome.Rewards != nil {
		fmt.Printf("Rewards: %d XP, %d affection\n", outcome.Rewards.XP, outcome.Rewards.Affection)
	}
	if outcome.UnlockedPhoto != "" {
		fmt.Printf("New photo unlocked: %s\n", outcome.UnlockedPhoto)
	}

	if tw != nil {
		summary := transcript.Summary{
			SessionID:      sess.ID,
			CounterpartID:  sess.CounterpartID,
			ScenarioID:     sess.ScenarioID,
			StagesPlayed:   sess.CurrentStageNum,
			IsExtended:     sess.IsExtended,
			AffectionScore: sess.AffectionScore,
			Ending:         sess.Ending,
			Rewards:        outcome.Rewards,
			StorySummary:   sess.StorySummary,
			UnlockedPhoto:  sess.UnlockedPhoto,
		}
		if err := tw.WriteSummary(summary); err != nil {
			a.logger.Warn("Failed to write summary", "error", err)
		}
	}
	return nil
}

// pause leaves the server-side session resumable and tells the user how to
// come back. Never abandons.
func (a *app) pause() error {
	sess := a.engine.Snapshot()
	if sess == nil {
		return nil
	}
	if err := a.engine.Pause(); err != nil {
		a.logger.Warn("Failed to pause session", "error", err)
	}
	fmt.Printf("\nDate paused. Resume with: rendezvous resume %s\n", sess.ID)
	return nil
}

// explainAdvanceError prints a user-facing message for recoverable errors
// and reports whether the caller should re-prompt.
func (a *app) explainAdvanceError(err error) bool {
	var locked *engine.LockedChoiceError
	if errors.As(err, &locked) {
		if locked.Reason != "" {
			fmt.Printf("That option is locked: %s\n", locked.Reason)
		} else {
			fmt.Println("That option is locked.")
		}
		return true
	}

	var unknown *engine.UnknownChoiceError
	if errors.As(err, &unknown) {
		fmt.Println("Pick an option by number.")
		return true
	}

	if errors.Is(err, engine.ErrActionPending) {
		// Duplicate submission: silently ignored, not an error.
		return true
	}
	if errors.Is(err, engine.ErrFreeInputUnsupported) {
		fmt.Println("You can't free-type on this beat; pick an option.")
		return true
	}

	var refused *engine.RefusedError
	if errors.As(err, &refused) {
		fmt.Printf("The date service refused that: %s\n", refused.Reason)
		return true
	}

	// Transient service failure: state is unchanged, the guard is clear.
	fmt.Println("Couldn't reach the date service. Try again.")
	a.logger.Debug("Advance failed", "error", err)
	return true
}

func describeResult(r *models.EligibilityResult) string {
	switch {
	case r.CanStart():
		return "eligible"
	case r.ActiveSession != nil:
		return "unfinished session exists"
	default:
		return string(r.Reason)
	}
}
