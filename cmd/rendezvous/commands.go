package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	counterpartID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.gate.Check(ctx, counterpartID)
	if err != nil {
		return err
	}

	switch {
	case result.CanStart():
		fmt.Printf("%s is free for a date.\n", counterpartID)
	case result.ActiveSession != nil:
		s := result.ActiveSession
		fmt.Printf("Unfinished date with %s: session %s, stage %d (started %s).\n",
			counterpartID, s.SessionID, s.CurrentStageNum, s.StartedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Continue with: rendezvous resume %s\n", s.SessionID)
	case result.Reason == models.BlockCooldown:
		fmt.Printf("On cooldown: %s remaining. Clear it with: rendezvous reset-cooldown %s\n",
			result.CooldownRemaining, counterpartID)
	case result.Reason == models.BlockEmotionTooLow:
		fmt.Printf("Not in the mood (emotion level %d).\n", result.EmotionLevel)
	case result.Reason == models.BlockInsufficientStamina:
		fmt.Printf("Not enough stamina: have %d, need %d.\n", result.CurrentStamina, result.RequiredStamina)
	default:
		fmt.Printf("Date blocked: %s\n", result.Reason)
	}
	return nil
}

func runAbandon(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	sessionID := args[0]

	if !assumeYes {
		fmt.Println("Abandoning is permanent; the session cannot be resumed afterward.")
		if !a.confirm("Abandon it?") {
			return fmt.Errorf("aborted")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := a.resumer.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := a.engine.Attach(sess); err != nil {
		return err
	}
	if err := a.engine.Abandon(ctx); err != nil {
		return err
	}
	fmt.Printf("Session %s abandoned.\n", sessionID)
	return nil
}

func runResetCooldown(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	counterpartID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.gate.ResetCooldown(ctx, counterpartID)
	if err != nil {
		var balErr *models.InsufficientBalanceError
		if errors.As(err, &balErr) {
			fmt.Printf("Not enough credits: have %d, need %d.\n", balErr.CurrentBalance, balErr.Required)
			return fmt.Errorf("insufficient balance")
		}
		return err
	}

	fmt.Printf("Cooldown cleared. Status now: %s.\n", describeResult(result))
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	pointers, err := a.store.List()
	if err != nil {
		return err
	}
	if len(pointers) == 0 {
		fmt.Println("No unfinished sessions known locally.")
		return nil
	}

	for _, p := range pointers {
		fmt.Printf("%s  counterpart=%s scenario=%s stage=%d updated=%s\n",
			p.SessionID, p.CounterpartID, p.ScenarioID, p.LastSeenStage,
			p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println("\nThe server snapshot decides whether a session is still resumable.")
	return nil
}
