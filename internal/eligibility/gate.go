// Package eligibility implements the pre-flight gate that decides whether a
// date session may start with a counterpart: relationship emotion threshold,
// per-counterpart cooldown, stamina balance, and the single-active-session
// rule. It is a pure read of remote status; the one side effect, a paid
// cooldown reset, always re-checks status afterward instead of assuming it
// worked.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/internal/metrics"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

// Gate checks date eligibility against the remote service.
type Gate struct {
	apiClient *api.Client
	logger    *slog.Logger
}

// New creates an eligibility gate.
func New(apiClient *api.Client, logger *slog.Logger) *Gate {
	return &Gate{
		apiClient: apiClient,
		logger:    logger.With("component", "eligibility"),
	}
}

// Check fetches date status for a counterpart and maps it to an
// EligibilityResult. A service failure is returned as an error, never as a
// blocked result, so transient outages cannot masquerade as refusals.
func (g *Gate) Check(ctx context.Context, counterpartID string) (*models.EligibilityResult, error) {
	resp, err := g.apiClient.Status(ctx, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch date status: %w", err)
	}

	if resp.ActiveSession != nil {
		g.logger.Info("Active session exists",
			"counterpart_id", counterpartID,
			"session_id", resp.ActiveSession.SessionID,
			"current_stage", resp.ActiveSession.CurrentStage)
		return &models.EligibilityResult{
			ActiveSession: &models.SessionSummary{
				SessionID:       resp.ActiveSession.SessionID,
				CounterpartID:   counterpartID,
				ScenarioID:      resp.ActiveSession.ScenarioID,
				CurrentStageNum: resp.ActiveSession.CurrentStage,
				StartedAt:       resp.ActiveSession.StartedAt,
			},
		}, nil
	}

	if resp.CanDate {
		return &models.EligibilityResult{Eligible: true}, nil
	}

	result := &models.EligibilityResult{Reason: models.BlockReason(resp.Reason)}
	switch result.Reason {
	case models.BlockEmotionTooLow:
		result.EmotionLevel = resp.CurrentEmotion
	case models.BlockCooldown:
		result.CooldownRemaining = time.Duration(resp.CooldownRemainingMinutes) * time.Minute
	case models.BlockInsufficientStamina:
		result.RequiredStamina = resp.RequiredStamina
		result.CurrentStamina = resp.CurrentStamina
	default:
		g.logger.Warn("Unknown block reason from service", "reason", resp.Reason)
	}

	metrics.RecordEligibilityBlock(string(result.Reason))
	g.logger.Info("Date blocked", "counterpart_id", counterpartID, "reason", resp.Reason)
	return result, nil
}

// ResetCooldown spends currency to clear a cooldown block, then re-runs the
// status check and returns the fresh result. Callers must gate a start on
// the returned result, not on the reset having succeeded.
func (g *Gate) ResetCooldown(ctx context.Context, counterpartID string) (*models.EligibilityResult, error) {
	resp, err := g.apiClient.ResetCooldown(ctx, counterpartID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("cooldown reset failed: %w", err)
	}

	if !resp.Success {
		if resp.Reason == "insufficient_balance" {
			return nil, &models.InsufficientBalanceError{
				CurrentBalance: resp.CurrentBalance,
				Required:       resp.Required,
			}
		}
		return nil, fmt.Errorf("cooldown reset refused: %s", resp.Reason)
	}

	g.logger.Info("Cooldown reset",
		"counterpart_id", counterpartID,
		"credits_deducted", resp.CreditsDeducted)

	return g.Check(ctx, counterpartID)
}
