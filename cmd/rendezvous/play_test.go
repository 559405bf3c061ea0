package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/internal/config"
	"github.com/lumen-chat/rendezvous/internal/eligibility"
	"github.com/lumen-chat/rendezvous/internal/engine"
	"github.com/lumen-chat/rendezvous/internal/reveal"
	"github.com/lumen-chat/rendezvous/pkg/models"
)

func testApp(t *testing.T, serviceURL, stdin string) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	svcCfg := config.ServiceConfig{BaseURL: serviceURL, RateLimitPerMinute: 6000, MaxRetries: 1}
	client := api.NewClient(svcCfg, &config.Secrets{AuthToken: "t"}, logger)
	gate := eligibility.New(client, logger)
	eng := engine.New(client, gate, nil, rand.New(rand.NewSource(1)), logger)

	return &app{
		cfg:      &config.Config{Service: svcCfg},
		logger:   logger,
		engine:   eng,
		gate:     gate,
		revealer: reveal.New(os.Stdout, 1000, false),
		input:    bufio.NewScanner(strings.NewReader(stdin)),
	}
}

func TestPrompt_TrimsInput(t *testing.T) {
	a := &app{input: bufio.NewScanner(strings.NewReader("  f  \n"))}
	if got := a.prompt(""); got != "f" {
		t.Errorf("Expected trimmed input %q, got %q", "f", got)
	}
}

func TestCheckpointMenu_RefusedFinishDoesNotLoopUnattended(t *testing.T) {
	var finishCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/finish") {
			finishCalls.Add(1)
		}
		_, _ = w.Write([]byte(`{"success": false, "reason": "maintenance"}`))
	}))
	defer server.Close()

	// Already extended: the menu has no prompt left and finishes on its own.
	a := testApp(t, server.URL, "")
	if err := a.engine.Attach(&models.Session{
		ID: "s-1", CounterpartID: "mika", CurrentStageNum: 7,
		TotalStages: models.ExtendedTotalStages, IsExtended: true,
		AffectionScore: 60, AtCheckpoint: true,
		Stages: []models.Stage{{StageNum: 7, Options: []models.Choice{{ID: 1}}}},
	}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	err := a.checkpointMenu(context.Background(), nil)
	var refused *engine.RefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("Expected the refusal surfaced, got %v", err)
	}
	if got := finishCalls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 finish attempt without a user in the loop, got %d", got)
	}
}
