package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/lumen-chat/rendezvous/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(baseURL string) *Client {
	cfg := config.ServiceConfig{
		BaseURL:            baseURL,
		RateLimitPerMinute: 600,
		MaxRetries:         2,
	}
	client := NewClient(cfg, &config.Secrets{AuthToken: "test-token"}, testLogger())
	client.baseRetryDelay = time.Millisecond
	return client
}

func TestStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Expected Authorization header 'Bearer test-token', got '%s'", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/dates/status" {
			t.Errorf("Expected path /dates/status, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("counterpart_id"); got != "mika" {
			t.Errorf("Expected counterpart_id=mika, got %s", got)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"can_date": false, "reason": "cooldown", "cooldown_remaining_minutes": 42}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Status(context.Background(), "mika")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resp.CanDate {
		t.Error("Expected can_date=false")
	}
	if resp.Reason != "cooldown" {
		t.Errorf("Expected reason cooldown, got %s", resp.Reason)
	}
	if resp.CooldownRemainingMinutes != 42 {
		t.Errorf("Expected 42 minutes remaining, got %d", resp.CooldownRemainingMinutes)
	}
}

func TestStatus_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"can_date": true}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Status(context.Background(), "mika")
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if !resp.CanDate {
		t.Error("Expected can_date=true")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestStatus_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "unknown counterpart", "code": "not_found"}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Status(context.Background(), "nobody")
	if err == nil {
		t.Fatal("Expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "unknown counterpart" {
		t.Errorf("Expected parsed error message, got %q", apiErr.Message)
	}
	if apiErr.Retryable {
		t.Error("Expected 404 to be non-retryable")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", attempts)
	}
}

func TestChoose_SingleShotWithIdempotencyKey(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.URL.Path != "/dates/sessions/s-1/choose" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Idempotency-Key") != "key-123" {
			t.Errorf("Expected Idempotency-Key header, got %q", r.Header.Get("Idempotency-Key"))
		}

		var req ChooseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.StageNum != 2 || req.ChoiceID != 7 {
			t.Errorf("Unexpected request body: %+v", req)
		}

		// Mutating calls are never auto-retried, even on server errors.
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Choose(context.Background(), "s-1", 2, 7, "key-123")
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for a mutating call, got %d", attempts)
	}
}

func TestStart_ParsesStageAndProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"success": true,
			"session_id": "s-42",
			"stage": {
				"stage_num": 1,
				"narrative": "The cafe hums around you.",
				"expression": "smile",
				"options": [
					{"id": 1, "text": "Compliment her outfit"},
					{"id": 2, "text": "Ask about her day", "is_special": true},
					{"id": 3, "text": "Reach for her hand", "is_locked": true, "locked_reason": "too soon"}
				],
				"supports_free_input": true
			},
			"progress": {"current_stage": 1, "total_stages": 5, "is_extended": false, "affection": 50}
		}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Start(context.Background(), "mika", "cafe", "key-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !resp.Success || resp.SessionID != "s-42" {
		t.Fatalf("Unexpected response: %+v", resp)
	}

	stage := resp.Stage.ToModel()
	if stage.StageNum != 1 || len(stage.Options) != 3 || !stage.SupportsFreeInput {
		t.Errorf("Unexpected stage: %+v", stage)
	}
	if !stage.Options[2].IsLocked || stage.Options[2].LockedReason != "too soon" {
		t.Errorf("Expected locked option with reason, got %+v", stage.Options[2])
	}
	if resp.Progress.TotalStages != 5 || resp.Progress.Affection != 50 {
		t.Errorf("Unexpected progress: %+v", resp.Progress)
	}
}

func TestTransportFailureIsRetryableAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // deliberately closed: connection refused

	client := testClient(server.URL)
	client.maxRetries = 0

	_, err := client.Status(context.Background(), "mika")
	if err == nil {
		t.Fatal("Expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 0 || !apiErr.Retryable {
		t.Errorf("Expected retryable transport error, got %+v", apiErr)
	}
}
