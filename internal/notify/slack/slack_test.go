package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/medflow/internal/triage"
)

func emergencyResult() *triage.Result {
	return &triage.Result{
		ID:        "01JN123",
		PatientID: "patient-7",
		RuleLevel: triage.LevelEmergency,
		Decision: &triage.Decision{
			Level:      triage.LevelEmergency,
			Reasoning:  "Chest pain with radiation, immediate assessment required.",
			Action:     triage.EmergencyAction,
			Confidence: 0.92,
		},
		WorkflowStatus: triage.WorkflowSaved,
		CaseID:         "CASE-ABCD1234",
		CreatedAt:      time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		Duration:       3.4,
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), emergencyResult()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, reasoning, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "emergency") {
		t.Errorf("header text = %q, want to contain the level", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain the red circle for emergency")
	}

	ctxBlock := blocks[6].(map[string]any)
	elements := ctxBlock["elements"].([]any)
	ctxText := elements[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "01JN123") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context text = %q", ctxText)
	}
}

func TestSend_FailSafeHeader(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := emergencyResult()
	r.Decision = triage.FallbackDecision(triage.LevelRoutine, context.DeadlineExceeded)

	n := New(srv.URL)
	if err := n.Send(context.Background(), r); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	headerText := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Fail-Safe") {
		t.Errorf("header text = %q, want fail-safe title for zero confidence", headerText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), &triage.Result{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_MissingDecision(t *testing.T) {
	t.Parallel()

	n := New("http://localhost:1")
	if err := n.Send(context.Background(), &triage.Result{ID: "x"}); err == nil {
		t.Fatal("expected error for result without a decision")
	}
}

func TestSend_TruncatesLongReasoning(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := emergencyResult()
	r.Decision.Reasoning = strings.Repeat("x", 4000)

	n := New(srv.URL)
	if err := n.Send(context.Background(), r); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	reasoningSection := blocks[4].(map[string]any)
	text := reasoningSection["text"].(map[string]any)["text"].(string)

	// Text includes the "*Reasoning*\n\n" prefix, so the reasoning portion is
	// what follows and should be truncated to maxReasoningLen chars.
	if len(text) > maxReasoningLen+len("*Reasoning*\n\n") {
		t.Errorf("reasoning text length = %d, expected <= %d", len(text), maxReasoningLen+len("*Reasoning*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated reasoning to end with ...")
	}
}

func TestLevelEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level triage.Level
		want  string
	}{
		{"emergency", triage.LevelEmergency, "\U0001f534"},
		{"urgent", triage.LevelUrgent, "\U0001f7e1"},
		{"routine", triage.LevelRoutine, "\U0001f7e2"},
		{"self-care", triage.LevelSelfCare, "\U0001f7e2"},
		{"unknown", triage.Level("bogus"), "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := levelEmoji(tt.level)
			if got != tt.want {
				t.Errorf("levelEmoji(%q) = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("p-1", "Chest pain with radiation.", "CASE-ABCD1234", 0.9)
	f.Add("", "", "", 0.0)
	f.Add("<@U123> mention", "*bold* _italic_ ~strike~", "CASE-X", 0.5)
	f.Add("pat\x00\x01\x02", "reason\nline\ttab", "c\x00ase", 1.0)
	f.Add(strings.Repeat("A", 5000), strings.Repeat("x", 10000), "CASE-LONG", 0.3)
	f.Add("p", "```code block``` and <http://example.com|link>", "", 0.7)

	f.Fuzz(func(t *testing.T, patientID, reasoning, caseID string, confidence float64) {
		result := &triage.Result{
			ID:        "fuzz-id",
			PatientID: patientID,
			RuleLevel: triage.LevelUrgent,
			Decision: &triage.Decision{
				Level:      triage.LevelUrgent,
				Reasoning:  reasoning,
				Confidence: confidence,
			},
			WorkflowStatus: triage.WorkflowLogged,
			CaseID:         caseID,
			CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Duration:       1.0,
		}

		// Must not panic
		msg := buildMessage(result)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		// Must round-trip
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), emergencyResult())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
