package pgstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/medflow/internal/triage"
	"github.com/linnemanlabs/medflow/internal/triage/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("MEDFLOW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MEDFLOW_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	patientID := fmt.Sprintf("test-patient-%d", time.Now().UnixNano())

	_, ok, err := s.LoadSession(ctx, patientID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if ok {
		t.Fatal("expected no session for a fresh patient")
	}

	if err := s.SaveSession(ctx, patientID, triage.SessionState{LastLevel: triage.LevelUrgent}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, ok, err := s.LoadSession(ctx, patientID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if !ok {
		t.Fatal("expected session after save")
	}
	if got.LastLevel != triage.LevelUrgent {
		t.Errorf("LastLevel = %q, want urgent", got.LastLevel)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1 after first write", got.Version)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set by the store")
	}
}

func TestSaveSessionVersionConflict(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	patientID := fmt.Sprintf("test-conflict-%d", time.Now().UnixNano())

	if err := s.SaveSession(ctx, patientID, triage.SessionState{LastLevel: triage.LevelRoutine}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// A save carrying the pre-write version must lose.
	err := s.SaveSession(ctx, patientID, triage.SessionState{LastLevel: triage.LevelSelfCare, Version: 0})
	if !errors.Is(err, triage.ErrVersionConflict) {
		t.Fatalf("stale save = %v, want ErrVersionConflict", err)
	}

	cur, _, err := s.LoadSession(ctx, patientID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if err := s.SaveSession(ctx, patientID, triage.SessionState{LastLevel: triage.LevelEmergency, Version: cur.Version}); err != nil {
		t.Fatalf("retry with fresh version: %v", err)
	}

	got, _, _ := s.LoadSession(ctx, patientID)
	if got.LastLevel != triage.LevelEmergency {
		t.Errorf("LastLevel = %q, want emergency", got.LastLevel)
	}
	if got.Version != cur.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, cur.Version+1)
	}
}

func TestCaseRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	rec := &triage.CaseRecord{
		CaseID:    fmt.Sprintf("CASE-%08X", time.Now().UnixNano()&0xFFFFFFFF),
		IntakeID:  "test-intake-001",
		PatientID: "test-patient-cases",
		Level:     triage.LevelUrgent,
		Signals: &triage.SignalSet{
			Symptoms: []string{"fever", "cough"},
			Severity: triage.SeverityModerate,
			Duration: "3 days",
		},
		Decision: &triage.Decision{
			Level:      triage.LevelUrgent,
			Reasoning:  "moderate symptoms with risk factors",
			Action:     "same-day review",
			Confidence: 0.85,
		},
		Summary: &triage.Summary{
			ChiefComplaint: "fever",
			RiskLevel:      triage.LevelUrgent,
		},
		Fingerprint: "abc123def456",
		Consent:     true,
		AppVersion:  "test",
		CreatedAt:   now,
	}

	if err := s.SaveCase(ctx, rec); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	got, ok, err := s.GetCase(ctx, rec.CaseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if !ok {
		t.Fatal("GetCase returned ok=false, want true")
	}

	assertEqual(t, "CaseID", rec.CaseID, got.CaseID)
	assertEqual(t, "IntakeID", rec.IntakeID, got.IntakeID)
	assertEqual(t, "PatientID", rec.PatientID, got.PatientID)
	assertEqual(t, "Level", string(rec.Level), string(got.Level))
	assertEqual(t, "Fingerprint", rec.Fingerprint, got.Fingerprint)
	assertEqual(t, "Consent", rec.Consent, got.Consent)
	assertEqual(t, "AppVersion", rec.AppVersion, got.AppVersion)

	if got.Signals == nil || len(got.Signals.Symptoms) != 2 {
		t.Errorf("Signals mismatch: %+v", got.Signals)
	}
	if got.Decision == nil || got.Decision.Confidence != 0.85 {
		t.Errorf("Decision mismatch: %+v", got.Decision)
	}
	if got.Summary == nil || got.Summary.ChiefComplaint != "fever" {
		t.Errorf("Summary mismatch: %+v", got.Summary)
	}

	// Clinical records are write-once.
	if err := s.SaveCase(ctx, rec); err == nil {
		t.Error("duplicate SaveCase should fail")
	}
}

func TestGetCaseMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetCase(context.Background(), "CASE-MISSING1")
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing case")
	}
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s = %v, want %v", field, got, want)
	}
}
