// Package pgstore provides PostgreSQL-backed session and case stores.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/medflow/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medflow/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists patient sessions and committed case records in
// PostgreSQL. It implements triage.SessionStore and triage.CaseStore.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
// The pool's lifecycle stays with the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// LoadSession returns the stored latch state for a patient, if any.
// A level the current build no longer recognises is coerced to routine so
// the latch math stays defined.
func (s *Store) LoadSession(ctx context.Context, patientID string) (triage.SessionState, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.LoadSession", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		level     string
		version   int64
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT last_level, version, updated_at FROM patient_sessions WHERE patient_id = $1`,
		patientID,
	).Scan(&level, &version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triage.SessionState{}, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return triage.SessionState{}, false, fmt.Errorf("load session: %w", err)
	}

	return triage.SessionState{
		LastLevel: triage.LevelOrDefault(level),
		Version:   version,
		UpdatedAt: updatedAt,
	}, true, nil
}

// SaveSession writes the latch state with a compare-and-swap on version.
// state.Version must match the stored row (zero for a new patient);
// a stale precondition returns triage.ErrVersionConflict.
func (s *Store) SaveSession(ctx context.Context, patientID string, state triage.SessionState) error {
	ctx, span := tracer.Start(ctx, "pgstore.SaveSession", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO patient_sessions (patient_id, last_level, version, updated_at)
		 VALUES ($1, $2, 1, now())
		 ON CONFLICT (patient_id) DO UPDATE SET
			last_level = EXCLUDED.last_level,
			version    = patient_sessions.version + 1,
			updated_at = now()
		 WHERE patient_sessions.version = $3`,
		patientID, string(state.LastLevel), state.Version,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, triage.ErrVersionConflict.Error())
		return triage.ErrVersionConflict
	}
	return nil
}

// SaveCase inserts a committed case record. Case IDs are write-once; a
// duplicate insert fails rather than silently overwriting a clinical record.
func (s *Store) SaveCase(ctx context.Context, rec *triage.CaseRecord) error {
	ctx, span := tracer.Start(ctx, "pgstore.SaveCase", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	signalsJSON, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	decisionJSON, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO intake_cases (
			case_id, intake_id, patient_id, triage_level, signals, decision,
			summary, fingerprint, consent, app_version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.CaseID, rec.IntakeID, nullable(rec.PatientID), string(rec.Level),
		signalsJSON, decisionJSON, summaryJSON, rec.Fingerprint, rec.Consent,
		nullable(rec.AppVersion), rec.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// GetCase retrieves a case record by its ID.
func (s *Store) GetCase(ctx context.Context, caseID string) (*triage.CaseRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetCase", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		rec          triage.CaseRecord
		level        string
		patientID    *string
		appVersion   *string
		signalsJSON  []byte
		decisionJSON []byte
		summaryJSON  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT case_id, intake_id, patient_id, triage_level, signals, decision,
			summary, fingerprint, consent, app_version, created_at
		 FROM intake_cases WHERE case_id = $1`,
		caseID,
	).Scan(
		&rec.CaseID, &rec.IntakeID, &patientID, &level, &signalsJSON, &decisionJSON,
		&summaryJSON, &rec.Fingerprint, &rec.Consent, &appVersion, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("get case: %w", err)
	}

	rec.Level = triage.Level(level)
	if patientID != nil {
		rec.PatientID = *patientID
	}
	if appVersion != nil {
		rec.AppVersion = *appVersion
	}
	if err := json.Unmarshal(signalsJSON, &rec.Signals); err != nil {
		return nil, false, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal(decisionJSON, &rec.Decision); err != nil {
		return nil, false, fmt.Errorf("unmarshal decision: %w", err)
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
			return nil, false, fmt.Errorf("unmarshal summary: %w", err)
		}
	}

	return &rec, true, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
