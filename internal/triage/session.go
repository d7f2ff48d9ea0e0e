package triage

import (
	"context"
	"errors"
	"time"
)

// SessionState is the per-patient record that carries the priority latch
// across conversation turns.
type SessionState struct {
	// LastLevel is the highest priority assigned to this patient so far.
	LastLevel Level `json:"last_triage_level"`
	// Version is the optimistic-concurrency token managed by the store.
	// Zero means "no stored record observed".
	Version int64 `json:"-"`
	// UpdatedAt is when the state was last written.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultSessionState is what the pipeline assumes on first contact or
// when the session store is unreachable.
func DefaultSessionState() SessionState {
	return SessionState{LastLevel: LevelRoutine}
}

// ErrVersionConflict is returned by SessionStore.SaveSession when the
// state's version precondition no longer holds because a concurrent
// writer got there first. Callers reload and retry.
var ErrVersionConflict = errors.New("session state version conflict")

// SessionStore persists per-patient latch state keyed by patient ID.
type SessionStore interface {
	// LoadSession returns the stored state and true, or the zero state and
	// false when no record exists.
	LoadSession(ctx context.Context, patientID string) (SessionState, bool, error)

	// SaveSession writes the state. Versioned implementations compare
	// state.Version against the stored row and return ErrVersionConflict
	// on a stale precondition.
	SaveSession(ctx context.Context, patientID string, state SessionState) error
}

// CaseStore persists committed clinical case records.
type CaseStore interface {
	SaveCase(ctx context.Context, rec *CaseRecord) error
	GetCase(ctx context.Context, caseID string) (*CaseRecord, bool, error)
}
