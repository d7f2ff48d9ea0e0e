// Package memstore provides in-memory session and case stores.
// Suitable for dev and single-instance deployments without Postgres.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/medflow/internal/triage"
)

// Store holds patient session state and committed case records in memory.
// It implements triage.SessionStore and triage.CaseStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]triage.SessionState // patient ID -> latch state
	cases    map[string]*triage.CaseRecord  // case ID -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]triage.SessionState),
		cases:    make(map[string]*triage.CaseRecord),
	}
}

// LoadSession returns the stored latch state for a patient, if any.
func (s *Store) LoadSession(_ context.Context, patientID string) (triage.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[patientID]
	return st, ok, nil
}

// SaveSession writes the latch state with a compare-and-swap on Version.
// A stale version returns triage.ErrVersionConflict; the stored version is
// advanced on every successful write.
func (s *Store) SaveSession(_ context.Context, patientID string, state triage.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[patientID]; ok && cur.Version != state.Version {
		return triage.ErrVersionConflict
	}
	state.Version++
	s.sessions[patientID] = state
	return nil
}

// SaveCase stores a copy of the committed case record.
func (s *Store) SaveCase(_ context.Context, rec *triage.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.cases[rec.CaseID] = &cp
	return nil
}

// GetCase retrieves a case record by its ID. Returns a copy.
func (s *Store) GetCase(_ context.Context, caseID string) (*triage.CaseRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cases[caseID]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}
