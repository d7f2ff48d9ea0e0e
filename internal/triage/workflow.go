package triage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"
)

// ErrIntegrityMismatch is returned when a prepared case's content no
// longer matches its fingerprint at commit time.
var ErrIntegrityMismatch = errors.New("case integrity fingerprint mismatch")

// PreparedCase is a case payload staged for consent, carrying the
// integrity fingerprint taken at preparation time.
type PreparedCase struct {
	Record      *CaseRecord
	Fingerprint string
}

// clinicalContent is the fingerprinted portion of a case. IDs and
// timestamps stay outside so re-preparing identical clinical content
// yields the same fingerprint.
type clinicalContent struct {
	Patient *SignalSet `json:"patient"`
	Triage  *Decision  `json:"triage"`
	Summary *Summary   `json:"summary"`
}

func fingerprint(sig *SignalSet, dec *Decision, sum *Summary) (string, error) {
	b, err := json.Marshal(clinicalContent{Patient: sig, Triage: dec, Summary: sum})
	if err != nil {
		return "", fmt.Errorf("marshal clinical content: %w", err)
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

// PrepareCase stages signals, decision, and summary for a consent-gated
// commit and fingerprints the clinical content.
func PrepareCase(intakeID, patientID string, sig *SignalSet, dec *Decision, sum *Summary) (*PreparedCase, error) {
	if dec == nil {
		return nil, errors.New("prepare case: decision is required")
	}
	fp, err := fingerprint(sig, dec, sum)
	if err != nil {
		return nil, err
	}
	return &PreparedCase{
		Record: &CaseRecord{
			IntakeID:    intakeID,
			PatientID:   patientID,
			Level:       dec.Level,
			Signals:     sig,
			Decision:    dec,
			Summary:     sum,
			Fingerprint: fp,
		},
		Fingerprint: fp,
	}, nil
}

// Workflow owns the consent-gated commit of prepared cases.
type Workflow struct {
	cases      CaseStore
	logger     log.Logger
	appVersion string
}

// NewWorkflow creates a case workflow backed by the given store.
func NewWorkflow(cases CaseStore, logger log.Logger, appVersion string) *Workflow {
	if logger == nil {
		logger = log.Nop()
	}
	return &Workflow{cases: cases, logger: logger, appVersion: appVersion}
}

// Commit re-verifies the integrity fingerprint and persists the case.
// Without consent nothing is written. The returned status is one of the
// Workflow* constants; err carries the cause for failed and
// integrity_error outcomes.
func (w *Workflow) Commit(ctx context.Context, prepared *PreparedCase, consent bool) (status, caseID string, err error) {
	if prepared == nil || prepared.Record == nil {
		return WorkflowFailed, "", errors.New("commit: nothing prepared")
	}
	if !consent {
		return WorkflowCancelled, "", nil
	}

	rec := prepared.Record
	current, err := fingerprint(rec.Signals, rec.Decision, rec.Summary)
	if err != nil {
		return WorkflowFailed, "", err
	}
	if current != prepared.Fingerprint {
		w.logger.Warn(ctx, "case content changed between preparation and commit",
			"intake_id", rec.IntakeID,
			"prepared_fingerprint", prepared.Fingerprint,
			"current_fingerprint", current,
		)
		return WorkflowIntegrityError, "", ErrIntegrityMismatch
	}

	rec.CaseID = newCaseID()
	rec.Fingerprint = current
	rec.Consent = true
	rec.AppVersion = w.appVersion
	rec.CreatedAt = time.Now().UTC()

	if err := w.cases.SaveCase(ctx, rec); err != nil {
		return WorkflowFailed, "", fmt.Errorf("save case: %w", err)
	}
	return WorkflowSaved, rec.CaseID, nil
}

// GetCase retrieves a committed case record by its case ID.
func (w *Workflow) GetCase(ctx context.Context, caseID string) (*CaseRecord, bool, error) {
	return w.cases.GetCase(ctx, caseID)
}

func newCaseID() string {
	return "CASE-" + strings.ToUpper(uuid.NewString()[:8])
}
