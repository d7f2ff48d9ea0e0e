package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medflow/internal/triage")

// Request is one inbound patient message.
type Request struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
	Consent   bool   `json:"consent"`
}

// ErrEmptyMessage rejects requests with nothing to triage. This is the
// only way Process fails; everything past input validation degrades to
// conservative defaults instead of erroring.
var ErrEmptyMessage = errors.New("patient message is empty")

// Extractor turns a free-text patient message into a signal set.
type Extractor interface {
	Analyse(ctx context.Context, message string) (*SignalSet, error)
}

// Classifier proposes a triage classification for a signal set. The
// proposal is advisory only and always passes through Reconcile.
type Classifier interface {
	Propose(ctx context.Context, sig *SignalSet, ruleLevel Level) (*Decision, error)
}

// Summarizer produces the clinician-facing note.
type Summarizer interface {
	Summarize(ctx context.Context, sig *SignalSet, dec *Decision) (*Summary, error)
}

// FollowUpGenerator produces patient-facing questions and safety-net
// advice.
type FollowUpGenerator interface {
	Generate(ctx context.Context, sig *SignalSet, dec *Decision) (*FollowUp, error)
}

// Auditor grades a completed run. Auditing is best-effort and never
// returns an error; implementations degrade internally.
type Auditor interface {
	Evaluate(ctx context.Context, sig *SignalSet, dec *Decision, sum *Summary) *Audit
}

// Notifier receives completed results, e.g. for Slack escalation.
type Notifier interface {
	Send(ctx context.Context, r *Result) error
}

// Deps bundles the Service's collaborators. Auditor, Metrics, and
// Notifier are optional.
type Deps struct {
	Sessions   SessionStore
	Workflow   *Workflow
	Extractor  Extractor
	Classifier Classifier
	Summarizer Summarizer
	FollowUp   FollowUpGenerator
	Auditor    Auditor
	Logger     log.Logger
	Metrics    *Metrics
	Notifier   Notifier
}

// Service sequences the intake pipeline and owns per-patient
// serialization of session state.
type Service struct {
	sessions   SessionStore
	workflow   *Workflow
	extractor  Extractor
	classifier Classifier
	summarizer Summarizer
	followup   FollowUpGenerator
	auditor    Auditor
	logger     log.Logger
	metrics    *Metrics
	notifier   Notifier
	locks      *keyedMutex
}

// NewService creates the intake service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	return &Service{
		sessions:   d.Sessions,
		workflow:   d.Workflow,
		extractor:  d.Extractor,
		classifier: d.Classifier,
		summarizer: d.Summarizer,
		followup:   d.FollowUp,
		auditor:    d.Auditor,
		logger:     d.Logger,
		metrics:    d.Metrics,
		notifier:   d.Notifier,
		locks:      newKeyedMutex(),
	}
}

// Process runs one patient message through the full pipeline: load prior
// session state, extract signals, evaluate the latched rules, reconcile
// the model proposal against the rule floor, summarize, generate
// follow-up, persist the latch, and (with consent) commit a case record.
//
// Runs for the same patient ID are serialized so the latch write of one
// turn is visible to the next. Anonymous requests (empty patient ID) run
// against the default session state and never persist it, so latches
// cannot leak across unidentified callers.
func (s *Service) Process(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := tracer.Start(ctx, "triage.process")
	defer span.End()

	start := time.Now()
	id := ulid.Make().String()
	patientID := strings.TrimSpace(req.PatientID)
	identified := patientID != ""
	span.SetAttributes(attribute.String("medflow.intake.id", id))

	L := s.logger.With("intake_id", id, "patient_id", patientID)

	if identified {
		unlock := s.locks.lock(patientID)
		defer unlock()
	}

	// Prior state. A read failure degrades to the default rather than
	// failing the intake; the latch is best-effort across store outages.
	state := DefaultSessionState()
	if identified {
		st, ok, err := s.sessions.LoadSession(ctx, patientID)
		switch {
		case err != nil:
			L.Error(ctx, err, "session load failed, assuming default state")
			s.metrics.incAdapterFailure("session_load")
		case ok:
			state = st
		}
	}
	prior := state.LastLevel
	if !prior.Valid() {
		prior = LevelRoutine
	}
	if prior == LevelEmergency {
		s.metrics.incLatch()
		L.Warn(ctx, "emergency latch active from prior turn")
	}

	// Extraction.
	sig, err := s.extractor.Analyse(ctx, req.Message)
	if err != nil || sig == nil {
		if err == nil {
			err = errors.New("extractor returned no signals")
		}
		L.Error(ctx, err, "extraction failed, using default signals")
		s.metrics.incAdapterFailure("extract")
		sig = DefaultSignals()
	}
	sig.Normalize()

	// Deterministic floor with latch.
	ruleLevel := EvaluateLatched(sig, prior)
	span.SetAttributes(attribute.String("medflow.rule_level", string(ruleLevel)))

	// Model proposal, reconciled against the floor.
	proposed, perr := s.classifier.Propose(ctx, sig, ruleLevel)
	if perr != nil {
		L.Error(ctx, perr, "classification failed, falling back to rule level", "rule_level", ruleLevel)
		s.metrics.incAdapterFailure("classify")
	}
	decision := Reconcile(ruleLevel, proposed, perr)
	if perr == nil && proposed != nil && proposed.Level.Valid() && proposed.Level.Rank() < ruleLevel.Rank() {
		s.metrics.incFloorOverride()
		L.Warn(ctx, "model proposed below the rule floor",
			"proposed", proposed.Level, "rule_level", ruleLevel)
	}
	span.SetAttributes(attribute.String("medflow.level", string(decision.Level)))

	// Clinician summary.
	summary, serr := s.summarizer.Summarize(ctx, sig, decision)
	if serr != nil || summary == nil {
		if serr == nil {
			serr = errors.New("summarizer returned no summary")
		}
		L.Error(ctx, serr, "summary failed, using fail-safe note")
		s.metrics.incAdapterFailure("summarize")
		summary = FallbackSummary(sig, decision, serr)
	}

	// Patient follow-up.
	followUp, ferr := s.followup.Generate(ctx, sig, decision)
	if ferr != nil || followUp == nil {
		if ferr == nil {
			ferr = errors.New("follow-up generator returned nothing")
		}
		L.Error(ctx, ferr, "follow-up failed, using fail-safe guidance")
		s.metrics.incAdapterFailure("followup")
		followUp = FallbackFollowUp(decision, ferr)
	}

	// Persist the latch before anything downstream so the next turn sees
	// this decision even if the case commit fails.
	if identified {
		next := SessionState{
			LastLevel: decision.Level,
			Version:   state.Version,
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.saveSession(ctx, patientID, next); err != nil {
			L.Error(ctx, err, "session save failed, latch may be lost for the next turn",
				"level", decision.Level)
			s.metrics.incSessionSaveFailure()
		}
	}

	var audit *Audit
	if s.auditor != nil {
		audit = s.auditor.Evaluate(ctx, sig, decision, summary)
	}

	// Consent-gated case commit. The outcome rides in WorkflowStatus and
	// never fails the request.
	workflowStatus := WorkflowLogged
	var caseID string
	if req.Consent && s.workflow != nil {
		prepared, err := PrepareCase(id, patientID, sig, decision, summary)
		if err != nil {
			workflowStatus = WorkflowFailed
			L.Error(ctx, err, "case preparation failed")
		} else {
			st, cid, err := s.workflow.Commit(ctx, prepared, req.Consent)
			workflowStatus, caseID = st, cid
			if err != nil {
				L.Error(ctx, err, "case commit failed", "workflow_status", st)
			}
		}
	}
	s.metrics.incCaseCommit(workflowStatus)

	result := &Result{
		ID:             id,
		PatientID:      patientID,
		Signals:        sig,
		RuleLevel:      ruleLevel,
		Decision:       decision,
		Summary:        summary,
		FollowUp:       followUp,
		Audit:          audit,
		WorkflowStatus: workflowStatus,
		CaseID:         caseID,
		CreatedAt:      start.UTC(),
		Duration:       time.Since(start).Seconds(),
	}
	s.metrics.incIntake(decision.Level, result.Duration)

	if s.notifier != nil && (decision.Level == LevelEmergency || decision.Confidence == 0) {
		// Notify off the request path; the decision must not wait on Slack.
		go func(r *Result) {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := s.notifier.Send(nctx, r); err != nil {
				s.logger.Error(nctx, err, "notification failed", "intake_id", r.ID)
			}
		}(result)
	}

	L.Info(ctx, "intake complete",
		"level", decision.Level,
		"rule_level", ruleLevel,
		"confidence", decision.Confidence,
		"workflow_status", workflowStatus,
		"duration", result.Duration,
	)
	return result, nil
}

// GetCase retrieves a committed case record by case ID.
func (s *Service) GetCase(ctx context.Context, caseID string) (*CaseRecord, bool, error) {
	if s.workflow == nil {
		return nil, false, nil
	}
	return s.workflow.GetCase(ctx, caseID)
}

// saveSession writes the new latch state, retrying once on a version
// conflict by reloading and keeping the higher level. The retry stops a
// stale write from clobbering a concurrent emergency latch on another
// replica, where the in-process lock cannot reach.
func (s *Service) saveSession(ctx context.Context, patientID string, state SessionState) error {
	err := s.sessions.SaveSession(ctx, patientID, state)
	if !errors.Is(err, ErrVersionConflict) {
		return err
	}
	s.metrics.incSessionConflict()

	current, ok, lerr := s.sessions.LoadSession(ctx, patientID)
	if lerr != nil {
		return lerr
	}
	if ok {
		state.Version = current.Version
		state.LastLevel = MaxLevel(state.LastLevel, current.LastLevel)
	}
	return s.sessions.SaveSession(ctx, patientID, state)
}
