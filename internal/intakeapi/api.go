// Package intakeapi exposes the clinical intake pipeline over HTTP.
package intakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medflow/internal/triage"
)

// IntakeService defines the business operations the API needs.
type IntakeService interface {
	Process(ctx context.Context, req *triage.Request) (*triage.Result, error)
	GetCase(ctx context.Context, caseID string) (*triage.CaseRecord, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IntakeService
}

// New creates a new API handler.
func New(logger log.Logger, svc IntakeService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("intake service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intake", a.handleIntake)
		r.Get("/cases/{id}", a.handleGetCase)
	})
}

func (a *API) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req triage.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Bool("medflow.intake.consent", req.Consent))

	result, err := a.svc.Process(r.Context(), &req)
	if err != nil {
		if errors.Is(err, triage.ErrEmptyMessage) {
			http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
			return
		}
		a.logger.Error(r.Context(), err, "intake processing failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.String("medflow.intake.id", result.ID),
		attribute.String("medflow.intake.level", string(result.Decision.Level)),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (a *API) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medflow.case.id", id))

	rec, ok, err := a.svc.GetCase(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get case record", "case_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}
