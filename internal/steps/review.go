package steps

import (
	"context"
	"errors"

	"github.com/csg33k/mirecurso/internal/document"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/wizard"
)

var (
	ErrConfirmationRequired = errors.New("steps: review must be confirmed explicitly")
	ErrReviewRequired       = errors.New("steps: review not confirmed")
)

// ── Review ────────────────────────────────────────────────────────────────────

// Summary is everything the review screen shows, computed fresh.
type Summary struct {
	State       domain.WizardState
	Validations domain.CaseValidations
	Thresholds  reference.Thresholds
	// ThresholdsCurrent is false when today lies outside every published window.
	ThresholdsCurrent bool
	// Record is nil until every data step is complete.
	Record    *domain.CaseRecord
	Documents []reference.SupportingDocument
	Confirmed bool
}

type Review struct {
	store *wizard.Store
}

func NewReview(store *wizard.Store) *Review { return &Review{store: store} }

func (r *Review) Enter() (domain.Step, error) { return enter(r.store, domain.StepReview) }

func (r *Review) Summary() Summary {
	t, current := r.store.Thresholds()
	s := Summary{
		State:             r.store.Snapshot(),
		Validations:       r.store.Validations(),
		Thresholds:        t,
		ThresholdsCurrent: current,
		Confirmed:         r.store.IsComplete(domain.StepReview),
	}
	if rec, err := r.store.AssembleCaseRecord(); err == nil {
		s.Record = &rec
		s.Documents = document.Annex(rec, r.store.Reference())
	}
	return s
}

// Confirm records the applicant's acknowledgment that the data is correct
// and opens the output step.
func (r *Review) Confirm(ack bool) error {
	if !ack {
		return ErrConfirmationRequired
	}
	if err := r.store.CompleteStep(domain.StepReview, domain.ReviewConfirmation{ConfirmedAt: r.store.Now()}); err != nil {
		return err
	}
	return r.store.GoToStep(domain.StepOutput)
}

// ── Output ────────────────────────────────────────────────────────────────────

type Output struct {
	store *wizard.Store
}

func NewOutput(store *wizard.Store) *Output { return &Output{store: store} }

func (o *Output) Enter() (domain.Step, error) { return enter(o.store, domain.StepOutput) }

// Generate assembles the case record and builds the document. It can be
// called repeatedly; only GeneratedAt differs between calls.
func (o *Output) Generate() (*document.Document, domain.CaseRecord, error) {
	if !o.store.IsComplete(domain.StepReview) {
		return nil, domain.CaseRecord{}, ErrReviewRequired
	}
	rec, err := o.store.AssembleCaseRecord()
	if err != nil {
		return nil, domain.CaseRecord{}, err
	}
	doc := document.Build(rec, o.store.Reference())
	if err := o.store.CompleteStep(domain.StepOutput, domain.OutputReceipt{GeneratedAt: rec.GeneratedAt}); err != nil {
		return nil, domain.CaseRecord{}, err
	}
	return doc, rec, nil
}

// StartNewCase discards the current case.
func (o *Output) StartNewCase(ctx context.Context) {
	o.store.Reset(ctx)
}
