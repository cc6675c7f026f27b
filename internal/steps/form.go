// Package steps drives the wizard one step at a time. Each data step is split
// into sub-steps with their own cursor; moving between sub-steps never
// touches the store's step index, only Submit does.
package steps

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/validation"
	"github.com/csg33k/mirecurso/internal/wizard"
)

var ErrNotAForm = errors.New("steps: step has no form")

// SubStep is one screen of a step.
type SubStep struct {
	Title  string
	Fields []string
	// Optional sub-steps can be passed left blank.
	Optional bool
}

var forms = map[domain.Step][]SubStep{
	domain.StepIdentity: {
		{Title: "Nombre y RUT", Fields: []string{validation.FieldFullName, validation.FieldRUT}},
		{Title: "Fecha de nacimiento y nacionalidad", Fields: []string{validation.FieldBirthDate, validation.FieldNationality}},
		{Title: "Estado civil y ocupación", Fields: []string{validation.FieldMaritalStatus, validation.FieldOccupation}},
		{Title: "Domicilio", Fields: []string{validation.FieldAddress, validation.FieldRegion, validation.FieldCommune}},
		{Title: "Datos de contacto", Fields: []string{validation.FieldPhone, validation.FieldEmail}, Optional: true},
	},
	domain.StepProperty: {
		{Title: "Ubicación del inmueble", Fields: []string{validation.FieldSameAsDomicile, validation.FieldAddress, validation.FieldRegion, validation.FieldCommune}},
		{Title: "Rol de avalúo e inscripción", Fields: []string{
			validation.FieldRollID, validation.FieldAppraisal,
			validation.FieldFojas, validation.FieldRegistryNumber, validation.FieldRegistryYear, validation.FieldConservator,
		}},
		{Title: "Propiedad y destino", Fields: []string{validation.FieldOwnership, validation.FieldResidential}},
	},
	domain.StepEconomics: {
		{Title: "Ingresos", Fields: []string{validation.FieldMonthlyIncome, validation.FieldSources, validation.FieldOtherDescription}},
		{Title: "Registro Social de Hogares", Fields: []string{validation.FieldRegistry, validation.FieldRegistryTier}},
		{Title: "Otros bienes y beneficios", Fields: []string{validation.FieldOwnsOtherProperties, validation.FieldCurrentBenefit}},
	},
	domain.StepContributions: {
		{Title: "Contribuciones", Fields: []string{validation.FieldQuarterlyAmount}},
		{Title: "Giros pendientes", Fields: []string{
			validation.FieldHasPendingCharges, validation.FieldCharges,
			validation.FieldChargeID, validation.FieldChargeDate, validation.FieldChargeAmount,
		}},
	},
	domain.StepPrior: {
		{Title: "Solicitud ante el SII", Fields: []string{validation.FieldFiledRequest, validation.FieldRequestDate}},
		{Title: "Resolución del SII", Fields: []string{validation.FieldReceivedDenial, validation.FieldResolutionNumber, validation.FieldDenialDate}},
	},
}

// SubSteps returns the sub-step layout of a data step, or nil.
func SubSteps(step domain.Step) []SubStep { return slices.Clone(forms[step]) }

// Form controls one data step (1..5).
type Form struct {
	store  *wizard.Store
	step   domain.Step
	subs   []SubStep
	cursor int
	errs   validation.Errors
}

func NewForm(store *wizard.Store, step domain.Step) (*Form, error) {
	subs, ok := forms[step]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotAForm, step)
	}
	return &Form{store: store, step: step, subs: subs}, nil
}

func (f *Form) Step() domain.Step         { return f.step }
func (f *Form) SubSteps() []SubStep       { return f.subs }
func (f *Form) Cursor() int               { return f.cursor }
func (f *Form) Current() SubStep          { return f.subs[f.cursor] }
func (f *Form) IsFirst() bool             { return f.cursor == 0 }
func (f *Form) IsLast() bool              { return f.cursor == len(f.subs)-1 }
func (f *Form) Errors() validation.Errors { return f.errs }
func (f *Form) Draft() domain.Draft       { return f.store.Draft(f.step) }
func (f *Form) Completed() bool           { return f.store.IsComplete(f.step) }
func (f *Form) Rules() validation.Rules   { return f.store.Rules() }
func (f *Form) Store() *wizard.Store      { return f.store }

// Progress is the 1-based sub-step position.
func (f *Form) Progress() (current, total int) { return f.cursor + 1, len(f.subs) }

// SetCursor restores a cursor carried by the client, clamped to range.
func (f *Form) SetCursor(i int) {
	f.cursor = max(0, min(i, len(f.subs)-1))
}

// Enter makes the step current. When the step is not yet accessible it
// returns the step the caller should redirect to.
func (f *Form) Enter() (domain.Step, error) {
	return enter(f.store, f.step)
}

func enter(store *wizard.Store, step domain.Step) (domain.Step, error) {
	if err := store.GoToStep(step); err != nil {
		return store.FurthestAccessibleStep(), err
	}
	return step, nil
}

// Commit merges submitted values into the step's draft. Only fields of the
// current sub-step are taken, so a stale form cannot overwrite other screens.
func (f *Form) Commit(values map[string][]string) {
	d := f.store.Draft(f.step)
	for _, field := range f.Current().Fields {
		if vs, ok := values[field]; ok {
			d[field] = vs
		} else if isChoiceList(field) {
			// unchecked boxes are absent from a form post
			delete(d, field)
		}
	}
	f.store.CommitDraft(f.step, d)
}

func isChoiceList(field string) bool {
	return field == validation.FieldSources
}

// Next validates the visible fields and advances the sub-step cursor. On the
// last sub-step it is equivalent to Submit.
func (f *Form) Next() (advanced bool, err error) {
	f.errs = nil
	if !f.skippable() {
		if errs := f.Rules().Partial(f.step, f.Draft(), f.Current().Fields); len(errs) > 0 {
			f.errs = errs
			return false, errs
		}
	}
	if f.IsLast() {
		if err := f.Submit(); err != nil {
			return false, err
		}
		return true, nil
	}
	f.cursor++
	return true, nil
}

// skippable is true for an optional sub-step left entirely blank.
func (f *Form) skippable() bool {
	cur := f.Current()
	if !cur.Optional {
		return false
	}
	d := f.Draft()
	for _, field := range cur.Fields {
		if strings.TrimSpace(strings.Join(d.Values(field), "")) != "" {
			return false
		}
	}
	return true
}

// Back moves to the previous sub-step. It reports false on the first one,
// where the caller goes to the previous step instead.
func (f *Form) Back() bool {
	f.errs = nil
	if f.IsFirst() {
		return false
	}
	f.cursor--
	return true
}

// Submit validates the whole step, completes it and moves the store to the
// next step. On failure the cursor jumps to the first sub-step with an error.
func (f *Form) Submit() error {
	data, err := f.Rules().Step(f.step, f.Draft())
	if err != nil {
		f.errs = validation.AsErrors(err)
		if i := f.firstFailing(); i >= 0 {
			f.cursor = i
		}
		return err
	}
	if err := f.store.CompleteStep(f.step, data); err != nil {
		return err
	}
	f.errs = nil
	return f.store.GoToStep(f.step + 1)
}

func (f *Form) firstFailing() int {
	for i, sub := range f.subs {
		if len(f.errs.Only(sub.Fields)) > 0 {
			return i
		}
	}
	return -1
}
