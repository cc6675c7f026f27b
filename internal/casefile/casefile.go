// Package casefile drives the wizard headless from a YAML case file. A case
// file holds the raw answers of every data step under the same field names
// the web forms post, so it passes through exactly the same validation.
//
//	fecha: 2025-03-15
//	datos_personales:
//	  full_name: María Inés Soto Pérez
//	  rut: 12.345.678-5
//	situacion_economica:
//	  sources: [pgu, otros]
//	giros:
//	  - {id: "8841", date: 2025-01-10, amount: 95000}
package casefile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/steps"
	"github.com/csg33k/mirecurso/internal/validation"
	"github.com/csg33k/mirecurso/internal/wizard"
)

// Values is one field's raw answer. A YAML scalar becomes a single value and
// a sequence of scalars becomes a multi-value field.
type Values []string

func (v *Values) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*v = Values{n.Value}
	case yaml.SequenceNode:
		out := make(Values, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be plain values", c.Line)
			}
			out = append(out, c.Value)
		}
		*v = out
	default:
		return fmt.Errorf("line %d: expected a value or a list of values", n.Line)
	}
	return nil
}

// Charge is one row of the contested installments table.
type Charge struct {
	ID     string `yaml:"id"`
	Date   string `yaml:"date"`
	Amount string `yaml:"amount"`
}

type File struct {
	// AsOf fixes the date the case is evaluated against; empty means today.
	AsOf          string            `yaml:"fecha"`
	Identity      map[string]Values `yaml:"datos_personales"`
	Property      map[string]Values `yaml:"propiedad"`
	Economics     map[string]Values `yaml:"situacion_economica"`
	Contributions map[string]Values `yaml:"contribuciones"`
	Charges       []Charge          `yaml:"giros"`
	Prior         map[string]Values `yaml:"gestiones_previas"`
}

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("casefile: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("casefile: %w", err)
	}
	return &f, nil
}

// Date parses AsOf. ok is false when the file leaves it empty.
func (f *File) Date() (t time.Time, ok bool, err error) {
	if strings.TrimSpace(f.AsOf) == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.DateOnly, strings.TrimSpace(f.AsOf))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("casefile: fecha %q: use AAAA-MM-DD", f.AsOf)
	}
	return t, true, nil
}

// Drafts returns the raw answers per data step. Charges are spread into the
// parallel columns the contributions form uses.
func (f *File) Drafts() map[domain.Step]domain.Draft {
	out := map[domain.Step]domain.Draft{
		domain.StepIdentity:      draft(f.Identity),
		domain.StepProperty:      draft(f.Property),
		domain.StepEconomics:     draft(f.Economics),
		domain.StepContributions: draft(f.Contributions),
		domain.StepPrior:         draft(f.Prior),
	}
	if len(f.Charges) > 0 {
		d := out[domain.StepContributions]
		for _, c := range f.Charges {
			d[validation.FieldChargeID] = append(d[validation.FieldChargeID], c.ID)
			d[validation.FieldChargeDate] = append(d[validation.FieldChargeDate], c.Date)
			d[validation.FieldChargeAmount] = append(d[validation.FieldChargeAmount], c.Amount)
		}
		if d.Get(validation.FieldHasPendingCharges) == "" {
			d[validation.FieldHasPendingCharges] = []string{"si"}
		}
	}
	return out
}

func draft(m map[string]Values) domain.Draft {
	d := make(domain.Draft, len(m))
	for k, v := range m {
		d[k] = []string(v)
	}
	return d
}

// StepError reports every invalid answer of one step.
type StepError struct {
	Step   domain.Step
	Errors validation.Errors
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "paso %d (%s):", e.Step, e.Step.Title())
	for _, fe := range e.Errors {
		fmt.Fprintf(&b, "\n  %s: %s", fe.Field, fe.Message)
	}
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Errors }

// Run submits every data step in order and confirms the review, leaving the
// store ready to generate. It stops at the first step that fails validation.
func Run(ctx context.Context, store *wizard.Store, f *File) error {
	drafts := f.Drafts()
	for _, step := range domain.RequiredForRecord {
		if err := ctx.Err(); err != nil {
			return err
		}
		form, err := steps.NewForm(store, step)
		if err != nil {
			return err
		}
		if _, err := form.Enter(); err != nil {
			return err
		}
		store.CommitDraft(step, drafts[step])
		if err := form.Submit(); err != nil {
			if errs := form.Errors(); len(errs) > 0 {
				return &StepError{Step: step, Errors: errs}
			}
			return err
		}
	}
	return steps.NewReview(store).Confirm(true)
}
