package casefile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/mirecurso/internal/adapters/memory"
	"github.com/csg33k/mirecurso/internal/casefile"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/steps"
	"github.com/csg33k/mirecurso/internal/validation"
	"github.com/csg33k/mirecurso/internal/wizard"
)

func newStore(t *testing.T, at time.Time) *wizard.Store {
	t.Helper()
	s := wizard.New(memory.New(), reference.Default(),
		wizard.WithClock(func() time.Time { return at }),
		wizard.WithDebounce(time.Hour),
	)
	require.NoError(t, s.Hydrate(context.Background()))
	return s
}

func TestParseValues(t *testing.T) {
	f, err := casefile.Parse([]byte(`
datos_personales:
  rut: 12.345.678-5
  birth_date: 1950-05-20
situacion_economica:
  sources: [pgu, otros]
  owns_other_properties: no
  monthly_income: 500000
`))
	require.NoError(t, err)

	d := f.Drafts()
	assert.Equal(t, "1950-05-20", d[domain.StepIdentity].Get(validation.FieldBirthDate), "dates stay raw")
	assert.Equal(t, []string{"pgu", "otros"}, d[domain.StepEconomics].Values(validation.FieldSources))
	assert.Equal(t, "no", d[domain.StepEconomics].Get(validation.FieldOwnsOtherProperties))
	assert.Equal(t, "500000", d[domain.StepEconomics].Get(validation.FieldMonthlyIncome))
	assert.Empty(t, d[domain.StepProperty])
}

func TestParseRejectsNestedValues(t *testing.T) {
	_, err := casefile.Parse([]byte("propiedad:\n  roll_id:\n    a: b\n"))
	assert.Error(t, err)

	_, err = casefile.Parse([]byte("propiedad:\n  roll_id: [[1]]\n"))
	assert.Error(t, err)
}

func TestChargesSpreadIntoColumns(t *testing.T) {
	f, err := casefile.Parse([]byte(`
giros:
  - {id: "1", date: 2025-01-10, amount: 95000}
  - {id: "2", date: 2025-02-10, amount: "95.000"}
`))
	require.NoError(t, err)

	d := f.Drafts()[domain.StepContributions]
	assert.Equal(t, []string{"1", "2"}, d.Values(validation.FieldChargeID))
	assert.Equal(t, []string{"2025-01-10", "2025-02-10"}, d.Values(validation.FieldChargeDate))
	assert.Equal(t, []string{"95000", "95.000"}, d.Values(validation.FieldChargeAmount))
	assert.Equal(t, "si", d.Get(validation.FieldHasPendingCharges))
}

func TestDate(t *testing.T) {
	f := &casefile.File{}
	_, ok, err := f.Date()
	assert.NoError(t, err)
	assert.False(t, ok)

	f.AsOf = "2025-03-15"
	got, ok, err := f.Date()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	f.AsOf = "15/03/2025"
	_, _, err = f.Date()
	assert.ErrorContains(t, err, "AAAA-MM-DD")
}

func TestRunCompleteCase(t *testing.T) {
	f, err := casefile.Load("testdata/caso.yaml")
	require.NoError(t, err)
	asOf, ok, err := f.Date()
	require.NoError(t, err)
	require.True(t, ok)

	s := newStore(t, asOf.Add(12*time.Hour))
	require.NoError(t, casefile.Run(context.Background(), s, f))

	assert.True(t, s.IsComplete(domain.StepReview))
	assert.Equal(t, domain.StepOutput, s.CurrentStep())

	doc, rec, err := steps.NewOutput(s).Generate()
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Corte de Apelaciones de Santiago", rec.Court.Name)
	assert.Equal(t, "Ñuñoa", rec.Property.Location.Commune, "copied from the domicile")
	require.Len(t, rec.Contributions.Charges, 1)
	assert.Equal(t, int64(95_000), rec.Contributions.Charges[0].Amount)
	assert.Equal(t, 74, rec.Personal.Age)
	assert.True(t, rec.Validations.WithinFilingWindow)
}

func TestRunStopsAtFirstInvalidStep(t *testing.T) {
	f, err := casefile.Load("testdata/caso.yaml")
	require.NoError(t, err)
	f.Property["roll_id"] = casefile.Values{"rol 372"}
	f.Property["appraisal"] = casefile.Values{"mucho"}

	s := newStore(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	err = casefile.Run(context.Background(), s, f)

	var se *casefile.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StepProperty, se.Step)
	assert.NotEmpty(t, se.Errors.For(validation.FieldRollID))
	assert.NotEmpty(t, se.Errors.For(validation.FieldAppraisal))
	assert.Contains(t, err.Error(), "paso 2 (Datos de la propiedad)")

	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))

	assert.True(t, s.IsComplete(domain.StepIdentity))
	assert.False(t, s.IsComplete(domain.StepProperty))
}

func TestRunHonoursCancellation(t *testing.T) {
	f, err := casefile.Load("testdata/caso.yaml")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = casefile.Run(ctx, newStore(t, time.Now()), f)
	assert.ErrorIs(t, err, context.Canceled)
}
