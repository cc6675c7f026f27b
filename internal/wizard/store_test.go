package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/mirecurso/internal/adapters/memory"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/ports"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/wizard"
)

// ---- fixtures ---------------------------------------------------------------

var ref = reference.Default()

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, p ports.StatePersister, opts ...wizard.Option) (*wizard.Store, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)}
	opts = append([]wizard.Option{wizard.WithClock(c.Now), wizard.WithDebounce(time.Hour)}, opts...)
	s := wizard.New(p, ref, opts...)
	require.NoError(t, s.Hydrate(context.Background()))
	return s, c
}

func personal() domain.PersonalInfo {
	return domain.PersonalInfo{
		FullName:      "Rosa Elena Pizarro Muñoz",
		RUT:           "12.345.678-5",
		BirthDate:     date(1955, time.April, 2),
		Nationality:   domain.DefaultNationality,
		MaritalStatus: domain.MaritalWidowed,
		Occupation:    "Jubilada",
		Domicile:      domain.Address{Street: "Pasaje Los Aromos 1234", Region: "Valparaíso", Commune: "Viña del Mar"},
	}
}

func property() domain.PropertyInfo {
	return domain.PropertyInfo{
		Location:       domain.Address{Street: "Pasaje Los Aromos 1234", Region: "Valparaíso", Commune: "Viña del Mar"},
		SameAsDomicile: true,
		RollID:         "1234-56",
		Appraisal:      250_000_000,
		Ownership:      domain.OwnershipSole,
		Residential:    true,
	}
}

func economic() domain.EconomicInfo {
	return domain.EconomicInfo{
		MonthlyIncome:  500_000,
		Sources:        []domain.IncomeSource{domain.SourcePGU},
		Registry:       domain.RegistryNo,
		CurrentBenefit: domain.BenefitNone,
	}
}

func contributions() domain.ContributionsInfo {
	return domain.ContributionsInfo{QuarterlyAmount: 300_000}
}

func prior() domain.PriorProceeding {
	return domain.PriorProceeding{
		FiledRequest:     true,
		RequestDate:      datePtr(2025, time.January, 10),
		ReceivedDenial:   true,
		ResolutionNumber: "1234",
		DenialDate:       datePtr(2025, time.March, 1),
	}
}

func completeThrough(t *testing.T, s *wizard.Store, last domain.Step) {
	t.Helper()
	data := []domain.StepData{
		personal(), property(), economic(), contributions(), prior(),
		domain.ReviewConfirmation{ConfirmedAt: time.Now()},
		domain.OutputReceipt{GeneratedAt: time.Now()},
	}
	for step := domain.StepIdentity; step <= last; step++ {
		require.NoError(t, s.CompleteStep(step, data[step-1]))
	}
}

type failingPersister struct{ calls int }

func (f *failingPersister) Load(context.Context, string) ([]byte, error) {
	return nil, ports.ErrNotFound
}

func (f *failingPersister) Save(context.Context, string, []byte) error {
	f.calls++
	return errors.New("quota exceeded")
}

func (f *failingPersister) Delete(context.Context, string) error { return errors.New("read-only") }

// ctxPersister fails like a database driver once its context is done.
type ctxPersister struct{ *memory.Persister }

func (p ctxPersister) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Persister.Load(ctx, key)
}

// ---- navigation ----------------------------------------------------------------

func TestNewStoreStartsEmpty(t *testing.T) {
	s, _ := newStore(t, memory.New())

	assert.True(t, s.Hydrated())
	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
	assert.Empty(t, s.CompletedSteps())
	assert.Equal(t, 0, s.Progress())
	assert.Equal(t, domain.StepIdentity, s.FurthestAccessibleStep())
}

func TestStepAccessibility(t *testing.T) {
	s, _ := newStore(t, memory.New())

	assert.True(t, s.IsStepAccessible(domain.StepIdentity))
	assert.False(t, s.IsStepAccessible(domain.StepProperty))
	assert.False(t, s.IsStepAccessible(domain.Step(0)))
	assert.False(t, s.IsStepAccessible(domain.Step(8)))

	err := s.GoToStep(domain.StepEconomics)
	require.ErrorIs(t, err, wizard.ErrStepNotAccessible)
	assert.Equal(t, domain.StepIdentity, s.CurrentStep(), "refused navigation must not move the cursor")

	require.ErrorIs(t, s.GoToStep(domain.Step(9)), wizard.ErrInvalidStep)

	completeThrough(t, s, domain.StepProperty)
	assert.True(t, s.IsStepAccessible(domain.StepEconomics))
	assert.False(t, s.IsStepAccessible(domain.StepContributions))
	assert.Equal(t, domain.StepEconomics, s.FurthestAccessibleStep())
	require.NoError(t, s.GoToStep(domain.StepEconomics))
	assert.Equal(t, domain.StepEconomics, s.CurrentStep())
}

func TestCompleteStepLeavesCursor(t *testing.T) {
	s, _ := newStore(t, memory.New())

	require.NoError(t, s.CompleteStep(domain.StepIdentity, personal()))
	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
	assert.Equal(t, []domain.Step{domain.StepIdentity}, s.CompletedSteps())
	assert.Equal(t, 14, s.Progress())
}

func TestCompleteStepRejectsWrongData(t *testing.T) {
	s, _ := newStore(t, memory.New())

	require.ErrorIs(t, s.CompleteStep(domain.StepIdentity, property()), wizard.ErrStepMismatch)
	require.ErrorIs(t, s.CompleteStep(domain.StepIdentity, nil), wizard.ErrStepMismatch)
	require.ErrorIs(t, s.CompleteStep(domain.StepProperty, property()), wizard.ErrStepNotAccessible)
}

func TestEditingDataWithdrawsReview(t *testing.T) {
	s, _ := newStore(t, memory.New())
	completeThrough(t, s, domain.StepOutput)
	require.Equal(t, 100, s.Progress())

	econ := economic()
	econ.MonthlyIncome = 900_000
	require.NoError(t, s.CompleteStep(domain.StepEconomics, econ))

	assert.False(t, s.IsComplete(domain.StepReview))
	assert.False(t, s.IsComplete(domain.StepOutput))
	assert.True(t, s.IsComplete(domain.StepPrior))
	assert.Equal(t, domain.StepReview, s.FurthestAccessibleStep())
	assert.Nil(t, s.Snapshot().Review)
}

// ---- derived figures -----------------------------------------------------------

func TestValidations(t *testing.T) {
	s, _ := newStore(t, memory.New())
	completeThrough(t, s, domain.StepPrior)

	v := s.Validations()
	assert.True(t, v.MeetsAge)
	assert.Equal(t, domain.TierFull, v.EligibilityTier)
	assert.True(t, v.MeetsFullBenefitIncome)
	assert.True(t, v.MeetsPartialBenefitIncome)
	assert.True(t, v.IsResidentialUse)
	assert.True(t, v.ExceedsAppraisalCap)
	assert.True(t, v.BurdenDisproportionate, "1.200.000 over 6.000.000 is 20%%")
	assert.False(t, v.BurdenStronglyFavorable)
	assert.True(t, v.WithinFilingWindow)
	assert.Equal(t, 14, v.DaysSinceDenial)

	snap := s.Snapshot()
	assert.Equal(t, 69, snap.Personal.Age)
	assert.Equal(t, int64(6_000_000), snap.Economic.AnnualIncome)
	assert.Equal(t, int64(1_200_000), snap.Contributions.AnnualAmount)
	assert.InDelta(t, 20.0, snap.Contributions.IncomePercentage, 0.001)
}

func TestValidationsRecomputeAgainstClock(t *testing.T) {
	s, c := newStore(t, memory.New())
	completeThrough(t, s, domain.StepPrior)

	c.Advance(30 * 24 * time.Hour)
	v := s.Validations()
	assert.Equal(t, 44, v.DaysSinceDenial)
	assert.False(t, v.WithinFilingWindow)
}

func TestValidationsWithoutDenial(t *testing.T) {
	s, _ := newStore(t, memory.New())
	completeThrough(t, s, domain.StepContributions)
	require.NoError(t, s.CompleteStep(domain.StepPrior, domain.PriorProceeding{}))

	v := s.Validations()
	assert.Equal(t, -1, v.DaysSinceDenial)
	assert.True(t, v.WithinFilingWindow)
}

func TestValidationsEmptyState(t *testing.T) {
	s, _ := newStore(t, memory.New())

	v := s.Validations()
	assert.False(t, v.MeetsAge)
	assert.Equal(t, domain.TierNone, v.EligibilityTier)
	assert.False(t, v.BurdenDisproportionate)
}

// ---- case record ---------------------------------------------------------------

func TestAssembleCaseRecordRequiresDataSteps(t *testing.T) {
	s, _ := newStore(t, memory.New())
	completeThrough(t, s, domain.StepContributions)

	_, err := s.AssembleCaseRecord()
	require.ErrorIs(t, err, wizard.ErrIncomplete)
}

func TestAssembleCaseRecordIsRepeatable(t *testing.T) {
	s, c := newStore(t, memory.New())
	completeThrough(t, s, domain.StepPrior)

	first, err := s.AssembleCaseRecord()
	require.NoError(t, err)
	c.Advance(time.Minute)
	second, err := s.AssembleCaseRecord()
	require.NoError(t, err)

	assert.True(t, second.GeneratedAt.After(first.GeneratedAt))
	first.GeneratedAt, second.GeneratedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)

	assert.Equal(t, date(2025, time.March, 15), first.AsOf)
	assert.Equal(t, ref.CourtForRegion("Valparaíso"), first.Court)
	assert.Equal(t, 69, first.Personal.Age)
}

func TestAssembleCaseRecordIsDetached(t *testing.T) {
	s, _ := newStore(t, memory.New())
	completeThrough(t, s, domain.StepPrior)

	rec, err := s.AssembleCaseRecord()
	require.NoError(t, err)
	rec.Economic.Sources[0] = domain.SourceOther

	again, err := s.AssembleCaseRecord()
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePGU, again.Economic.Sources[0])
}

// ---- drafts & persistence ------------------------------------------------------

func TestDrafts(t *testing.T) {
	s, _ := newStore(t, memory.New())

	s.CommitField(domain.StepIdentity, "full_name", "Rosa")
	s.CommitField(domain.StepIdentity, "full_name", "Rosa Pizarro")
	s.CommitDraft(domain.StepProperty, domain.Draft{"roll_id": {"12-3"}})

	assert.Equal(t, "Rosa Pizarro", s.Draft(domain.StepIdentity).Get("full_name"))
	assert.Equal(t, "12-3", s.Draft(domain.StepProperty).Get("roll_id"))
	assert.NotNil(t, s.Draft(domain.StepPrior))

	d := s.Draft(domain.StepIdentity)
	d["full_name"][0] = "mutated"
	assert.Equal(t, "Rosa Pizarro", s.Draft(domain.StepIdentity).Get("full_name"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	p := memory.New()
	s, _ := newStore(t, p)
	completeThrough(t, s, domain.StepEconomics)
	require.NoError(t, s.GoToStep(domain.StepContributions))
	s.CommitField(domain.StepContributions, "quarterly_amount", "$ 120.000")
	s.Flush(context.Background())

	restored, _ := newStore(t, p)
	assert.Equal(t, domain.StepContributions, restored.CurrentStep())
	assert.Equal(t, s.CompletedSteps(), restored.CompletedSteps())
	assert.Equal(t, "$ 120.000", restored.Draft(domain.StepContributions).Get("quarterly_amount"))

	want, got := s.Snapshot(), restored.Snapshot()
	assert.True(t, want.Personal.BirthDate.Equal(got.Personal.BirthDate))
	assert.Equal(t, want.Property, got.Property)
	assert.Equal(t, want.Economic, got.Economic)
}

func TestFieldCommitsAreDebounced(t *testing.T) {
	p := memory.New()
	s, _ := newStore(t, p, wizard.WithDebounce(10*time.Millisecond))

	s.CommitField(domain.StepIdentity, "full_name", "Rosa")
	require.Eventually(t, func() bool {
		_, err := p.Load(context.Background(), wizard.StorageKey)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestSessionKeyIsolatesStores(t *testing.T) {
	p := memory.New()
	a, _ := newStore(t, p, wizard.WithKey(wizard.SessionKey("a")))
	completeThrough(t, a, domain.StepIdentity)
	a.Flush(context.Background())

	b, _ := newStore(t, p, wizard.WithKey(wizard.SessionKey("b")))
	assert.Empty(t, b.CompletedSteps())
	assert.Equal(t, wizard.StorageKey+":a", wizard.SessionKey("a"))
	assert.Equal(t, wizard.StorageKey, wizard.SessionKey(""))
}

func TestHydrateDiscardsCorruptState(t *testing.T) {
	p := memory.New()
	require.NoError(t, p.Save(context.Background(), wizard.StorageKey, []byte(`{"version":2,"state":`)))

	s, _ := newStore(t, p)
	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
	_, err := p.Load(context.Background(), wizard.StorageKey)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestHydrateDiscardsOtherSchemaVersion(t *testing.T) {
	p := memory.New()
	old, err := json.Marshal(map[string]any{
		"version": 1,
		"state":   map[string]any{"version": 1, "current_step": 4, "completed_steps": []int{1, 2, 3}},
	})
	require.NoError(t, err)
	require.NoError(t, p.Save(context.Background(), wizard.StorageKey, old))

	s, _ := newStore(t, p)
	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
	assert.Empty(t, s.CompletedSteps())
	_, err = p.Load(context.Background(), wizard.StorageKey)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestHydratePurgesLegacyKey(t *testing.T) {
	p := memory.New()
	require.NoError(t, p.Save(context.Background(), wizard.LegacyStorageKey, []byte(`{"paso":3}`)))

	newStore(t, p)
	_, err := p.Load(context.Background(), wizard.LegacyStorageKey)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestHydrateRepairsInconsistentState(t *testing.T) {
	p := memory.New()
	st := domain.NewWizardState()
	pi := personal()
	st.Personal = &pi
	st.CompletedSteps = []domain.Step{domain.StepIdentity, domain.StepProperty, domain.StepEconomics}
	st.CurrentStep = domain.StepContributions
	payload, err := json.Marshal(map[string]any{"version": domain.SchemaVersion, "state": st})
	require.NoError(t, err)
	require.NoError(t, p.Save(context.Background(), wizard.StorageKey, payload))

	s, _ := newStore(t, p)
	assert.Equal(t, []domain.Step{domain.StepIdentity}, s.CompletedSteps())
	assert.Equal(t, domain.StepProperty, s.CurrentStep())
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	p := &failingPersister{}
	s, _ := newStore(t, p)

	completeThrough(t, s, domain.StepProperty)
	s.Flush(context.Background())
	s.Reset(context.Background())
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
}

func TestReset(t *testing.T) {
	p := memory.New()
	s, _ := newStore(t, p)
	completeThrough(t, s, domain.StepPrior)
	s.CommitField(domain.StepIdentity, "phone", "+56 9 1234 5678")
	s.Flush(context.Background())

	s.Reset(context.Background())

	assert.Equal(t, domain.StepIdentity, s.CurrentStep())
	assert.Empty(t, s.CompletedSteps())
	assert.Empty(t, s.Draft(domain.StepIdentity))
	_, err := p.Load(context.Background(), wizard.StorageKey)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	s.Flush(context.Background())
	_, err = p.Load(context.Background(), wizard.StorageKey)
	assert.ErrorIs(t, err, ports.ErrNotFound, "reset state is already in sync")
}

func TestFailedHydrateKeepsPersistedCase(t *testing.T) {
	p := ctxPersister{memory.New()}
	saved, _ := newStore(t, p)
	saved.CommitField(domain.StepIdentity, "full_name", "María Inés Soto")
	saved.Flush(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := wizard.New(p, ref, wizard.WithDebounce(time.Hour))
	require.ErrorIs(t, s.Hydrate(ctx), context.Canceled)
	assert.False(t, s.Hydrated())
	assert.Empty(t, s.Draft(domain.StepIdentity))

	s.CommitField(domain.StepIdentity, "phone", "+56 9 1234 5678")
	s.Flush(context.Background())
	raw, err := p.Load(context.Background(), wizard.StorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "María Inés Soto", "unhydrated store must not save")

	require.NoError(t, s.Hydrate(context.Background()))
	assert.True(t, s.Hydrated())
	assert.Equal(t, "María Inés Soto", s.Draft(domain.StepIdentity).Get("full_name"))
}

func TestClosedStoreStopsSchedulingSaves(t *testing.T) {
	p := memory.New()
	s, _ := newStore(t, p, wizard.WithDebounce(5*time.Millisecond))
	require.NoError(t, s.Close(context.Background()))

	s.CommitField(domain.StepIdentity, "full_name", "Rosa")
	assert.Equal(t, "Rosa", s.Draft(domain.StepIdentity).Get("full_name"))
	assert.Never(t, func() bool {
		_, err := p.Load(context.Background(), wizard.StorageKey)
		return err == nil
	}, 50*time.Millisecond, 5*time.Millisecond)
}
