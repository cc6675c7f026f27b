// Package wizard owns the in-progress case: the current step, the completed
// set, validated data per domain, raw drafts and their persistence.
//
// A Store is built per session and is safe for use by the request goroutine
// and its own debounce timer. Derived figures are never stored; every read
// recomputes them against the store's clock.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/calc"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/ports"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/validation"
)

var (
	ErrStepNotAccessible = errors.New("wizard: step not accessible")
	ErrIncomplete        = errors.New("wizard: case incomplete")
	ErrInvalidStep       = errors.New("wizard: invalid step")
	ErrStepMismatch      = errors.New("wizard: data does not belong to step")
)

const DefaultDebounce = 400 * time.Millisecond

type Store struct {
	persister ports.StatePersister
	ref       *reference.Data
	key       string
	legacy    []string
	now       func() time.Time
	log       *zap.Logger
	debounce  time.Duration

	mu       sync.Mutex
	state    domain.WizardState
	hydrated bool
	closed   bool
	timer    *time.Timer
	gen      uint64 // bumped on every mutation

	saveMu   sync.Mutex
	savedGen uint64
}

type Option func(*Store)

// WithKey scopes persistence, e.g. per browser session.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithLegacyKeys lists keys of older schema versions to purge on hydration.
func WithLegacyKeys(keys ...string) Option { return func(s *Store) { s.legacy = keys } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithDebounce sets how long field commits are coalesced before a save.
func WithDebounce(d time.Duration) Option { return func(s *Store) { s.debounce = d } }

func New(p ports.StatePersister, ref *reference.Data, opts ...Option) *Store {
	s := &Store{
		persister: p,
		ref:       ref,
		key:       StorageKey,
		legacy:    []string{LegacyStorageKey},
		now:       time.Now,
		log:       zap.NewNop(),
		debounce:  DefaultDebounce,
		state:     domain.NewWizardState(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("state_key", s.key))
	return s
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Hydrated reports whether persisted state has been loaded, even if none existed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

func (s *Store) Reference() *reference.Data { return s.ref }

// Now is the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// Today is the calendar date derived figures are computed against.
func (s *Store) Today() time.Time { return calc.DateOf(s.now()) }

func (s *Store) CurrentStep() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentStep
}

func (s *Store) CompletedSteps() []domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Step(nil), s.state.CompletedSteps...)
}

func (s *Store) IsComplete(step domain.Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsComplete(step)
}

// IsStepAccessible is true for step 1 and for any step whose predecessor is complete.
func (s *Store) IsStepAccessible(step domain.Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return accessible(s.state, step)
}

func accessible(st domain.WizardState, step domain.Step) bool {
	if !step.Valid() {
		return false
	}
	return step == domain.StepIdentity || st.IsComplete(step-1)
}

// FurthestAccessibleStep is where a caller denied access should be sent.
func (s *Store) FurthestAccessibleStep() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	furthest := domain.StepIdentity
	for step := domain.StepIdentity; step <= domain.StepOutput; step++ {
		if !accessible(s.state, step) {
			break
		}
		furthest = step
	}
	return furthest
}

// Draft returns a copy of the raw values committed for step.
func (s *Store) Draft(step domain.Step) domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.state.Drafts[step].Clone()
	if d == nil {
		d = domain.Draft{}
	}
	return d
}

// Snapshot returns a copy of the state with derived fields refreshed.
func (s *Store) Snapshot() domain.WizardState {
	s.mu.Lock()
	st := s.state.Clone()
	s.mu.Unlock()
	refreshDerived(&st, s.Today())
	return st
}

// Validations recomputes the case validations from the current state.
func (s *Store) Validations() domain.CaseValidations {
	s.mu.Lock()
	st := s.state.Clone()
	s.mu.Unlock()
	return computeValidations(st, s.ref, s.Today())
}

// Thresholds returns the statutory set in force today and whether today lies
// inside its validity window.
func (s *Store) Thresholds() (reference.Thresholds, bool) {
	return s.ref.ThresholdsFor(s.Today())
}

// Progress is the completed share of the wizard, 0..100.
func (s *Store) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.CompletedSteps) * 100 / domain.StepCount
}

// Rules returns validation rules bound to today and the applicant's domicile.
func (s *Store) Rules() validation.Rules {
	r := validation.Rules{Ref: s.ref, AsOf: s.now()}
	s.mu.Lock()
	if s.state.Personal != nil {
		d := s.state.Personal.Domicile
		r.Domicile = &d
	}
	s.mu.Unlock()
	return r
}

// ── Transitions ───────────────────────────────────────────────────────────────

// GoToStep moves the cursor. It refuses inaccessible steps instead of
// correcting them; callers redirect using FurthestAccessibleStep.
func (s *Store) GoToStep(step domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !step.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	if !accessible(s.state, step) {
		return fmt.Errorf("%w: %d", ErrStepNotAccessible, step)
	}
	if s.state.CurrentStep != step {
		s.state.CurrentStep = step
		s.touchLocked()
	}
	return nil
}

// CompleteStep stores validated data and marks step complete. The current
// step is left unchanged. Completing a data step again withdraws an earlier
// review confirmation, since the reviewed figures changed.
func (s *Store) CompleteStep(step domain.Step, data domain.StepData) error {
	if data == nil || data.StepNumber() != step {
		return fmt.Errorf("%w: %d", ErrStepMismatch, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !accessible(s.state, step) {
		return fmt.Errorf("%w: %d", ErrStepNotAccessible, step)
	}
	switch v := data.(type) {
	case domain.PersonalInfo:
		s.state.Personal = &v
	case domain.PropertyInfo:
		s.state.Property = &v
	case domain.EconomicInfo:
		s.state.Economic = &v
	case domain.ContributionsInfo:
		s.state.Contributions = &v
	case domain.PriorProceeding:
		s.state.Prior = &v
	case domain.ReviewConfirmation:
		s.state.Review = &v
	case domain.OutputReceipt:
		s.state.Output = &v
	default:
		return fmt.Errorf("%w: %T", ErrStepMismatch, data)
	}
	s.state = s.state.Clone() // detach slices still owned by the caller
	if step < domain.StepReview && s.state.IsComplete(domain.StepReview) {
		s.withdrawLocked(domain.StepReview, domain.StepOutput)
		s.log.Info("review confirmation withdrawn", zap.Int("changed_step", int(step)))
	}
	s.state.MarkComplete(step)
	s.touchLocked()
	return nil
}

func (s *Store) withdrawLocked(steps ...domain.Step) {
	kept := s.state.CompletedSteps[:0]
	for _, c := range s.state.CompletedSteps {
		drop := false
		for _, w := range steps {
			if c == w {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	s.state.CompletedSteps = kept
	for _, w := range steps {
		switch w {
		case domain.StepReview:
			s.state.Review = nil
		case domain.StepOutput:
			s.state.Output = nil
		}
	}
}

// CommitField records the raw value of one field. It is the debounced
// persistence trigger fed by the UI boundary.
func (s *Store) CommitField(step domain.Step, field string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Drafts == nil {
		s.state.Drafts = make(map[domain.Step]domain.Draft)
	}
	d := s.state.Drafts[step]
	if d == nil {
		d = domain.Draft{}
		s.state.Drafts[step] = d
	}
	d[field] = append([]string(nil), values...)
	s.touchLocked()
}

// CommitDraft replaces the whole draft of step.
func (s *Store) CommitDraft(step domain.Step, d domain.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Drafts == nil {
		s.state.Drafts = make(map[domain.Step]domain.Draft)
	}
	s.state.Drafts[step] = d.Clone()
	s.touchLocked()
}

// Reset discards the case and its persisted copy, leaving an empty wizard on step 1.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = domain.NewWizardState()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.persister.Delete(ctx, s.key); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.log.Warn("delete persisted state", zap.Error(err))
	}
	s.savedGen = gen
	s.log.Info("wizard reset")
}

// AssembleCaseRecord freezes the case for document generation. It fails with
// ErrIncomplete until every step before the review is complete.
func (s *Store) AssembleCaseRecord() (domain.CaseRecord, error) {
	s.mu.Lock()
	st := s.state.Clone()
	s.mu.Unlock()

	var missing []domain.Step
	for _, step := range domain.RequiredForRecord {
		if !st.IsComplete(step) {
			missing = append(missing, step)
		}
	}
	if len(missing) > 0 || st.Personal == nil || st.Property == nil || st.Economic == nil || st.Contributions == nil || st.Prior == nil {
		return domain.CaseRecord{}, fmt.Errorf("%w: missing steps %v", ErrIncomplete, missing)
	}

	now := s.now()
	today := calc.DateOf(now)
	refreshDerived(&st, today)
	if _, ok := s.ref.ThresholdsFor(today); !ok {
		s.log.Warn("statutory thresholds are outside their validity window", zap.Time("as_of", today))
	}
	return domain.CaseRecord{
		Personal:      *st.Personal,
		Property:      *st.Property,
		Economic:      *st.Economic,
		Contributions: *st.Contributions,
		Prior:         *st.Prior,
		Validations:   computeValidations(st, s.ref, today),
		Court:         s.ref.CourtForRegion(st.Property.Location.Region),
		AsOf:          today,
		GeneratedAt:   now,
	}, nil
}

// touchLocked marks the state dirty and (re)arms the debounce timer.
func (s *Store) touchLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.closed {
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.save(ctx)
	})
}

// ── Derived figures ───────────────────────────────────────────────────────────

func refreshDerived(st *domain.WizardState, today time.Time) {
	if st.Personal != nil {
		st.Personal.Age = calc.Age(st.Personal.BirthDate, today)
	}
	var annualIncome int64
	if st.Economic != nil {
		st.Economic.AnnualIncome = calc.AnnualFromMonthly(st.Economic.MonthlyIncome)
		annualIncome = st.Economic.AnnualIncome
	}
	if st.Contributions != nil {
		st.Contributions.AnnualAmount = calc.AnnualFromQuarterly(st.Contributions.QuarterlyAmount)
		st.Contributions.IncomePercentage = calc.IncomePercentage(st.Contributions.AnnualAmount, annualIncome)
	}
}

func computeValidations(st domain.WizardState, ref *reference.Data, today time.Time) domain.CaseValidations {
	refreshDerived(&st, today)
	t, _ := ref.ThresholdsFor(today)
	v := domain.CaseValidations{
		EligibilityTier:    domain.TierNone,
		WithinFilingWindow: true,
		DaysSinceDenial:    -1,
	}
	if st.Personal != nil {
		v.MeetsAge = st.Personal.Age >= t.MinimumAge
	}
	if st.Property != nil {
		v.IsResidentialUse = st.Property.Residential
		v.ExceedsAppraisalCap = calc.ExceedsCap(st.Property.Appraisal, t.AppraisalCap)
	}
	if st.Economic != nil {
		v.EligibilityTier = reference.BenefitTierForAnnualIncome(st.Economic.AnnualIncome, t)
		v.MeetsFullBenefitIncome = v.EligibilityTier == domain.TierFull
		v.MeetsPartialBenefitIncome = v.EligibilityTier != domain.TierNone
	}
	if st.Economic != nil && st.Contributions != nil {
		pct := st.Contributions.IncomePercentage
		v.BurdenDisproportionate = pct > t.DisproportionatePercent.InexactFloat64()
		v.BurdenStronglyFavorable = pct > t.StronglyFavorablePercent.InexactFloat64()
	}
	// Without a denial the grievance is ongoing billing, which keeps the
	// filing window open.
	if p := st.Prior; p != nil && p.ReceivedDenial && p.DenialDate != nil {
		v.DaysSinceDenial = calc.DaysSince(*p.DenialDate, today)
		v.WithinFilingWindow = calc.WithinDays(*p.DenialDate, today, t.FilingWindowDays)
	}
	return v
}
