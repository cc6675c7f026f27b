package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/ports"
)

const (
	StorageKey       = "mirecurso-formulario-v2"
	LegacyStorageKey = "mirecurso-formulario-v1"
)

// SessionKey scopes the storage key to one browser session.
func SessionKey(session string) string {
	if session == "" {
		return StorageKey
	}
	return StorageKey + ":" + session
}

type envelope struct {
	Version int                `json:"version"`
	SavedAt time.Time          `json:"saved_at"`
	State   domain.WizardState `json:"state"`
}

// Hydrate loads the persisted state once. Anything unreadable or written by
// another schema version is discarded and the wizard starts empty. A failed
// read is returned instead: the store stays unhydrated, never saves, and the
// next Hydrate retries.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for _, k := range s.legacy {
		s.purgeLegacy(ctx, k)
	}

	st, ok, err := s.load(ctx)
	if err != nil {
		s.log.Warn("load persisted state", zap.Error(err))
		return fmt.Errorf("hydrate %s: %w", s.key, err)
	}
	if !ok {
		st = domain.NewWizardState()
	}
	sanitize(&st)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}
	s.state = st
	s.hydrated = true
	s.log.Debug("wizard hydrated",
		zap.Bool("restored", ok),
		zap.Int("current_step", int(st.CurrentStep)),
		zap.Int("completed", len(st.CompletedSteps)))
	return nil
}

func (s *Store) purgeLegacy(ctx context.Context, key string) {
	if _, err := s.persister.Load(ctx, key); err != nil {
		return
	}
	if err := s.persister.Delete(ctx, key); err != nil {
		s.log.Warn("purge legacy state", zap.String("legacy_key", key), zap.Error(err))
		return
	}
	s.log.Info("purged legacy state", zap.String("legacy_key", key))
}

func (s *Store) load(ctx context.Context) (domain.WizardState, bool, error) {
	raw, err := s.persister.Load(ctx, s.key)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.WizardState{}, false, nil
	}
	if err != nil {
		return domain.WizardState{}, false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("discarding unreadable state", zap.Error(err))
		s.discard(ctx)
		return domain.WizardState{}, false, nil
	}
	if env.Version != domain.SchemaVersion || env.State.Version != domain.SchemaVersion {
		s.log.Info("discarding state from another schema version", zap.Int("version", env.Version))
		s.discard(ctx)
		return domain.WizardState{}, false, nil
	}
	return env.State, true, nil
}

func (s *Store) discard(ctx context.Context) {
	if err := s.persister.Delete(ctx, s.key); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.log.Warn("delete persisted state", zap.Error(err))
	}
}

// sanitize repairs a restored state so the accessibility rule holds: a step
// is complete only if its data is present, and only a contiguous prefix of
// steps can be complete.
func sanitize(st *domain.WizardState) {
	st.Version = domain.SchemaVersion
	hasData := map[domain.Step]bool{
		domain.StepIdentity:      st.Personal != nil,
		domain.StepProperty:      st.Property != nil,
		domain.StepEconomics:     st.Economic != nil,
		domain.StepContributions: st.Contributions != nil,
		domain.StepPrior:         st.Prior != nil,
		domain.StepReview:        st.Review != nil,
		domain.StepOutput:        st.Output != nil,
	}
	completed := []domain.Step{}
	for step := domain.StepIdentity; step <= domain.StepOutput; step++ {
		if !st.IsComplete(step) || !hasData[step] {
			break
		}
		completed = append(completed, step)
	}
	st.CompletedSteps = completed

	if !st.CurrentStep.Valid() {
		st.CurrentStep = domain.StepIdentity
	}
	if st.CurrentStep != domain.StepIdentity && !st.IsComplete(st.CurrentStep-1) {
		st.CurrentStep = domain.Step(len(completed) + 1)
		if st.CurrentStep > domain.StepOutput {
			st.CurrentStep = domain.StepOutput
		}
	}
	for step := range st.Drafts {
		if !step.Valid() {
			delete(st.Drafts, step)
		}
	}
}

// Flush writes pending changes now instead of waiting for the debounce.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.save(ctx)
}

// Close flushes and stops the debounce timer. The store stays readable, but
// later mutations no longer schedule saves.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush(ctx)
	return nil
}

// save persists the latest snapshot. Failures are logged and swallowed so
// the in-memory wizard keeps working; the next mutation retries.
func (s *Store) save(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	gen := s.gen
	if !s.hydrated || gen == s.savedGen {
		s.mu.Unlock()
		return
	}
	env := envelope{
		Version: domain.SchemaVersion,
		SavedAt: s.now().UTC(),
		State:   s.state.Clone(),
	}
	s.mu.Unlock()

	payload, err := json.Marshal(env)
	if err != nil {
		s.log.Error("encode state", zap.Error(err))
		return
	}
	if err := s.persister.Save(ctx, s.key, payload); err != nil {
		s.log.Warn("save state", zap.Error(err))
		return
	}
	s.savedGen = gen
	s.log.Debug("state saved", zap.Int("bytes", len(payload)))
}
