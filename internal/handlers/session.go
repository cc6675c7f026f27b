package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/ports"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/wizard"
)

const (
	// cookieMaxAge matches how long an untouched snapshot is kept by default.
	cookieMaxAge   = 90 * 24 * time.Hour
	hydrateTimeout = 5 * time.Second
)

// Sessions maps browser sessions to their wizard stores. Each session is one
// "device": its snapshot lives under its own storage key.
type Sessions struct {
	persister ports.StatePersister
	ref       *reference.Data
	cookie    string
	opts      []wizard.Option
	log       *zap.Logger

	mu     sync.Mutex
	stores map[string]*entry
}

type entry struct {
	store    *wizard.Store
	lastSeen time.Time
}

func NewSessions(p ports.StatePersister, ref *reference.Data, cookie string, log *zap.Logger, opts ...wizard.Option) *Sessions {
	if cookie == "" {
		cookie = "mirecurso_sesion"
	}
	return &Sessions{
		persister: p,
		ref:       ref,
		cookie:    cookie,
		opts:      opts,
		log:       log,
		stores:    make(map[string]*entry),
	}
}

func (s *Sessions) Reference() *reference.Data { return s.ref }

// Persister is the backing store shared by every session.
func (s *Sessions) Persister() ports.StatePersister { return s.persister }

// Store returns the caller's wizard store, starting a session (and setting
// its cookie) when the request carries none.
func (s *Sessions) Store(w http.ResponseWriter, r *http.Request) *wizard.Store {
	id := ""
	if c, err := r.Cookie(s.cookie); err == nil {
		if u, err := uuid.Parse(c.Value); err == nil {
			id = u.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     s.cookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(cookieMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		s.log.Debug("session started", zap.String("session", id))
	}
	return s.get(r.Context(), id)
}

func (s *Sessions) get(ctx context.Context, id string) *wizard.Store {
	s.mu.Lock()
	if e, ok := s.stores[id]; ok {
		e.lastSeen = time.Now()
		s.mu.Unlock()
		return e.store
	}
	s.mu.Unlock()

	opts := append([]wizard.Option{
		wizard.WithKey(wizard.SessionKey(id)),
		wizard.WithLegacyKeys(wizard.LegacyStorageKey + ":" + id),
		wizard.WithLogger(s.log.With(zap.String("session", id))),
	}, s.opts...)
	st := wizard.New(s.persister, s.ref, opts...)

	// The load outlives a cancelled request so it is not mistaken for an empty case.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()
	if err := st.Hydrate(hctx); err != nil {
		// Not cached: the next request retries, and st never saves.
		s.log.Warn("session state unavailable", zap.String("session", id), zap.Error(err))
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.stores[id]; ok {
		e.lastSeen = time.Now()
		return e.store
	}
	s.stores[id] = &entry{store: st, lastSeen: time.Now()}
	return st
}

// Sweep flushes and forgets stores idle for longer than idle. Their state
// stays persisted and is hydrated again on the next request.
func (s *Sessions) Sweep(ctx context.Context, idle time.Duration) int {
	s.mu.Lock()
	var stale []*wizard.Store
	for id, e := range s.stores {
		if time.Since(e.lastSeen) > idle {
			stale = append(stale, e.store)
			delete(s.stores, id)
		}
	}
	s.mu.Unlock()
	for _, st := range stale {
		_ = st.Close(ctx)
	}
	return len(stale)
}

// Close flushes every open store.
func (s *Sessions) Close(ctx context.Context) {
	s.mu.Lock()
	stores := make([]*wizard.Store, 0, len(s.stores))
	for _, e := range s.stores {
		stores = append(stores, e.store)
	}
	s.stores = make(map[string]*entry)
	s.mu.Unlock()
	for _, st := range stores {
		_ = st.Close(ctx)
	}
}

// Len reports how many stores are open.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}
