// Package memory is a process-local StatePersister used by the CLI and tests.
package memory

import (
	"context"
	"sync"

	"github.com/csg33k/mirecurso/internal/ports"
)

type Persister struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Persister {
	return &Persister{data: make(map[string][]byte)}
}

func (p *Persister) Load(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.data[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (p *Persister) Save(_ context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = append([]byte(nil), payload...)
	return nil
}

func (p *Persister) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

// Keys lists stored keys in no particular order.
func (p *Persister) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.data))
	for k := range p.data {
		keys = append(keys, k)
	}
	return keys
}
