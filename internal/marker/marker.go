// Package marker records which reminders have already been delivered by a
// running instance, so a reminder is not alerted twice while its durable
// notified flag is still being written.
package marker

import (
	"context"
	"sync"
)

// Store is a set of delivery marker keys.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string) error
}

type Memory struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]struct{})}
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *Memory) Set(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

type scoped struct {
	store  Store
	prefix string
}

// Scoped namespaces keys under owner so several sessions can share one store.
func Scoped(store Store, owner string) Store {
	return &scoped{store: store, prefix: owner + ":"}
}

func (s *scoped) Has(ctx context.Context, key string) (bool, error) {
	return s.store.Has(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string) error {
	return s.store.Set(ctx, s.prefix+key)
}
