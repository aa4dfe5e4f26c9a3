package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"daily-planner/internal/plan"
	"daily-planner/internal/user"
)

type MemoryStorage struct {
	users map[string]*user.User
	plans map[planKey]*plan.Plan
	mu    sync.Mutex
}

type planKey struct {
	userID string
	date   string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*user.User),
		plans: make(map[planKey]*plan.Plan),
	}
}

// User operations
func (m *MemoryStorage) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Name == u.Name {
			return ErrUserExists
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *MemoryStorage) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (m *MemoryStorage) GetUserByName(_ context.Context, name string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Name == name {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
}

func (m *MemoryStorage) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	for k := range m.plans {
		if k.userID == id {
			delete(m.plans, k)
		}
	}
	delete(m.users, id)
	return nil
}

// Plan operations
func (m *MemoryStorage) GetPlan(_ context.Context, userID, date string) (*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planKey{userID, date}]
	if !ok {
		return nil, fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *MemoryStorage) UpsertPlan(_ context.Context, p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := planKey{p.UserID, p.Date}
	m.plans[k] = prepareUpsert(p, m.plans[k])
	return nil
}

func (m *MemoryStorage) DeletePlan(_ context.Context, userID, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := planKey{userID, date}
	if _, ok := m.plans[k]; !ok {
		return fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	delete(m.plans, k)
	return nil
}

func (m *MemoryStorage) ListPlans(_ context.Context, userID string) ([]*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*plan.Plan
	for k, p := range m.plans {
		if k.userID == userID {
			list = append(list, p.Clone())
		}
	}
	sortPlans(list)
	return list, nil
}

func (m *MemoryStorage) MarkReminderNotified(_ context.Context, userID, date string, reminderID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planKey{userID, date}]
	if !ok || !p.MarkNotified(reminderID) {
		return fmt.Errorf("reminder %d on %s: %w", reminderID, date, ErrNotFound)
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func sortPlans(list []*plan.Plan) {
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
}
