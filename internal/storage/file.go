package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"daily-planner/internal/plan"
	"daily-planner/internal/user"
)

// FileStorage keeps users and plans in two JSON files, rewritten on every
// change. Plans are keyed by "userID|date".
type FileStorage struct {
	userFile string
	planFile string
	mu       sync.Mutex
}

func NewFileStorage(userFile, planFile string) *FileStorage {
	return &FileStorage{
		userFile: userFile,
		planFile: planFile,
	}
}

func planFileKey(userID, date string) string {
	return userID + "|" + date
}

// Helper functions for file IO
func loadJSON[T any](path string) (map[string]T, error) {
	items := make(map[string]T)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}

func saveJSON[T any](path string, items map[string]T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// User operations
func (fs *FileStorage) CreateUser(_ context.Context, u *user.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSON[*user.User](fs.userFile)
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Name == u.Name {
			return ErrUserExists
		}
	}
	users[u.ID] = u
	return saveJSON(fs.userFile, users)
}

func (fs *FileStorage) GetUser(_ context.Context, id string) (*user.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSON[*user.User](fs.userFile)
	if err != nil {
		return nil, err
	}
	u, ok := users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (fs *FileStorage) GetUserByName(_ context.Context, name string) (*user.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSON[*user.User](fs.userFile)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
}

func (fs *FileStorage) DeleteUser(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSON[*user.User](fs.userFile)
	if err != nil {
		return err
	}
	if _, ok := users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return err
	}
	for k, p := range plans {
		if p.UserID == id {
			delete(plans, k)
		}
	}
	if err := saveJSON(fs.planFile, plans); err != nil {
		return err
	}
	delete(users, id)
	return saveJSON(fs.userFile, users)
}

// Plan operations
func (fs *FileStorage) GetPlan(_ context.Context, userID, date string) (*plan.Plan, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return nil, err
	}
	p, ok := plans[planFileKey(userID, date)]
	if !ok {
		return nil, fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	p.Normalize()
	return p, nil
}

func (fs *FileStorage) UpsertPlan(_ context.Context, p *plan.Plan) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return err
	}
	k := planFileKey(p.UserID, p.Date)
	plans[k] = prepareUpsert(p, plans[k])
	return saveJSON(fs.planFile, plans)
}

func (fs *FileStorage) DeletePlan(_ context.Context, userID, date string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return err
	}
	k := planFileKey(userID, date)
	if _, ok := plans[k]; !ok {
		return fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	delete(plans, k)
	return saveJSON(fs.planFile, plans)
}

func (fs *FileStorage) ListPlans(_ context.Context, userID string) ([]*plan.Plan, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return nil, err
	}
	var list []*plan.Plan
	for _, p := range plans {
		if p.UserID == userID {
			p.Normalize()
			list = append(list, p)
		}
	}
	sortPlans(list)
	return list, nil
}

func (fs *FileStorage) MarkReminderNotified(_ context.Context, userID, date string, reminderID int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	plans, err := loadJSON[*plan.Plan](fs.planFile)
	if err != nil {
		return err
	}
	p, ok := plans[planFileKey(userID, date)]
	if !ok || !p.MarkNotified(reminderID) {
		return fmt.Errorf("reminder %d on %s: %w", reminderID, date, ErrNotFound)
	}
	return saveJSON(fs.planFile, plans)
}

func (fs *FileStorage) Close() error {
	return nil
}
