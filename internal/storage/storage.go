package storage

import (
	"context"
	"errors"

	"daily-planner/internal/plan"
	"daily-planner/internal/user"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("a user with this name already exists")
)

// Storage defines the interface for data persistence
// for users and their daily plans.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByName(ctx context.Context, name string) (*user.User, error)
	// DeleteUser removes the user and every plan they own.
	DeleteUser(ctx context.Context, id string) error

	// Plan operations
	GetPlan(ctx context.Context, userID, date string) (*plan.Plan, error)
	// UpsertPlan replaces the whole plan stored for (p.UserID, p.Date),
	// creating it on first save.
	UpsertPlan(ctx context.Context, p *plan.Plan) error
	DeletePlan(ctx context.Context, userID, date string) error
	ListPlans(ctx context.Context, userID string) ([]*plan.Plan, error)
	// MarkReminderNotified sets notified on a single reminder of a stored
	// plan without rewriting the rest of the document.
	MarkReminderNotified(ctx context.Context, userID, date string, reminderID int) error

	Close() error
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
