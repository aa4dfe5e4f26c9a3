package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"daily-planner/internal/plan"
	"daily-planner/internal/user"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			gender TEXT NOT NULL,
			pin_hash TEXT NOT NULL,
			day_start_time TEXT NOT NULL,
			time_format TEXT NOT NULL,
			created_at TEXT NOT NULL -- ISO 8601 format
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL, -- YYYY-MM-DD
			todos TEXT NOT NULL, -- JSON array
			must_dos TEXT NOT NULL, -- JSON array
			reminders TEXT NOT NULL, -- JSON array
			updated_at TEXT NOT NULL,
			UNIQUE (user_id, date),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}
	return nil
}

// User operations
func (s *SQLiteStorage) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO users
		(id, name, gender, pin_hash, day_start_time, time_format, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Gender, u.PinHash, u.DayStartTime, u.TimeFormat,
		u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.name") {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, gender, pin_hash, day_start_time, time_format, created_at`

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Gender, &u.PinHash, &u.DayStartTime, &u.TimeFormat, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStorage) GetUserByName(ctx context.Context, name string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE name = ?", name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStorage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM plans WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// Plan operations
const planColumns = `id, user_id, date, todos, must_dos, reminders, updated_at`

func scanPlan(row rowScanner) (*plan.Plan, error) {
	var p plan.Plan
	var todosJSON, mustDosJSON, remindersJSON, updatedAt string

	if err := row.Scan(&p.ID, &p.UserID, &p.Date, &todosJSON, &mustDosJSON, &remindersJSON, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(todosJSON), &p.Todos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal todos: %w", err)
	}
	if err := json.Unmarshal([]byte(mustDosJSON), &p.MustDos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal must-dos: %w", err)
	}
	if err := json.Unmarshal([]byte(remindersJSON), &p.Reminders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reminders: %w", err)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	p.Normalize()
	return &p, nil
}

func (s *SQLiteStorage) getPlan(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, userID, date string) (*plan.Plan, error) {
	p, err := scanPlan(q.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE user_id = ? AND date = ?", userID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (s *SQLiteStorage) GetPlan(ctx context.Context, userID, date string) (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPlan(ctx, s.db, userID, date)
}

func (s *SQLiteStorage) UpsertPlan(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := prepareUpsert(p, nil)
	todosJSON, err := json.Marshal(c.Todos)
	if err != nil {
		return fmt.Errorf("failed to marshal todos: %w", err)
	}
	mustDosJSON, err := json.Marshal(c.MustDos)
	if err != nil {
		return fmt.Errorf("failed to marshal must-dos: %w", err)
	}
	remindersJSON, err := json.Marshal(c.Reminders)
	if err != nil {
		return fmt.Errorf("failed to marshal reminders: %w", err)
	}

	// The existing row keeps its id on conflict.
	_, err = s.db.ExecContext(ctx, `INSERT INTO plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			todos = excluded.todos,
			must_dos = excluded.must_dos,
			reminders = excluded.reminders,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.Date, string(todosJSON), string(mustDosJSON), string(remindersJSON),
		c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeletePlan(ctx context.Context, userID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE user_id = ? AND date = ?", userID, date)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) ListPlans(ctx context.Context, userID string) ([]*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+planColumns+" FROM plans WHERE user_id = ? ORDER BY date", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *SQLiteStorage) MarkReminderNotified(ctx context.Context, userID, date string, reminderID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := s.getPlan(ctx, tx, userID, date)
	if err != nil {
		return err
	}
	if !p.MarkNotified(reminderID) {
		return fmt.Errorf("reminder %d on %s: %w", reminderID, date, ErrNotFound)
	}
	remindersJSON, err := json.Marshal(p.Reminders)
	if err != nil {
		return fmt.Errorf("failed to marshal reminders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE plans SET reminders = ? WHERE id = ?", string(remindersJSON), p.ID); err != nil {
		return fmt.Errorf("failed to update reminders: %w", err)
	}
	return tx.Commit()
}
