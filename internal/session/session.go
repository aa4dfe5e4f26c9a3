// Package session tracks signed-in users and runs one reminder loop per
// user while at least one of their sessions is open.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"daily-planner/internal/marker"
	"daily-planner/internal/reminder"
	"daily-planner/internal/storage"
	"daily-planner/internal/user"
)

// DefaultTTL matches the session cookie lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// PermissionSource answers the notification permission of a user.
type PermissionSource interface {
	Permission(userID string) reminder.Permission
}

// Options configures the loops the Manager starts.
type Options struct {
	Interval         time.Duration
	Window           reminder.Window
	Location         *time.Location
	CatchUpMissed    bool
	FetchTimeout     time.Duration
	FetchConcurrency int
	AlertDelay       time.Duration
	WriteBack        reminder.WriteBackMode
}

func DefaultOptions() Options {
	return Options{
		Interval:   reminder.DefaultInterval,
		Window:     reminder.DefaultWindow,
		Location:   time.Local,
		AlertDelay: reminder.DefaultAlertDelay,
		WriteBack:  reminder.WriteBackPatch,
	}
}

// Info describes an open session.
type Info struct {
	Token     string
	UserID    string
	Name      string
	ExpiresAt time.Time
}

type userLoop struct {
	loop    *reminder.Loop
	session *reminder.Session
	tokens  map[string]struct{}
}

type Manager struct {
	Plans       storage.Storage
	Markers     marker.Store
	Presenter   reminder.Presenter
	Permissions PermissionSource
	Options     Options
	TTL         time.Duration
	Now         func() time.Time
	Logger      *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]Info
	users    map[string]*userLoop
}

func NewManager(plans storage.Storage, markers marker.Store, presenter reminder.Presenter, permissions PermissionSource, opts Options, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		Plans:       plans,
		Markers:     markers,
		Presenter:   presenter,
		Permissions: permissions,
		Options:     opts,
		TTL:         DefaultTTL,
		Now:         time.Now,
		Logger:      logger,
		sessions:    make(map[string]Info),
		users:       make(map[string]*userLoop),
	}
}

func (m *Manager) newLoop() *reminder.Loop {
	scanner := reminder.NewScanner(m.Plans, m.Logger)
	scanner.Window = m.Options.Window
	scanner.Location = m.Options.Location
	scanner.CatchUpMissed = m.Options.CatchUpMissed
	scanner.FetchTimeout = m.Options.FetchTimeout
	scanner.FetchConcurrency = m.Options.FetchConcurrency

	dispatcher := reminder.NewDispatcher(m.Presenter, m.Plans, m.Logger)
	dispatcher.AlertDelay = m.Options.AlertDelay
	if m.Options.WriteBack != "" {
		dispatcher.Mode = m.Options.WriteBack
	}

	return reminder.NewLoop(scanner, dispatcher, m.Options.Interval, m.Logger)
}

func (m *Manager) permission(userID string) reminder.Permission {
	if m.Permissions == nil {
		return reminder.PermissionDefault
	}
	return m.Permissions.Permission(userID)
}

// Start opens a session for u and (re)starts the user's reminder loop.
// The notification permission is read once here.
func (m *Manager) Start(u *user.User) Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Name:      u.Name,
		ExpiresAt: m.Now().Add(m.TTL),
	}
	m.sessions[info.Token] = info

	ul, ok := m.users[u.ID]
	if !ok {
		ul = &userLoop{loop: m.newLoop(), tokens: make(map[string]struct{})}
		m.users[u.ID] = ul
	}
	ul.tokens[info.Token] = struct{}{}
	ul.session = reminder.NewSession(u.ID, u.Name, marker.Scoped(m.Markers, u.ID), m.permission(u.ID))
	ul.loop.Start(ul.session)

	m.Logger.Infow("Session started", "user", u.ID, "sessions", len(ul.tokens))
	return info
}

// Get returns the session for token. Expired sessions are ended.
func (m *Manager) Get(token string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[token]
	if !ok {
		return Info{}, false
	}
	if !m.Now().Before(info.ExpiresAt) {
		m.endLocked(token)
		return Info{}, false
	}
	return info, true
}

// End closes one session. The user's loop is stopped before the session is
// forgotten once no other session of that user remains.
func (m *Manager) End(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked(token)
}

func (m *Manager) endLocked(token string) {
	info, ok := m.sessions[token]
	if !ok {
		return
	}
	if ul, ok := m.users[info.UserID]; ok {
		delete(ul.tokens, token)
		if len(ul.tokens) == 0 {
			ul.loop.Stop()
			delete(m.users, info.UserID)
		}
	}
	delete(m.sessions, token)
	m.Logger.Infow("Session ended", "user", info.UserID)
}

// EndUser closes every session of the user.
func (m *Manager) EndUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ul, ok := m.users[userID]
	if !ok {
		return
	}
	ul.loop.Stop()
	delete(m.users, userID)
	for token := range ul.tokens {
		delete(m.sessions, token)
	}
	m.Logger.Infow("All sessions ended", "user", userID)
}

// SetPermission updates the permission seen by the user's running loop.
func (m *Manager) SetPermission(userID string, p reminder.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ul, ok := m.users[userID]; ok {
		ul.session.SetPermission(p)
	}
}

// Active reports whether a reminder loop is running for the user.
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ul, ok := m.users[userID]
	return ok && ul.loop.Active()
}

// Close stops every loop and waits for their goroutines to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	var done []<-chan struct{}
	for userID, ul := range m.users {
		ul.loop.Stop()
		done = append(done, ul.loop.Done())
		delete(m.users, userID)
	}
	clear(m.sessions)
	m.mu.Unlock()

	for _, d := range done {
		<-d
	}
}
