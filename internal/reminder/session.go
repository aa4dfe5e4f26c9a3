package reminder

import (
	"sync"

	"daily-planner/internal/marker"
)

// Permission mirrors the platform notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Session is the authenticated user a scheduling loop runs for.
type Session struct {
	UserID string
	Name   string
	// Markers is owned by the session's Dispatcher.
	Markers marker.Store

	mu         sync.RWMutex
	permission Permission
}

func NewSession(userID, name string, markers marker.Store, permission Permission) *Session {
	if permission == "" {
		permission = PermissionDefault
	}
	return &Session{
		UserID:     userID,
		Name:       name,
		Markers:    markers,
		permission: permission,
	}
}

func (s *Session) Permission() Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permission
}

func (s *Session) SetPermission(p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
}
