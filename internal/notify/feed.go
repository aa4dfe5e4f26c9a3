// Package notify presents reminder alerts to users: an in-process feed the
// browser polls for sounds and blocking alerts, and web push for system
// notifications.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindSound Kind = "sound"
	KindAlert Kind = "alert"
)

// DefaultFeedSize caps the alerts kept per user between polls.
const DefaultFeedSize = 100

type Alert struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text,omitempty"`
	At   time.Time `json:"at"`
}

// Feed queues alerts per user until the user's client drains them.
type Feed struct {
	Size int

	mu     sync.Mutex
	queues map[string][]Alert
}

func NewFeed() *Feed {
	return &Feed{Size: DefaultFeedSize, queues: make(map[string][]Alert)}
}

// Push appends a to the user's queue, dropping the oldest alert when full.
func (f *Feed) Push(userID string, a Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := append(f.queues[userID], a)
	if f.Size > 0 && len(q) > f.Size {
		q = q[len(q)-f.Size:]
	}
	f.queues[userID] = q
}

// Drain returns and removes every queued alert for the user, oldest first.
func (f *Feed) Drain(userID string) []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := f.queues[userID]
	delete(f.queues, userID)
	if q == nil {
		return []Alert{}
	}
	return q
}

// Clear drops the user's queue, used when the user signs out.
func (f *Feed) Clear(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queues, userID)
}
