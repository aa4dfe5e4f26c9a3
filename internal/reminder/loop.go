package reminder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"daily-planner/internal/metrics"
)

const DefaultInterval = 10 * time.Second

// Loop runs the Scanner and Dispatcher for one session on a fixed interval.
// Ticks run on a single goroutine, so they never overlap.
type Loop struct {
	Scanner    *Scanner
	Dispatcher *Dispatcher
	Interval   time.Duration
	Now        func() time.Time
	Logger     *zap.SugaredLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	session *Session
}

func NewLoop(scanner *Scanner, dispatcher *Dispatcher, interval time.Duration, logger *zap.SugaredLogger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		Scanner:    scanner,
		Dispatcher: dispatcher,
		Interval:   interval,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Start cancels any running timer and begins scanning for sess: once
// immediately, then every Interval.
func (l *Loop) Start(sess *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.session = sess
	metrics.ActiveLoops.Inc()

	l.Logger.Infow("Reminder loop started", "user", sess.UserID, "interval", l.Interval)
	go l.run(ctx, sess, done)
}

// Stop cancels future ticks. It returns without waiting for a tick that is
// already running.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	metrics.ActiveLoops.Dec()
	l.Logger.Infow("Reminder loop stopped", "user", l.session.UserID)
	l.session = nil
}

func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Done is closed when the goroutine of the most recent Start exits.
// It is nil if the loop was never started.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Loop) run(ctx context.Context, sess *Session, done chan struct{}) {
	defer close(done)

	l.Tick(ctx, sess)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			l.Tick(ctx, sess)
		}
	}
}

// Tick performs one scan and dispatches what is due. It returns the number
// of reminders delivered. A tick whose context is cancelled while plans are
// being fetched delivers nothing.
func (l *Loop) Tick(ctx context.Context, sess *Session) int {
	now := l.Now()
	metrics.ScanTicks.Inc()

	due := l.Scanner.Scan(ctx, sess, now)
	if ctx.Err() != nil {
		return 0
	}
	n := l.Dispatcher.Dispatch(context.WithoutCancel(ctx), sess, due)
	if n > 0 {
		l.Logger.Infow("Reminders delivered", "user", sess.UserID, "count", n)
	}
	return n
}
