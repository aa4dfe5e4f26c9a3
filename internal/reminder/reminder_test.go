package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"daily-planner/internal/marker"
	"daily-planner/internal/plan"
	"daily-planner/internal/storage"
)

const userID = "user-1"

type fakePlans struct {
	*storage.MemoryStorage

	mu         sync.Mutex
	fetched    []string
	failDates  map[string]bool
	failWrites bool
}

func newFakePlans() *fakePlans {
	return &fakePlans{MemoryStorage: storage.NewMemoryStorage(), failDates: map[string]bool{}}
}

func (f *fakePlans) GetPlan(ctx context.Context, userID, date string) (*plan.Plan, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, date)
	fail := f.failDates[date]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.MemoryStorage.GetPlan(ctx, userID, date)
}

func (f *fakePlans) UpsertPlan(ctx context.Context, p *plan.Plan) error {
	if f.failWrites {
		return errors.New("connection refused")
	}
	return f.MemoryStorage.UpsertPlan(ctx, p)
}

func (f *fakePlans) MarkReminderNotified(ctx context.Context, userID, date string, id int) error {
	if f.failWrites {
		return errors.New("connection refused")
	}
	return f.MemoryStorage.MarkReminderNotified(ctx, userID, date, id)
}

func (f *fakePlans) put(t *testing.T, date string, reminders ...plan.Reminder) {
	t.Helper()
	p := plan.NewPlan("", userID, date)
	p.Todos = []plan.TodoItem{{ID: 1, Text: "keep me"}}
	p.Reminders = reminders
	require.NoError(t, f.MemoryStorage.UpsertPlan(context.Background(), p))
}

func (f *fakePlans) stored(t *testing.T, date string) *plan.Plan {
	t.Helper()
	p, err := f.MemoryStorage.GetPlan(context.Background(), userID, date)
	require.NoError(t, err)
	return p
}

type call struct {
	kind, tag, text string
}

type fakePresenter struct {
	mu        sync.Mutex
	calls     []call
	failSound bool
}

func (p *fakePresenter) record(c call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
}

func (p *fakePresenter) PlayAlertSound(_ context.Context, _ string) error {
	p.record(call{kind: "sound"})
	if p.failSound {
		return errors.New("autoplay blocked")
	}
	return nil
}

func (p *fakePresenter) ShowBlockingAlert(_ context.Context, _ string, text string) error {
	p.record(call{kind: "alert", text: text})
	return nil
}

func (p *fakePresenter) ShowSystemNotification(_ context.Context, _ string, tag, body string) error {
	p.record(call{kind: "system", tag: tag, text: body})
	return nil
}

func (p *fakePresenter) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		out = append(out, c.kind)
	}
	return out
}

type fixture struct {
	plans     *fakePlans
	presenter *fakePresenter
	markers   *marker.Memory
	session   *Session
	loop      *Loop
}

func newFixture(t *testing.T, logger *zap.SugaredLogger) *fixture {
	plans := newFakePlans()
	presenter := &fakePresenter{}
	markers := marker.NewMemory()

	scanner := NewScanner(plans, logger)
	scanner.Location = time.UTC
	dispatcher := NewDispatcher(presenter, plans, logger)
	dispatcher.AlertDelay = 0

	return &fixture{
		plans:     plans,
		presenter: presenter,
		markers:   markers,
		session:   NewSession(userID, "Alice", markers, PermissionDefault),
		loop:      NewLoop(scanner, dispatcher, DefaultInterval, logger),
	}
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func (f *fixture) tickAt(now time.Time) int {
	f.loop.Now = func() time.Time { return now }
	return f.loop.Tick(context.Background(), f.session)
}

func TestScannerWindowBoundary(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	now := at("2024-06-01T09:00:00")
	f.plans.put(t, "2024-05-25", plan.NewReminder(1, "7 days back", "2024-05-25", "09:00"))
	f.plans.put(t, "2024-05-24", plan.NewReminder(2, "8 days back", "2024-05-24", "09:00"))
	f.plans.put(t, "2024-07-01", plan.NewReminder(3, "30 days ahead", "2024-07-01", "09:00"))
	f.plans.put(t, "2024-07-02", plan.NewReminder(4, "31 days ahead", "2024-07-02", "09:00"))

	candidates := f.loop.Scanner.Candidates(context.Background(), userID, now)

	var ids []int
	for _, c := range candidates {
		ids = append(ids, c.Reminder.ID)
	}
	sort.Ints(ids)
	assert.Equal(t, []int{1, 3}, ids)

	f.plans.mu.Lock()
	defer f.plans.mu.Unlock()
	assert.Len(t, f.plans.fetched, 38)
	assert.Contains(t, f.plans.fetched, "2024-05-25")
	assert.Contains(t, f.plans.fetched, "2024-07-01")
	assert.NotContains(t, f.plans.fetched, "2024-05-24")
	assert.NotContains(t, f.plans.fetched, "2024-07-02")
}

func TestScheduledRejectsNotifiedAndIncompleteReminders(t *testing.T) {
	s := NewScanner(nil, zap.NewNop().Sugar())
	s.Location = time.UTC
	s.CatchUpMissed = true
	now := at("2024-06-01T09:00:30")

	base := plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00")
	require.True(t, s.Scheduled(base, now))

	notified := base
	notified.Notified = true
	noText := base
	noText.Text = "  "
	noDate := base
	noDate.ReminderDate = ""
	noTime := base
	noTime.ReminderTime = ""

	for offset := -48 * time.Hour; offset <= 48*time.Hour; offset += 30 * time.Minute {
		for name, r := range map[string]plan.Reminder{
			"notified": notified, "no text": noText, "no date": noDate, "no time": noTime,
		} {
			assert.False(t, s.Scheduled(r, now.Add(offset)), "%s at %s", name, now.Add(offset))
		}
	}
}

func TestScheduledMinuteGranularity(t *testing.T) {
	s := NewScanner(nil, zap.NewNop().Sugar())
	s.Location = time.UTC
	r := plan.NewReminder(1, "Tea", "2024-06-01", "14:05")

	assert.False(t, s.Scheduled(r, at("2024-06-01T14:04:59")))
	assert.True(t, s.Scheduled(r, at("2024-06-01T14:05:00")))
	assert.True(t, s.Scheduled(r, at("2024-06-01T14:05:59")))
	assert.False(t, s.Scheduled(r, at("2024-06-01T14:06:00")), "missed minutes are skipped by default")
	assert.False(t, s.Scheduled(r, at("2024-06-02T14:05:00")))
}

func TestScheduledCatchUpMissed(t *testing.T) {
	s := NewScanner(nil, zap.NewNop().Sugar())
	s.Location = time.UTC
	s.CatchUpMissed = true

	past := plan.NewReminder(1, "Tea", "2024-05-31", "08:30")
	future := plan.NewReminder(2, "Lunch", "2024-06-01", "12:00")
	now := at("2024-06-01T09:00:00")

	assert.True(t, s.Scheduled(past, now))
	assert.False(t, s.Scheduled(future, now))
}

func TestScheduledUsesScannerLocation(t *testing.T) {
	s := NewScanner(nil, zap.NewNop().Sugar())
	s.Location = time.FixedZone("UTC+2", 2*60*60)
	r := plan.NewReminder(1, "Tea", "2024-06-01", "01:30")

	// 23:30 UTC on May 31 is 01:30 on June 1 two hours east.
	assert.True(t, s.Scheduled(r, at("2024-05-31T23:30:00")))
}

func TestStandUpScenario(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))

	delivered := f.tickAt(at("2024-06-01T09:00:05"))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"sound", "alert"}, f.presenter.kinds())
	stored := f.plans.stored(t, "2024-06-01")
	assert.True(t, stored.Reminders[0].Notified)
	assert.Equal(t, "keep me", stored.Todos[0].Text)

	ok, err := f.markers.Has(context.Background(), "notified_2024-06-01_09:00_5")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 0, f.tickAt(at("2024-06-01T09:00:15")))
	assert.Len(t, f.presenter.kinds(), 2)
}

func TestMarkerBlocksRefireWhenWriteBackFails(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))
	f.plans.failWrites = true

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:05")))
	assert.False(t, f.plans.stored(t, "2024-06-01").Reminders[0].Notified)

	assert.Equal(t, 0, f.tickAt(at("2024-06-01T09:00:15")))
	assert.Equal(t, 0, f.tickAt(at("2024-06-01T09:00:25")))
	assert.Equal(t, []string{"sound", "alert"}, f.presenter.kinds())
}

func TestFetchFailureIsTreatedAsEmpty(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.plans.put(t, "2024-05-31", plan.NewReminder(1, "From yesterday", "2024-06-01", "09:00"))
	f.plans.put(t, "2024-06-01", plan.NewReminder(2, "From today", "2024-06-01", "09:00"))
	f.plans.failDates["2024-05-31"] = true

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))
	assert.True(t, f.plans.stored(t, "2024-06-01").Reminders[0].Notified)

	// The next tick retries the failed date naturally.
	f.plans.failDates["2024-05-31"] = false
	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:10")))
	assert.True(t, f.plans.stored(t, "2024-05-31").Reminders[0].Notified)
}

func TestWriteBackTargetsSourcePlan(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	// Created on last week's planner, scheduled for today.
	f.plans.put(t, "2024-05-27", plan.NewReminder(3, "Dentist", "2024-06-01", "09:00"))

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))
	assert.True(t, f.plans.stored(t, "2024-05-27").Reminders[0].Notified)
	_, err := f.plans.MemoryStorage.GetPlan(context.Background(), userID, "2024-06-01")
	assert.True(t, storage.IsNotFound(err), "write-back must not create today's plan")
}

func TestReplaceWriteBackKeepsEarlierFlags(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.loop.Dispatcher.Mode = WriteBackReplace
	f.plans.put(t, "2024-06-01",
		plan.NewReminder(1, "Stand-up", "2024-06-01", "09:00"),
		plan.NewReminder(2, "Coffee", "2024-06-01", "09:00"),
		plan.NewReminder(3, "Later", "2024-06-01", "17:00"),
	)

	assert.Equal(t, 2, f.tickAt(at("2024-06-01T09:00:00")))

	stored := f.plans.stored(t, "2024-06-01")
	assert.True(t, stored.Reminders[0].Notified)
	assert.True(t, stored.Reminders[1].Notified)
	assert.False(t, stored.Reminders[2].Notified)
	assert.Equal(t, "keep me", stored.Todos[0].Text)
}

func TestSystemNotificationRequiresPermission(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.session.SetPermission(PermissionGranted)
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))

	f.presenter.mu.Lock()
	defer f.presenter.mu.Unlock()
	require.Len(t, f.presenter.calls, 3)
	assert.Equal(t, call{kind: "system", tag: "reminder-5", text: "Stand-up"}, f.presenter.calls[2])
	assert.Contains(t, f.presenter.calls[1].text, "Stand-up")
	assert.Contains(t, f.presenter.calls[1].text, "Scheduled for: 09:00")
}

func TestSoundFailureDoesNotBlockDelivery(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.presenter.failSound = true
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))
	assert.Equal(t, 1, f.markers.Len())
	assert.True(t, f.plans.stored(t, "2024-06-01").Reminders[0].Notified)
}

func TestDuplicateKeysFireOncePerTick(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	// Same id, date and time on two plans share one marker key.
	f.plans.put(t, "2024-05-31", plan.NewReminder(1, "Pills", "2024-06-01", "09:00"))
	f.plans.put(t, "2024-06-01", plan.NewReminder(1, "Pills", "2024-06-01", "09:00"))

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))
}

func TestAlertDelay(t *testing.T) {
	f := newFixture(t, zap.NewNop().Sugar())
	f.loop.Dispatcher.AlertDelay = 20 * time.Millisecond
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))

	assert.Equal(t, 1, f.tickAt(at("2024-06-01T09:00:00")))
	assert.Equal(t, []string{"sound"}, f.presenter.kinds())
	assert.Eventually(t, func() bool {
		return len(f.presenter.kinds()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestLoopTicksImmediatelyOnStart(t *testing.T) {
	f := newFixture(t, zap.NewNop().Sugar())
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))
	f.loop.Interval = time.Hour
	f.loop.Now = func() time.Time { return at("2024-06-01T09:00:00") }

	f.loop.Start(f.session)
	defer f.loop.Stop()

	assert.Eventually(t, func() bool {
		return len(f.presenter.kinds()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.True(t, f.loop.Active())
}

func TestLoopTicksOnInterval(t *testing.T) {
	f := newFixture(t, zap.NewNop().Sugar())
	f.loop.Interval = 10 * time.Millisecond

	var mu sync.Mutex
	ticks := 0
	f.loop.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return at("2024-06-01T09:00:00")
	}

	f.loop.Start(f.session)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, time.Second, 5*time.Millisecond)

	f.loop.Stop()
	<-f.loop.Done()
	assert.False(t, f.loop.Active())
}

func TestLoopRestartCancelsPreviousTimer(t *testing.T) {
	f := newFixture(t, zap.NewNop().Sugar())
	f.loop.Interval = time.Hour

	f.loop.Start(f.session)
	first := f.loop.Done()

	f.loop.Start(NewSession(userID, "Alice", marker.NewMemory(), PermissionDefault))
	second := f.loop.Done()

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("previous loop goroutine did not exit after restart")
	}
	assert.True(t, f.loop.Active())

	f.loop.Stop()
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("loop goroutine did not exit after Stop")
	}
	assert.False(t, f.loop.Active())

	// Stopping twice is harmless.
	f.loop.Stop()
}

func TestTickAfterCancelDeliversNothing(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t).Sugar())
	f.plans.put(t, "2024-06-01", plan.NewReminder(5, "Stand-up", "2024-06-01", "09:00"))
	f.loop.Now = func() time.Time { return at("2024-06-01T09:00:00") }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, f.loop.Tick(ctx, f.session))
	assert.Empty(t, f.presenter.kinds())
}
