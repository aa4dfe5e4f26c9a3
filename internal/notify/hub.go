package notify

import (
	"context"
	"time"
)

// Hub is the reminder engine's Presenter: sounds and blocking alerts go to
// the user's feed, system notifications go out over web push.
type Hub struct {
	Feed *Feed
	Push *WebPush
	Now  func() time.Time
}

func NewHub(feed *Feed, push *WebPush) *Hub {
	return &Hub{Feed: feed, Push: push, Now: time.Now}
}

func (h *Hub) PlayAlertSound(_ context.Context, userID string) error {
	h.Feed.Push(userID, Alert{Kind: KindSound, At: h.Now()})
	return nil
}

func (h *Hub) ShowBlockingAlert(_ context.Context, userID, text string) error {
	h.Feed.Push(userID, Alert{Kind: KindAlert, Text: text, At: h.Now()})
	return nil
}

func (h *Hub) ShowSystemNotification(ctx context.Context, userID, tag, body string) error {
	return h.Push.Send(ctx, userID, tag, body)
}
