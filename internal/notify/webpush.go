package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"daily-planner/internal/reminder"
)

var ErrPushDisabled = errors.New("web push is not configured")

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// WebPush sends system notifications to the browser subscriptions of each user.
type WebPush struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
	Logger     *zap.SugaredLogger

	mu   sync.Mutex
	subs map[string][]webpush.Subscription
}

func NewWebPush(publicKey, privateKey, subscriber string, ttl int, logger *zap.SugaredLogger) *WebPush {
	return &WebPush{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: subscriber,
		TTL:        ttl,
		Logger:     logger,
		subs:       make(map[string][]webpush.Subscription),
	}
}

func (w *WebPush) Enabled() bool {
	return w != nil && w.PublicKey != "" && w.PrivateKey != ""
}

// Subscribe registers a browser subscription. Re-subscribing the same
// endpoint replaces its keys.
func (w *WebPush) Subscribe(userID string, sub webpush.Subscription) error {
	if !w.Enabled() {
		return ErrPushDisabled
	}
	if sub.Endpoint == "" || sub.Keys.Auth == "" || sub.Keys.P256dh == "" {
		return fmt.Errorf("incomplete push subscription")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	subs := w.subs[userID]
	for i := range subs {
		if subs[i].Endpoint == sub.Endpoint {
			subs[i] = sub
			return nil
		}
	}
	w.subs[userID] = append(subs, sub)
	return nil
}

// Unsubscribe removes every subscription of the user.
func (w *WebPush) Unsubscribe(userID string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.subs, userID)
}

// Permission reports the notification permission the user has granted.
func (w *WebPush) Permission(userID string) reminder.Permission {
	if !w.Enabled() {
		return reminder.PermissionDenied
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.subs[userID]) > 0 {
		return reminder.PermissionGranted
	}
	return reminder.PermissionDefault
}

func (w *WebPush) subscriptions(userID string) []webpush.Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]webpush.Subscription(nil), w.subs[userID]...)
}

func (w *WebPush) drop(userID, endpoint string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	subs := w.subs[userID]
	for i := range subs {
		if subs[i].Endpoint == endpoint {
			w.subs[userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(w.subs[userID]) == 0 {
		delete(w.subs, userID)
	}
}

// Send pushes a notification to every subscription of the user. The tag is
// sent as the Topic so the push service replaces an undelivered message
// with the same tag. Subscriptions the push service reports as gone are
// dropped.
func (w *WebPush) Send(ctx context.Context, userID, tag, body string) error {
	if !w.Enabled() {
		return ErrPushDisabled
	}

	payload, err := json.Marshal(Message{Title: "Reminder", Body: body, Tag: tag})
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range w.subscriptions(userID) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
			HTTPClient:      w.HTTPClient,
			Subscriber:      w.Subscriber,
			Topic:           tag,
			TTL:             w.TTL,
			Urgency:         webpush.UrgencyHigh,
			VAPIDPublicKey:  w.PublicKey,
			VAPIDPrivateKey: w.PrivateKey,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			w.Logger.Infow("Dropping expired push subscription", "user", userID, "status", resp.StatusCode)
			w.drop(userID, sub.Endpoint)
		case resp.StatusCode >= 300:
			errs = append(errs, fmt.Errorf("push service returned %d", resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}
