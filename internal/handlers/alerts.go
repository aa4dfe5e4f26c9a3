package handlers

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"daily-planner/internal/notify"
)

// AlertsHandler drains the sounds and blocking alerts queued for the
// signed-in user. The browser polls it.
func AlertsHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"alerts":     Feed.Drain(info.UserID),
		"permission": Push.Permission(info.UserID),
	})
}

func PushKeyHandler(w http.ResponseWriter, r *http.Request) {
	if !Push.Enabled() {
		writeError(w, r, http.StatusNotFound, "Push notifications are not configured", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"publicKey": Push.PublicKey})
}

// SubscribeHandler stores a browser push subscription, which grants
// system notifications to the user's running reminder loop.
func SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	var sub webpush.Subscription
	if err := decodeBody(r, &sub); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := Push.Subscribe(info.UserID, sub); err != nil {
		if errors.Is(err, notify.ErrPushDisabled) {
			writeError(w, r, http.StatusNotFound, "Push notifications are not configured", nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, "Invalid push subscription", err)
		return
	}

	permission := Push.Permission(info.UserID)
	Sessions.SetPermission(info.UserID, permission)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "permission": permission})
}
