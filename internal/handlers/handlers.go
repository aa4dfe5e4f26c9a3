package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"daily-planner/internal/metrics"
	"daily-planner/internal/notify"
	"daily-planner/internal/plan"
	"daily-planner/internal/session"
	"daily-planner/internal/storage"
)

const (
	cookieName   = "session"
	cookieMaxAge = 30 * 24 * time.Hour
)

var (
	Store    storage.Storage
	Sessions *session.Manager
	Feed     *notify.Feed
	Push     *notify.WebPush
	Logger   = zap.NewNop().Sugar()
	// SecureCookies marks the session cookie Secure; set when serving TLS.
	SecureCookies bool

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("plandate", func(fl validator.FieldLevel) bool {
		return plan.ValidDate(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return plan.ValidTime(fl.Field().String())
	})
	return v
}

// RegisterRoutes mounts the planner API under /api.
func RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", RegisterHandler).Methods("POST")
	api.HandleFunc("/auth/login", LoginHandler).Methods("POST")
	api.HandleFunc("/auth/logout", LogoutHandler).Methods("POST")
	api.HandleFunc("/auth/session", SessionHandler).Methods("GET")
	api.HandleFunc("/auth/delete", DeleteAccountHandler).Methods("DELETE")

	api.HandleFunc("/plans", GetPlanHandler).Methods("GET")
	api.HandleFunc("/plans", SavePlanHandler).Methods("POST")
	api.HandleFunc("/plans", DeletePlanHandler).Methods("DELETE")

	api.HandleFunc("/alerts", AlertsHandler).Methods("GET")
	api.HandleFunc("/push/key", PushKeyHandler).Methods("GET")
	api.HandleFunc("/push/subscribe", SubscribeHandler).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warnw("Failed to encode response", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	Logger.Infow("Request", "method", r.Method, "path", r.URL.Path, "agent", r.UserAgent(), "status", status)
}

// writeError replies with {"error": msg}. err is logged but never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		Logger.Warnw(msg, "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, r, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// fieldError returns the first invalid field name reported by the validator.
func fieldError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentSession returns the session named by the request cookie.
func currentSession(r *http.Request) (session.Info, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return session.Info{}, false
	}
	return Sessions.Get(c.Value)
}

// requireSession writes 401 and returns false when the request is not signed in.
func requireSession(w http.ResponseWriter, r *http.Request) (session.Info, bool) {
	info, ok := currentSession(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
	}
	return info, ok
}
