package handlers

import (
	"errors"
	"net/http"
	"time"

	"daily-planner/internal/storage"
	"daily-planner/internal/user"
)

type registerRequest struct {
	Name         string `json:"name" validate:"required"`
	Gender       string `json:"gender" validate:"required"`
	Pin          string `json:"pin" validate:"required"`
	DayStartTime string `json:"dayStartTime" validate:"required,clock"`
	TimeFormat   string `json:"timeFormat" validate:"required,oneof=12h 24h"`
}

type loginRequest struct {
	Name string `json:"name" validate:"required"`
	Pin  string `json:"pin" validate:"required"`
}

type deleteAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

type authResponse struct {
	Success bool       `json:"success"`
	User    *user.User `json:"user"`
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Name = user.NormalizeName(req.Name)
	if err := validate.Struct(req); err != nil {
		switch fieldError(err) {
		case "DayStartTime":
			writeError(w, r, http.StatusBadRequest, "Day start time must be HH:MM", nil)
		case "TimeFormat":
			writeError(w, r, http.StatusBadRequest, "Time format must be 12h or 24h", nil)
		default:
			writeError(w, r, http.StatusBadRequest, "All fields are required", nil)
		}
		return
	}

	u := &user.User{
		ID:           storage.GenerateUserID(),
		Name:         req.Name,
		Gender:       req.Gender,
		DayStartTime: req.DayStartTime,
		TimeFormat:   req.TimeFormat,
		CreatedAt:    time.Now().UTC(),
	}
	if err := u.SetPIN(req.Pin); err != nil {
		if errors.Is(err, user.ErrInvalidPIN) {
			writeError(w, r, http.StatusBadRequest, "PIN must be 4-6 digits", nil)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	if err := Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, r, http.StatusConflict, "A user with this name already exists", nil)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	info := Sessions.Start(u)
	setSessionCookie(w, info.Token)
	writeJSON(w, r, http.StatusOK, authResponse{Success: true, User: u.Public()})
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Name = user.NormalizeName(req.Name)
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Name and PIN are required", nil)
		return
	}

	u, err := Store.GetUserByName(r.Context(), req.Name)
	if storage.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Login failed", err)
		return
	}
	if !u.VerifyPIN(req.Pin) {
		writeError(w, r, http.StatusUnauthorized, "Incorrect PIN", nil)
		return
	}

	// A login from a browser that is already signed in replaces its session.
	if c, err := r.Cookie(cookieName); err == nil {
		Sessions.End(c.Value)
	}
	info := Sessions.Start(u)
	setSessionCookie(w, info.Token)
	writeJSON(w, r, http.StatusOK, authResponse{Success: true, User: u.Public()})
}

// LogoutHandler stops the reminder loop before the session is cleared.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil {
		if info, ok := Sessions.Get(c.Value); ok {
			Sessions.End(c.Value)
			Feed.Clear(info.UserID)
		}
	}
	clearSessionCookie(w)
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func SessionHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := currentSession(r)
	if !ok {
		writeJSON(w, r, http.StatusOK, map[string]any{"user": nil})
		return
	}
	u, err := Store.GetUser(r.Context(), info.UserID)
	if err != nil {
		if !storage.IsNotFound(err) {
			Logger.Warnw("Failed to load session user", "user", info.UserID, "error", err)
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user": u.Public()})
}

// DeleteAccountHandler removes the signed-in user and all of their plans.
// The name in the body must match the signed-in user.
func DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req deleteAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Name = user.NormalizeName(req.Name)
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if req.Name != info.Name {
		writeError(w, r, http.StatusBadRequest, "Name does not match the signed-in user", nil)
		return
	}

	Sessions.EndUser(info.UserID)
	Push.Unsubscribe(info.UserID)
	Feed.Clear(info.UserID)

	if err := Store.DeleteUser(r.Context(), info.UserID); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, r, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to delete account", err)
		return
	}
	clearSessionCookie(w)
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
