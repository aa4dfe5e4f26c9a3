package handlers

import (
	"net/http"

	"daily-planner/internal/plan"
	"daily-planner/internal/storage"
)

type savePlanRequest struct {
	Date      string          `json:"date" validate:"required,plandate"`
	Todos     []plan.TodoItem `json:"todos"`
	MustDos   []plan.TodoItem `json:"mustDos"`
	Reminders []plan.Reminder `json:"reminders"`
}

type planResponse struct {
	Success bool       `json:"success,omitempty"`
	Plan    *plan.Plan `json:"plan"`
}

func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, r, http.StatusBadRequest, "Date is required", nil)
		return "", false
	}
	if !plan.ValidDate(date) {
		writeError(w, r, http.StatusBadRequest, "Date must be YYYY-MM-DD", nil)
		return "", false
	}
	return date, true
}

// GetPlanHandler returns the plan for ?date=. Reminders come back with
// notified cleared, the state the planner view starts from.
func GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	p, err := Store.GetPlan(r.Context(), info.UserID, date)
	if storage.IsNotFound(err) {
		writeJSON(w, r, http.StatusOK, planResponse{})
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch plan", err)
		return
	}
	writeJSON(w, r, http.StatusOK, planResponse{Plan: p.ResetNotified()})
}

// SavePlanHandler creates or replaces the signed-in user's plan for a date.
func SavePlanHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req savePlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validate.Struct(req); err != nil {
		if req.Date == "" {
			writeError(w, r, http.StatusBadRequest, "Date is required", nil)
		} else {
			writeError(w, r, http.StatusBadRequest, "Date must be YYYY-MM-DD", nil)
		}
		return
	}
	for _, rem := range req.Reminders {
		if rem.ReminderDate != "" && !plan.ValidDate(rem.ReminderDate) {
			writeError(w, r, http.StatusBadRequest, "Reminder date must be YYYY-MM-DD", nil)
			return
		}
		if rem.ReminderTime != "" && !plan.ValidTime(rem.ReminderTime) {
			writeError(w, r, http.StatusBadRequest, "Reminder time must be HH:MM", nil)
			return
		}
	}

	// The stored plan keeps its own ID; clients never choose one.
	p := plan.NewPlan("", info.UserID, req.Date)
	p.Todos = req.Todos
	p.MustDos = req.MustDos
	p.Reminders = req.Reminders
	p.Normalize()

	if err := Store.UpsertPlan(r.Context(), p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	saved, err := Store.GetPlan(r.Context(), info.UserID, req.Date)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, r, http.StatusOK, planResponse{Success: true, Plan: saved})
}

func DeletePlanHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := requireSession(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	err := Store.DeletePlan(r.Context(), info.UserID, date)
	if storage.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, "Plan not found", nil)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to delete plan", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
