package mealplans

import (
	"encoding/json"
	"net/http"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/userctx"
)

// Handler handles HTTP requests for meal plans.
type Handler struct {
	service *Service
}

// NewHandler creates a new meal plans handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleSchedule handles POST /v1/meal-plan
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.Schedule(r.Context(), userID, req)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to schedule meal")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleWeek handles GET /v1/meal-plan?startDate=&endDate=
func (h *Handler) HandleWeek(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	resp, err := h.service.WeekPlan(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to get meal plan")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /v1/meal-plan/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Unschedule(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to delete meal")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleClearDay handles POST /v1/meal-plan/clear-day
func (h *Handler) HandleClearDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ClearDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.ClearDay(r.Context(), userID, req.Date)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to clear day")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleClearWeek handles POST /v1/meal-plan/clear-week
func (h *Handler) HandleClearWeek(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ClearWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.ClearWeek(r.Context(), userID, req.WeekStart, req.WeekEnd)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to clear week")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := userctx.FromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
