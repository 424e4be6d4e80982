package shoppinglist

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/userctx"
)

// Handler handles HTTP requests for the shopping list.
type Handler struct {
	service *Service
}

// NewHandler creates a new shopping list handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleList handles GET /v1/shopping-list
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	resp, err := h.service.List(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to load shopping list")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleAddManual handles POST /v1/shopping-list/manual
func (h *Handler) HandleAddManual(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	item, err := h.service.AddManual(r.Context(), userID, req)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to add item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleAddGenerated handles POST /v1/shopping-list/generated
func (h *Handler) HandleAddGenerated(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddGeneratedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	item, err := h.service.AddGenerated(r.Context(), userID, req)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to add item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdate handles PUT /v1/shopping-list/manual/{id} and PUT /v1/shopping-list/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	item, err := h.service.UpdateManual(r.Context(), userID, r.PathValue("id"), req)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleToggle handles PATCH /v1/shopping-list/{id}/checked
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	item, err := h.service.ToggleChecked(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to toggle item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDelete handles DELETE /v1/shopping-list/manual/{id} and DELETE /v1/shopping-list/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.service.DeleteManual(r.Context(), userID, id); err != nil {
		apperr.WriteHTTP(w, err, "Failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Item deleted", "id": id})
}

// HandleDeleteByDish handles DELETE /v1/shopping-list/dish/{dishId}
func (h *Handler) HandleDeleteByDish(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.service.RetractByDish(r.Context(), userID, r.PathValue("dishId"))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to delete dish items")
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{
		Message: fmt.Sprintf("Removed %d item(s)", count),
		Count:   count,
	})
}

// HandleClearChecked handles POST /v1/shopping-list/clear-checked
func (h *Handler) HandleClearChecked(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.service.ClearChecked(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to clear checked items")
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{
		Message: fmt.Sprintf("Removed %d checked item(s)", count),
		Count:   count,
	})
}

// HandleReconcile handles POST /v1/shopping-list/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to reconcile shopping list")
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
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
