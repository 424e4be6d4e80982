package exports

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/userctx"
)

// Handlers handles HTTP requests for exports
type Handlers struct {
	service *Service
}

// NewHandlers creates new handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleCreate handles POST /v1/exports
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	meta, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to create export")
		return
	}

	dto, err := h.service.toDTO(r.Context(), meta, getBaseURL(r))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to generate download URL")
		return
	}

	writeJSON(w, http.StatusCreated, dto)
}

// HandleList handles GET /v1/exports
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, 100)
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	list, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to list exports")
		return
	}

	baseURL := getBaseURL(r)
	resp := ExportsResponse{Exports: make([]ExportDTO, 0, len(list))}
	for i := range list {
		dto, err := h.service.toDTO(r.Context(), &list[i], baseURL)
		if err != nil {
			apperr.WriteHTTP(w, err, "Failed to generate download URL")
			return
		}
		resp.Exports = append(resp.Exports, dto)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDownload handles GET /v1/exports/{id}/download
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	meta, err := h.service.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to get export")
		return
	}

	// S3 mode: redirect to the object URL
	if !h.service.LocalMode() && meta.ObjectKey != nil {
		url, err := h.service.DownloadURL(r.Context(), meta, getBaseURL(r))
		if err != nil {
			apperr.WriteHTTP(w, err, "Failed to generate download URL")
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	data, ct, err := h.service.Data(r.Context(), meta)
	if err != nil {
		apperr.WriteHTTP(w, err, "Failed to read export")
		return
	}

	filename := fmt.Sprintf("shopping_list_%s.%s", meta.CreatedAt.Format("2006-01-02"), meta.Format)
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// HandleDelete handles DELETE /v1/exports/{id}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		apperr.WriteHTTP(w, err, "Failed to delete export")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
