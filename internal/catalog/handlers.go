package catalog

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fdg312/meal-hub/internal/storage"
)

type DishDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	PrepMinutes int    `json:"prep_minutes"`
	CookMinutes int    `json:"cook_minutes"`
}

type CompositionLineDTO struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Category     string  `json:"category"`
}

type DishDetailResponse struct {
	DishDTO
	Ingredients []CompositionLineDTO `json:"ingredients"`
}

type ListDishesResponse struct {
	Dishes []DishDTO `json:"dishes"`
}

// Handler serves read-only dish lookups for the planner picker.
type Handler struct {
	store storage.CatalogStorage
}

func NewHandler(store storage.CatalogStorage) *Handler {
	return &Handler{store: store}
}

// HandleList handles GET /v1/dishes
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.store.ListDishes(r.Context())
	if err != nil {
		log.Printf("ERROR catalog: list dishes: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list dishes")
		return
	}

	resp := ListDishesResponse{Dishes: make([]DishDTO, len(dishes))}
	for i, d := range dishes {
		resp.Dishes[i] = toDishDTO(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/dishes/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	dish, err := h.store.GetDish(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Dish not found")
		return
	}
	if err != nil {
		log.Printf("ERROR catalog: get dish %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get dish")
		return
	}

	lines, err := h.store.ListComposition(r.Context(), id)
	if err != nil {
		log.Printf("ERROR catalog: composition of %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get dish")
		return
	}

	resp := DishDetailResponse{
		DishDTO:     toDishDTO(dish),
		Ingredients: make([]CompositionLineDTO, len(lines)),
	}
	for i, l := range lines {
		resp.Ingredients[i] = CompositionLineDTO{
			IngredientID: l.IngredientID,
			Name:         l.IngredientName,
			Quantity:     l.Quantity.InexactFloat64(),
			Unit:         l.Unit,
			Category:     l.Category,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toDishDTO(d storage.Dish) DishDTO {
	return DishDTO{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Description: d.Description,
		PrepMinutes: d.PrepMinutes,
		CookMinutes: d.CookMinutes,
	}
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
