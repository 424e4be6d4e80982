package shoppinglist

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ItemDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   float64   `json:"quantity"`
	Unit       string    `json:"unit"`
	Category   string    `json:"category"`
	Checked    bool      `json:"is_checked"`
	DishID     *string   `json:"dish_id"`
	DishName   *string   `json:"dish_name"`
	MealPlanID *string   `json:"meal_plan_id,omitempty"`
	Generated  bool      `json:"generated"`
	Editable   bool      `json:"editable"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type GroupDTO struct {
	Category string    `json:"category"`
	Label    string    `json:"label"`
	Items    []ItemDTO `json:"items"`
}

type ListResponse struct {
	Groups []GroupDTO `json:"groups"`
	Items  []ItemDTO  `json:"items"`
	Total  int        `json:"total"`
}

type CountResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type ReconcileResponse struct {
	Removed  int `json:"removed"`
	Inserted int `json:"inserted"`
}

type AddManualRequest struct {
	Name     string           `json:"name"`
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     string           `json:"unit"`
	Category string           `json:"category"`
}

func (r *AddManualRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > 200 {
		return fmt.Errorf("name must be at most 200 characters")
	}
	if r.Quantity != nil && r.Quantity.IsNegative() {
		return fmt.Errorf("quantity must be >= 0")
	}
	return nil
}

type AddGeneratedRequest struct {
	Name     string           `json:"name"`
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     string           `json:"unit"`
	Category string           `json:"category"`
	DishID   string           `json:"dish_id"`
	DishName string           `json:"dish_name"`
}

func (r *AddGeneratedRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.DishID = strings.TrimSpace(r.DishID)
	r.DishName = strings.TrimSpace(r.DishName)
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.DishID == "" {
		return fmt.Errorf("dish_id is required")
	}
	if r.DishName == "" {
		return fmt.Errorf("dish_name is required")
	}
	if r.Quantity == nil || !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be > 0")
	}
	return nil
}

type UpdateItemRequest struct {
	Name     *string          `json:"name"`
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     *string          `json:"unit"`
	Category *string          `json:"category"`
	Checked  *bool            `json:"is_checked"`
}

func (r *UpdateItemRequest) Validate() error {
	if r.Name == nil && r.Quantity == nil && r.Unit == nil && r.Category == nil && r.Checked == nil {
		return fmt.Errorf("at least one field is required")
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if trimmed == "" {
			return fmt.Errorf("name must not be empty")
		}
		r.Name = &trimmed
	}
	if r.Quantity != nil && r.Quantity.IsNegative() {
		return fmt.Errorf("quantity must be >= 0")
	}
	return nil
}
