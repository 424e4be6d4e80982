package mealplans

import (
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
)

const dateLayout = "2006-01-02"

type MealDTO struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Slot         string    `json:"slot"`
	DishID       string    `json:"dish_id"`
	DishName     string    `json:"dish_name"`
	DishCategory string    `json:"dish_category"`
	Servings     int       `json:"servings"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

type ScheduleRequest struct {
	Date     string `json:"date"`
	Slot     string `json:"slot"`
	DishID   string `json:"dish_id"`
	Servings int    `json:"servings"`
	Notes    string `json:"notes"`
}

type ScheduleResponse struct {
	MealDTO
	GeneratedItems int `json:"generated_items"`
}

type WeekPlanResponse struct {
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Meals     []MealDTO `json:"meals"`
}

type ClearDayRequest struct {
	Date string `json:"date"`
}

type ClearWeekRequest struct {
	WeekStart string `json:"weekStart"`
	WeekEnd   string `json:"weekEnd"`
}

type ClearResponse struct {
	Count          int `json:"count"`
	RetractedItems int `json:"retracted_items"`
}

type DeleteResponse struct {
	Deleted        bool `json:"deleted"`
	RetractedItems int  `json:"retracted_items"`
}

func (r *ScheduleRequest) Validate() error {
	r.Date = strings.TrimSpace(r.Date)
	r.Slot = strings.TrimSpace(r.Slot)
	r.DishID = strings.TrimSpace(r.DishID)

	if r.Date == "" || r.Slot == "" || r.DishID == "" {
		return fmt.Errorf("date, slot and dish_id are required")
	}
	if _, err := parseDate(r.Date); err != nil {
		return err
	}
	if !storage.ValidSlot(r.Slot) {
		return fmt.Errorf("slot must be one of %s", strings.Join(storage.Slots, ", "))
	}
	if r.Servings < 1 {
		return fmt.Errorf("servings must be >= 1")
	}
	if len(r.Notes) > 1000 {
		return fmt.Errorf("notes must be at most 1000 characters")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func toMealDTO(m storage.ScheduledMeal) MealDTO {
	return MealDTO{
		ID:           m.ID,
		Date:         m.Date,
		Slot:         m.Slot,
		DishID:       m.DishID,
		DishName:     m.DishName,
		DishCategory: m.DishCategory,
		Servings:     m.Servings,
		Notes:        m.Notes,
		CreatedAt:    m.CreatedAt,
	}
}
