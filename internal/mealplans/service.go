package mealplans

import (
	"context"
	"errors"
	"log"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/shoppinglist"
	"github.com/fdg312/meal-hub/internal/storage"
)

const DefaultMaxRangeDays = 62

// Service schedules meals and keeps their generated shopping items in step.
type Service struct {
	plans        storage.MealPlansStorage
	catalog      storage.CatalogStorage
	maxRangeDays int
}

// NewService creates a new meal plans service.
func NewService(plans storage.MealPlansStorage, catalog storage.CatalogStorage, maxRangeDays int) *Service {
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	return &Service{plans: plans, catalog: catalog, maxRangeDays: maxRangeDays}
}

// Schedule plans a dish and materializes its composition, scaled by servings,
// as generated shopping items in the same transaction.
func (s *Service) Schedule(ctx context.Context, userID string, req ScheduleRequest) (*ScheduleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	dish, err := s.catalog.GetDish(ctx, req.DishID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Validation("dish %s does not exist", req.DishID)
	}
	if err != nil {
		return nil, apperr.Store("get dish", err)
	}

	lines, err := s.catalog.ListComposition(ctx, dish.ID)
	if err != nil {
		return nil, apperr.Store("list composition", err)
	}

	meal, items, err := s.plans.ScheduleMeal(ctx, storage.ScheduledMeal{
		UserID:   userID,
		Date:     req.Date,
		Slot:     req.Slot,
		DishID:   dish.ID,
		Servings: req.Servings,
		Notes:    req.Notes,
	}, shoppinglist.Materialize(dish, lines, req.Servings))
	if err != nil {
		return nil, apperr.Store("schedule meal", err)
	}

	log.Printf("INFO meal plan: scheduled meal=%s user=%s dish=%s servings=%d generated=%d",
		meal.ID, userID, dish.ID, meal.Servings, len(items))

	return &ScheduleResponse{MealDTO: toMealDTO(meal), GeneratedItems: len(items)}, nil
}

// Unschedule deletes one meal and the generated items it produced.
func (s *Service) Unschedule(ctx context.Context, userID, mealID string) (*DeleteResponse, error) {
	removal, err := s.plans.UnscheduleMeal(ctx, userID, mealID)
	if err != nil {
		return nil, apperr.Store("unschedule meal", err)
	}
	if removal.Meals == 0 {
		return nil, apperr.NotFound("meal not found")
	}
	return &DeleteResponse{Deleted: true, RetractedItems: removal.RetractedItems}, nil
}

// WeekPlan returns the meals in [startDate, endDate].
func (s *Service) WeekPlan(ctx context.Context, userID, startDate, endDate string) (*WeekPlanResponse, error) {
	if err := s.validateRange(startDate, endDate); err != nil {
		return nil, err
	}

	meals, err := s.plans.ListMeals(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, apperr.Store("list meals", err)
	}

	dtos := make([]MealDTO, len(meals))
	for i, m := range meals {
		dtos[i] = toMealDTO(m)
	}
	return &WeekPlanResponse{StartDate: startDate, EndDate: endDate, Meals: dtos}, nil
}

// ClearDay deletes every meal of the user on date.
func (s *Service) ClearDay(ctx context.Context, userID, date string) (*ClearResponse, error) {
	if date == "" {
		return nil, apperr.Validation("date is required")
	}
	if _, err := parseDate(date); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	return s.clear(ctx, userID, date, date)
}

// ClearWeek deletes every meal of the user in [startDate, endDate].
func (s *Service) ClearWeek(ctx context.Context, userID, startDate, endDate string) (*ClearResponse, error) {
	if err := s.validateRange(startDate, endDate); err != nil {
		return nil, err
	}
	return s.clear(ctx, userID, startDate, endDate)
}

func (s *Service) clear(ctx context.Context, userID, from, to string) (*ClearResponse, error) {
	removal, err := s.plans.ClearRange(ctx, userID, from, to)
	if err != nil {
		return nil, apperr.Store("clear meals", err)
	}
	if removal.Meals > 0 {
		log.Printf("INFO meal plan: cleared user=%s range=%s..%s meals=%d retracted=%d",
			userID, from, to, removal.Meals, removal.RetractedItems)
	}
	return &ClearResponse{Count: removal.Meals, RetractedItems: removal.RetractedItems}, nil
}

func (s *Service) validateRange(startDate, endDate string) error {
	if startDate == "" || endDate == "" {
		return apperr.Validation("start and end dates are required")
	}
	start, err := parseDate(startDate)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	end, err := parseDate(endDate)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if start.After(end) {
		return apperr.Validation("start date must not be after end date")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > s.maxRangeDays {
		return apperr.Validation("date range must not exceed %d days", s.maxRangeDays)
	}
	return nil
}
