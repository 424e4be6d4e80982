package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

type mealRow struct {
	meal storage.ScheduledMeal
	seq  uint64
}

type itemRow struct {
	item storage.ShoppingItem
	seq  uint64
}

// PlannerMemoryStorage holds scheduled meals and shopping items behind one
// lock, so a meal and its generated items are written and removed together.
type PlannerMemoryStorage struct {
	mu      sync.RWMutex
	catalog *CatalogMemoryStorage
	meals   map[string]*mealRow // key: meal_id
	items   map[string]*itemRow // key: item_id
	seq     uint64
}

func NewPlannerMemoryStorage(catalog *CatalogMemoryStorage) *PlannerMemoryStorage {
	return &PlannerMemoryStorage{
		catalog: catalog,
		meals:   make(map[string]*mealRow),
		items:   make(map[string]*itemRow),
	}
}

func (s *PlannerMemoryStorage) ScheduleMeal(ctx context.Context, meal storage.ScheduledMeal, generated []storage.ShoppingItem) (storage.ScheduledMeal, []storage.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	meal.ID = uuid.New().String()
	meal.CreatedAt = now
	meal.DishName, meal.DishCategory = s.catalog.dishLabel(meal.DishID)

	s.seq++
	s.meals[meal.ID] = &mealRow{meal: meal, seq: s.seq}

	mealID := meal.ID
	created := make([]storage.ShoppingItem, 0, len(generated))
	for _, item := range generated {
		item.UserID = meal.UserID
		item.MealPlanID = &mealID
		created = append(created, s.insertLocked(item, now))
	}

	return meal, created, nil
}

func (s *PlannerMemoryStorage) UnscheduleMeal(ctx context.Context, userID string, mealID string) (storage.MealRemoval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.meals[mealID]
	if !ok || row.meal.UserID != userID {
		return storage.MealRemoval{}, nil
	}

	delete(s.meals, mealID)
	retracted := s.retractMealsLocked(userID, map[string]bool{mealID: true})

	return storage.MealRemoval{Meals: 1, RetractedItems: retracted}, nil
}

func (s *PlannerMemoryStorage) ListMeals(ctx context.Context, userID string, from, to string) ([]storage.ScheduledMeal, error) {
	s.mu.RLock()
	rows := make([]mealRow, 0)
	for _, row := range s.meals {
		if row.meal.UserID == userID && row.meal.Date >= from && row.meal.Date <= to {
			rows = append(rows, *row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].meal, rows[j].meal
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if oa, ob := storage.SlotOrder(a.Slot), storage.SlotOrder(b.Slot); oa != ob {
			return oa < ob
		}
		return rows[i].seq < rows[j].seq
	})

	meals := make([]storage.ScheduledMeal, len(rows))
	for i, row := range rows {
		meal := row.meal
		// Refresh the join so catalog renames show up like they would in SQL.
		if name, category := s.catalog.dishLabel(meal.DishID); name != "" {
			meal.DishName, meal.DishCategory = name, category
		}
		meals[i] = meal
	}
	return meals, nil
}

func (s *PlannerMemoryStorage) ClearRange(ctx context.Context, userID string, from, to string) (storage.MealRemoval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]bool)
	for id, row := range s.meals {
		if row.meal.UserID == userID && row.meal.Date >= from && row.meal.Date <= to {
			removed[id] = true
			delete(s.meals, id)
		}
	}
	if len(removed) == 0 {
		return storage.MealRemoval{}, nil
	}

	retracted := s.retractMealsLocked(userID, removed)
	return storage.MealRemoval{Meals: len(removed), RetractedItems: retracted}, nil
}

// Helper methods (must be called with lock held)

func (s *PlannerMemoryStorage) insertLocked(item storage.ShoppingItem, now time.Time) storage.ShoppingItem {
	item.ID = uuid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.seq++
	s.items[item.ID] = &itemRow{item: item, seq: s.seq}
	return item
}

func (s *PlannerMemoryStorage) retractMealsLocked(userID string, mealIDs map[string]bool) int {
	count := 0
	for id, row := range s.items {
		if row.item.UserID != userID || row.item.MealPlanID == nil {
			continue
		}
		if mealIDs[*row.item.MealPlanID] {
			delete(s.items, id)
			count++
		}
	}
	return count
}
