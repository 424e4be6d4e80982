package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
)

func (s *PlannerMemoryStorage) InsertItem(ctx context.Context, item storage.ShoppingItem) (storage.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(item, time.Now().UTC()), nil
}

func (s *PlannerMemoryStorage) GetItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.items[id]
	if !ok || row.item.UserID != userID {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	return row.item, nil
}

func (s *PlannerMemoryStorage) UpdateManualItem(ctx context.Context, userID string, id string, upd storage.ShoppingItemUpdate) (storage.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.manualLocked(userID, id)
	if !ok {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}

	if upd.Name != nil {
		row.item.Name = *upd.Name
	}
	if upd.Quantity != nil {
		row.item.Quantity = *upd.Quantity
	}
	if upd.Unit != nil {
		row.item.Unit = *upd.Unit
	}
	if upd.Category != nil {
		row.item.Category = *upd.Category
	}
	if upd.Checked != nil {
		row.item.Checked = *upd.Checked
	}
	row.item.UpdatedAt = time.Now().UTC()

	return row.item, nil
}

func (s *PlannerMemoryStorage) ToggleManualItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.manualLocked(userID, id)
	if !ok {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	row.item.Checked = !row.item.Checked
	row.item.UpdatedAt = time.Now().UTC()
	return row.item, nil
}

func (s *PlannerMemoryStorage) DeleteManualItem(ctx context.Context, userID string, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manualLocked(userID, id); !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *PlannerMemoryStorage) DeleteItemsByDish(ctx context.Context, userID string, dishID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, row := range s.items {
		if row.item.UserID == userID && row.item.DishID != nil && *row.item.DishID == dishID {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}

func (s *PlannerMemoryStorage) DeleteCheckedItems(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, row := range s.items {
		if row.item.UserID == userID && !row.item.IsGenerated() && row.item.Checked {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}

// ListItems returns the user's items in insertion order; grouping is done by the caller.
func (s *PlannerMemoryStorage) ListItems(ctx context.Context, userID string) ([]storage.ShoppingItem, error) {
	s.mu.RLock()
	rows := make([]itemRow, 0)
	for _, row := range s.items {
		if row.item.UserID == userID {
			rows = append(rows, *row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	items := make([]storage.ShoppingItem, len(rows))
	for i, row := range rows {
		items[i] = row.item
	}
	return items, nil
}

func (s *PlannerMemoryStorage) ReplaceMealItems(ctx context.Context, userID string, build storage.MealItemsBuilder) (storage.MealItemsReplacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]mealRow, 0)
	for _, row := range s.meals {
		if row.meal.UserID == userID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	meals := make([]storage.ScheduledMeal, len(rows))
	for i, row := range rows {
		meals[i] = row.meal
	}

	items, err := build(meals)
	if err != nil {
		return storage.MealItemsReplacement{}, err
	}

	removed := 0
	for id, row := range s.items {
		if row.item.UserID == userID && row.item.MealPlanID != nil {
			delete(s.items, id)
			removed++
		}
	}

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		if item.MealPlanID == nil {
			continue
		}
		if meal, ok := s.meals[*item.MealPlanID]; !ok || meal.meal.UserID != userID {
			continue
		}
		item.UserID = userID
		s.insertLocked(item, now)
		inserted++
	}
	return storage.MealItemsReplacement{Meals: len(meals), Removed: removed, Inserted: inserted}, nil
}

func (s *PlannerMemoryStorage) manualLocked(userID string, id string) (*itemRow, bool) {
	row, ok := s.items[id]
	if !ok || row.item.UserID != userID || row.item.IsGenerated() {
		return nil, false
	}
	return row, true
}
