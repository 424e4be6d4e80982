package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestParallelSchedulesKeepEveryBatch(t *testing.T) {
	store := New()
	plans := store.GetMealPlansStorage()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := plans.ScheduleMeal(ctx, storage.ScheduledMeal{
				UserID: "u1", Date: fmt.Sprintf("2024-03-%02d", i+1), Slot: storage.SlotLunch, DishID: "d1", Servings: 1,
			}, []storage.ShoppingItem{
				{Name: "flour", Quantity: decimal.NewFromInt(200), DishID: strPtr("d1"), DishName: strPtr("Crepes")},
				{Name: "eggs", Quantity: decimal.NewFromInt(2), DishID: strPtr("d1"), DishName: strPtr("Crepes")},
			})
			if err != nil || len(created) != 2 {
				t.Errorf("ScheduleMeal: created=%d err=%v", len(created), err)
			}
		}(i)
	}
	wg.Wait()

	meals, _ := plans.ListMeals(ctx, "u1", "0001-01-01", "9999-12-31")
	if len(meals) != n {
		t.Fatalf("meals = %d, want %d", len(meals), n)
	}
	items, _ := store.GetShoppingItemsStorage().ListItems(ctx, "u1")
	if len(items) != 2*n {
		t.Errorf("items = %d, want %d", len(items), 2*n)
	}
	perMeal := map[string]int{}
	for _, it := range items {
		perMeal[*it.MealPlanID]++
	}
	for _, m := range meals {
		if perMeal[m.ID] != 2 {
			t.Errorf("meal %s has %d items, want 2", m.ID, perMeal[m.ID])
		}
	}
}

func TestReplaceMealItemsBuildErrorWritesNothing(t *testing.T) {
	store := New()
	plans := store.GetMealPlansStorage()
	items := store.GetShoppingItemsStorage()
	ctx := context.Background()

	meal, _, err := plans.ScheduleMeal(ctx, storage.ScheduledMeal{
		UserID: "u1", Date: "2024-03-04", Slot: storage.SlotLunch, DishID: "d1", Servings: 1,
	}, []storage.ShoppingItem{{Name: "flour", Quantity: decimal.NewFromInt(200), DishID: strPtr("d1"), DishName: strPtr("Crepes")}})
	if err != nil {
		t.Fatalf("ScheduleMeal: %v", err)
	}

	var listed []storage.ScheduledMeal
	_, err = items.ReplaceMealItems(ctx, "u1", func(meals []storage.ScheduledMeal) ([]storage.ShoppingItem, error) {
		listed = meals
		return nil, fmt.Errorf("catalog incomplete")
	})
	if err == nil {
		t.Fatal("expected build error")
	}
	if len(listed) != 1 || listed[0].ID != meal.ID {
		t.Errorf("builder saw %+v", listed)
	}

	left, _ := items.ListItems(ctx, "u1")
	if len(left) != 1 || left[0].MealPlanID == nil || *left[0].MealPlanID != meal.ID {
		t.Errorf("items changed after failed rebuild: %+v", left)
	}
}
