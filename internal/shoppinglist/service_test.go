package shoppinglist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/memory"
	"github.com/fdg312/meal-hub/internal/storage/sqlstore"
	"github.com/shopspring/decimal"
)

func qty(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func setupService(t *testing.T, opts Options) (*Service, *memory.MemoryStorage) {
	t.Helper()
	store := memory.New()
	seedCatalog(t, store)

	svc := NewService(store.GetShoppingItemsStorage(), store.GetMealPlansStorage(), store.GetCatalogStorage(), opts)
	return svc, store
}

func seedCatalog(t *testing.T, store storage.Storage) {
	t.Helper()
	err := store.GetCatalogStorage().SeedCatalog(context.Background(),
		[]storage.Ingredient{
			{ID: "flour", Name: "flour", Unit: "g", Category: "Bakery"},
			{ID: "egg", Name: "eggs", Unit: "unit", Category: "Dairy"},
		},
		[]storage.Dish{
			{
				ID: "d1", Name: "Crepes",
				Composition: []storage.CompositionLine{
					{IngredientID: "flour", Quantity: decimal.NewFromInt(200)},
					{IngredientID: "egg", Quantity: decimal.NewFromInt(2)},
				},
			},
			{
				ID: "d2", Name: "Omelette",
				Composition: []storage.CompositionLine{
					{IngredientID: "egg", Quantity: decimal.NewFromInt(3)},
				},
			},
		})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

// scheduleDish mirrors what the meal plan service does on schedule.
func scheduleDish(t *testing.T, store storage.Storage, userID, dishID string, servings int) storage.ScheduledMeal {
	t.Helper()
	ctx := context.Background()

	dish, err := store.GetCatalogStorage().GetDish(ctx, dishID)
	if err != nil {
		t.Fatalf("get dish: %v", err)
	}
	lines, err := store.GetCatalogStorage().ListComposition(ctx, dishID)
	if err != nil {
		t.Fatalf("list composition: %v", err)
	}

	meal, _, err := store.GetMealPlansStorage().ScheduleMeal(ctx, storage.ScheduledMeal{
		UserID: userID, Date: "2024-03-04", Slot: storage.SlotLunch, DishID: dishID, Servings: servings,
	}, Materialize(dish, lines, servings))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return meal
}

func countGenerated(resp *ListResponse, dishID string) int {
	n := 0
	for _, it := range resp.Items {
		if it.DishID != nil && *it.DishID == dishID {
			n++
		}
	}
	return n
}

func TestMaterialize(t *testing.T) {
	dish := storage.Dish{ID: "d1", Name: "Crepes"}
	lines := []storage.CompositionLine{
		{IngredientName: "flour", Quantity: decimal.NewFromInt(200), Unit: "g", Category: "Bakery"},
		{IngredientName: "eggs", Quantity: decimal.NewFromInt(2), Unit: "unit", Category: "Dairy"},
		{IngredientName: "flour", Quantity: decimal.RequireFromString("12.5"), Unit: "g", Category: "Bakery"},
		{IngredientName: "flour", Quantity: decimal.NewFromInt(1), Unit: "cup", Category: "Bakery"},
	}

	items := Materialize(dish, lines, 3)

	want := []struct {
		name, unit, qty string
	}{
		{"flour", "g", "637.5"},
		{"eggs", "unit", "6"},
		{"flour", "cup", "3"},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, w := range want {
		it := items[i]
		if it.Name != w.name || it.Unit != w.unit || !it.Quantity.Equal(decimal.RequireFromString(w.qty)) {
			t.Errorf("item[%d] = %s %s %s, want %s %s %s", i, it.Name, it.Quantity, it.Unit, w.name, w.qty, w.unit)
		}
		if it.DishID == nil || *it.DishID != "d1" || it.DishName == nil || *it.DishName != "Crepes" {
			t.Errorf("item[%d] missing dish attribution", i)
		}
	}
}

func TestRetractByDish_RemovesAllBatchesKeepsManual(t *testing.T) {
	svc, store := setupService(t, Options{})
	ctx := context.Background()

	scheduleDish(t, store, "u1", "d1", 2)
	scheduleDish(t, store, "u1", "d1", 3)
	if _, err := svc.AddManual(ctx, "u1", AddManualRequest{Name: "Milk"}); err != nil {
		t.Fatalf("AddManual: %v", err)
	}

	list, _ := svc.List(ctx, "u1")
	if got := countGenerated(list, "d1"); got != 4 {
		t.Fatalf("expected two separate batches (4 rows), got %d", got)
	}

	n, err := svc.RetractByDish(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("RetractByDish: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 removed, got %d", n)
	}

	list, _ = svc.List(ctx, "u1")
	if got := countGenerated(list, "d1"); got != 0 {
		t.Errorf("expected no generated items, got %d", got)
	}
	if list.Total != 1 || list.Items[0].Name != "Milk" {
		t.Errorf("manual item must survive, got %+v", list.Items)
	}
}

func TestGeneratedItemsAreReadOnly(t *testing.T) {
	svc, store := setupService(t, Options{})
	ctx := context.Background()

	scheduleDish(t, store, "u1", "d1", 1)
	list, _ := svc.List(ctx, "u1")
	gen := list.Items[0]
	if gen.Editable || !gen.Generated {
		t.Fatalf("expected generated, non-editable item: %+v", gen)
	}

	name := "hacked"
	if _, err := svc.UpdateManual(ctx, "u1", gen.ID, UpdateItemRequest{Name: &name}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("update: expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteManual(ctx, "u1", gen.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ToggleChecked(ctx, "u1", gen.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("toggle: expected ErrForbidden, got %v", err)
	}

	after, _ := svc.List(ctx, "u1")
	for _, it := range after.Items {
		if it.ID == gen.ID && (it.Name != gen.Name || it.Quantity != gen.Quantity || it.Checked) {
			t.Errorf("generated item changed: %+v", it)
		}
	}
	if after.Total != list.Total {
		t.Errorf("item count changed from %d to %d", list.Total, after.Total)
	}
}

func TestUserIsolation(t *testing.T) {
	svc, store := setupService(t, Options{})
	ctx := context.Background()

	a, _ := svc.AddManual(ctx, "alice", AddManualRequest{Name: "Milk"})
	svc.AddManual(ctx, "bob", AddManualRequest{Name: "Milk"})
	scheduleDish(t, store, "bob", "d1", 1)

	list, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 || list.Items[0].ID != a.ID {
		t.Errorf("alice sees foreign items: %+v", list.Items)
	}

	name := "Oat milk"
	if _, err := svc.UpdateManual(ctx, "bob", a.ID, UpdateItemRequest{Name: &name}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign update: expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteManual(ctx, "bob", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if n, _ := svc.RetractByDish(ctx, "alice", "d1"); n != 0 {
		t.Errorf("alice retract must not touch bob's items, removed %d", n)
	}
}

func TestAddManual_RoundTrip(t *testing.T) {
	svc, _ := setupService(t, Options{})
	ctx := context.Background()

	if _, err := svc.AddManual(ctx, "u1", AddManualRequest{Name: "Milk", Quantity: qty("2"), Unit: "l", Category: "Dairy"}); err != nil {
		t.Fatalf("AddManual: %v", err)
	}

	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 item, got %d", list.Total)
	}
	it := list.Items[0]
	if it.Name != "Milk" || it.Quantity != 2 || it.Unit != "l" || it.Category != "Dairy" || it.Checked || !it.Editable {
		t.Errorf("unexpected item: %+v", it)
	}

	// No merge on duplicate names.
	svc.AddManual(ctx, "u1", AddManualRequest{Name: "Milk"})
	list, _ = svc.List(ctx, "u1")
	if list.Total != 2 {
		t.Errorf("expected duplicate row, got %d items", list.Total)
	}
}

func TestAddManual_Validation(t *testing.T) {
	svc, _ := setupService(t, Options{})
	ctx := context.Background()

	if _, err := svc.AddManual(ctx, "u1", AddManualRequest{Name: "   "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank name: expected ErrValidation, got %v", err)
	}
	if _, err := svc.AddManual(ctx, "u1", AddManualRequest{Name: "Milk", Quantity: qty("-1")}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative quantity: expected ErrValidation, got %v", err)
	}
	if _, err := svc.AddGenerated(ctx, "u1", AddGeneratedRequest{Name: "flour", Quantity: qty("1")}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("generated without dish: expected ErrValidation, got %v", err)
	}
}

func TestList_Ordering(t *testing.T) {
	svc, _ := setupService(t, Options{UncategorizedLabel: "Other"})
	ctx := context.Background()

	for _, req := range []AddManualRequest{
		{Name: "zucchini", Category: "produce"},
		{Name: "Bread", Category: "Bakery"},
		{Name: "apple", Category: "Produce"},
		{Name: "Batteries"},
		{Name: "bagels", Category: "Bakery"},
	} {
		if _, err := svc.AddManual(ctx, "u1", req); err != nil {
			t.Fatalf("AddManual: %v", err)
		}
	}

	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	wantGroups := []string{"Bakery", "Produce", "Other"}
	if len(list.Groups) != len(wantGroups) {
		t.Fatalf("expected %d groups, got %d: %+v", len(wantGroups), len(list.Groups), list.Groups)
	}
	for i, g := range list.Groups {
		if g.Label != wantGroups[i] {
			t.Errorf("group[%d] = %q, want %q", i, g.Label, wantGroups[i])
		}
	}

	wantNames := []string{"bagels", "Bread", "apple", "zucchini", "Batteries"}
	for i, it := range list.Items {
		if it.Name != wantNames[i] {
			t.Errorf("item[%d] = %q, want %q", i, it.Name, wantNames[i])
		}
	}
}

type failingItems struct {
	storage.ShoppingItemsStorage
}

func (failingItems) ListItems(ctx context.Context, userID string) ([]storage.ShoppingItem, error) {
	return nil, errors.New("disk I/O error")
}

func TestList_ReadErrors(t *testing.T) {
	store := memory.New()

	strict := NewService(failingItems{}, store.GetMealPlansStorage(), store.GetCatalogStorage(), Options{})
	if _, err := strict.List(context.Background(), "u1"); !errors.Is(err, apperr.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}

	tolerant := NewService(failingItems{}, store.GetMealPlansStorage(), store.GetCatalogStorage(), Options{TolerateReadErrors: true})
	list, err := tolerant.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("tolerant List: %v", err)
	}
	if list.Total != 0 || len(list.Groups) != 0 {
		t.Errorf("expected empty list, got %+v", list)
	}
}

func TestUpdateToggleAndClearChecked(t *testing.T) {
	svc, _ := setupService(t, Options{})
	ctx := context.Background()

	milk, _ := svc.AddManual(ctx, "u1", AddManualRequest{Name: "Milk", Quantity: qty("1")})
	bread, _ := svc.AddManual(ctx, "u1", AddManualRequest{Name: "Bread"})

	unit := " l "
	updated, err := svc.UpdateManual(ctx, "u1", milk.ID, UpdateItemRequest{Quantity: qty("1.5"), Unit: &unit})
	if err != nil {
		t.Fatalf("UpdateManual: %v", err)
	}
	if updated.Quantity != 1.5 || updated.Unit != "l" || updated.Name != "Milk" {
		t.Errorf("unexpected update: %+v", updated)
	}

	if _, err := svc.UpdateManual(ctx, "u1", milk.ID, UpdateItemRequest{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty update: expected ErrValidation, got %v", err)
	}
	if _, err := svc.UpdateManual(ctx, "u1", "missing", UpdateItemRequest{Unit: &unit}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing update: expected ErrNotFound, got %v", err)
	}

	toggled, err := svc.ToggleChecked(ctx, "u1", milk.ID)
	if err != nil || !toggled.Checked {
		t.Fatalf("ToggleChecked: %+v %v", toggled, err)
	}

	n, err := svc.ClearChecked(ctx, "u1")
	if err != nil || n != 1 {
		t.Errorf("ClearChecked: n=%d err=%v", n, err)
	}

	list, _ := svc.List(ctx, "u1")
	if list.Total != 1 || list.Items[0].ID != bread.ID {
		t.Errorf("expected only bread left, got %+v", list.Items)
	}

	if err := svc.DeleteManual(ctx, "u1", bread.ID); err != nil {
		t.Errorf("DeleteManual: %v", err)
	}
	if err := svc.DeleteManual(ctx, "u1", bread.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestReconcile_RebuildsFromCatalog(t *testing.T) {
	svc, store := setupService(t, Options{})
	ctx := context.Background()

	scheduleDish(t, store, "u1", "d1", 2)
	if _, err := svc.AddGenerated(ctx, "u1", AddGeneratedRequest{
		Name: "sugar", Quantity: qty("10"), Unit: "g", DishID: "d1", DishName: "Crepes",
	}); err != nil {
		t.Fatalf("AddGenerated: %v", err)
	}

	// The dish gains an ingredient after it was scheduled.
	err := store.GetCatalogStorage().SeedCatalog(ctx,
		[]storage.Ingredient{{ID: "milk", Name: "milk", Unit: "ml", Category: "Dairy"}},
		[]storage.Dish{{
			ID: "d1", Name: "Crepes",
			Composition: []storage.CompositionLine{
				{IngredientID: "flour", Quantity: decimal.NewFromInt(200)},
				{IngredientID: "egg", Quantity: decimal.NewFromInt(2)},
				{IngredientID: "milk", Quantity: decimal.NewFromInt(250)},
			},
		}})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}

	resp, err := svc.Reconcile(ctx, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if resp.Removed != 2 || resp.Inserted != 3 {
		t.Errorf("unexpected reconcile result: %+v", resp)
	}

	list, _ := svc.List(ctx, "u1")
	got := map[string]float64{}
	for _, it := range list.Items {
		got[it.Name] = it.Quantity
	}
	if got["milk"] != 500 || got["flour"] != 400 || got["sugar"] != 10 {
		t.Errorf("unexpected list after reconcile: %v", got)
	}
}

// hookedCatalog runs onGetDish before the first GetDish call.
type hookedCatalog struct {
	storage.CatalogStorage
	onGetDish func()
}

func (c *hookedCatalog) GetDish(ctx context.Context, id string) (storage.Dish, error) {
	if hook := c.onGetDish; hook != nil {
		c.onGetDish = nil
		hook()
	}
	return c.CatalogStorage.GetDish(ctx, id)
}

func reconcileBackends(t *testing.T) map[string]func(t *testing.T) storage.Storage {
	t.Helper()
	return map[string]func(t *testing.T) storage.Storage{
		"memory": func(t *testing.T) storage.Storage {
			return memory.New()
		},
		"sqlite": func(t *testing.T) storage.Storage {
			s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "reconcile.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func mealItems(t *testing.T, store storage.Storage, userID string) map[string]int {
	t.Helper()
	items, err := store.GetShoppingItemsStorage().ListItems(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	byMeal := map[string]int{}
	for _, it := range items {
		if it.MealPlanID != nil {
			byMeal[*it.MealPlanID]++
		}
	}
	return byMeal
}

func TestReconcile_MealScheduledDuringRebuildKeepsItems(t *testing.T) {
	for name, open := range reconcileBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			seedCatalog(t, store)
			ctx := context.Background()

			first := scheduleDish(t, store, "u1", "d1", 1)

			var second storage.ScheduledMeal
			catalog := &hookedCatalog{CatalogStorage: store.GetCatalogStorage()}
			catalog.onGetDish = func() { second = scheduleDish(t, store, "u1", "d2", 1) }
			svc := NewService(store.GetShoppingItemsStorage(), store.GetMealPlansStorage(), catalog, Options{})

			resp, err := svc.Reconcile(ctx, "u1")
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if resp.Inserted != 3 {
				t.Errorf("inserted = %d, want 3", resp.Inserted)
			}

			byMeal := mealItems(t, store, "u1")
			if byMeal[first.ID] != 2 {
				t.Errorf("items for first meal = %d, want 2", byMeal[first.ID])
			}
			if byMeal[second.ID] != 1 {
				t.Errorf("items for meal scheduled during reconcile = %d, want 1", byMeal[second.ID])
			}
		})
	}
}

func TestReconcile_MealRemovedDuringRebuildLeavesNoItems(t *testing.T) {
	for name, open := range reconcileBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			seedCatalog(t, store)
			ctx := context.Background()

			meal := scheduleDish(t, store, "u1", "d1", 2)

			catalog := &hookedCatalog{CatalogStorage: store.GetCatalogStorage()}
			catalog.onGetDish = func() {
				removal, err := store.GetMealPlansStorage().UnscheduleMeal(ctx, "u1", meal.ID)
				if err != nil || removal.Meals != 1 {
					t.Errorf("UnscheduleMeal: %+v %v", removal, err)
				}
			}
			svc := NewService(store.GetShoppingItemsStorage(), store.GetMealPlansStorage(), catalog, Options{})

			resp, err := svc.Reconcile(ctx, "u1")
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if resp.Inserted != 0 {
				t.Errorf("inserted = %d, want 0", resp.Inserted)
			}

			if byMeal := mealItems(t, store, "u1"); len(byMeal) != 0 {
				t.Errorf("expected no meal-linked items, got %v", byMeal)
			}
		})
	}
}

func TestReconcile_RemovesOrphanedMealItems(t *testing.T) {
	for name, open := range reconcileBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			seedCatalog(t, store)
			ctx := context.Background()

			meal := scheduleDish(t, store, "u1", "d1", 1)
			gone := "5f0c8a52-6f1e-4b7a-9d43-0d1f2a3b4c5d"
			dishID, dishName := "d1", "Crepes"
			if _, err := store.GetShoppingItemsStorage().InsertItem(ctx, storage.ShoppingItem{
				UserID: "u1", Name: "flour", Quantity: decimal.NewFromInt(1), Unit: "g",
				DishID: &dishID, DishName: &dishName, MealPlanID: &gone,
			}); err != nil {
				t.Fatalf("InsertItem: %v", err)
			}

			svc := NewService(store.GetShoppingItemsStorage(), store.GetMealPlansStorage(), store.GetCatalogStorage(), Options{})
			resp, err := svc.Reconcile(ctx, "u1")
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if resp.Removed != 3 || resp.Inserted != 2 {
				t.Errorf("unexpected reconcile result: %+v", resp)
			}

			byMeal := mealItems(t, store, "u1")
			if byMeal[gone] != 0 || byMeal[meal.ID] != 2 {
				t.Errorf("unexpected meal-linked items: %v", byMeal)
			}
		})
	}
}
