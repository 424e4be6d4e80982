package shoppinglist

import (
	"context"
	"errors"
	"log"
	"slices"
	"sort"
	"strings"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/shopspring/decimal"
)

const DefaultUncategorizedLabel = "Uncategorized"

// Options tunes list behaviour.
type Options struct {
	// TolerateReadErrors makes List return an empty list instead of failing.
	TolerateReadErrors bool
	UncategorizedLabel string
}

// Service answers shopping-list queries and mutations on top of the item,
// meal plan and catalog stores.
type Service struct {
	items   storage.ShoppingItemsStorage
	plans   storage.MealPlansStorage
	catalog storage.CatalogStorage
	opts    Options
}

// NewService creates a new shopping list service.
func NewService(items storage.ShoppingItemsStorage, plans storage.MealPlansStorage, catalog storage.CatalogStorage, opts Options) *Service {
	if opts.UncategorizedLabel == "" {
		opts.UncategorizedLabel = DefaultUncategorizedLabel
	}
	return &Service{items: items, plans: plans, catalog: catalog, opts: opts}
}

// List returns all items of the user grouped by category.
func (s *Service) List(ctx context.Context, userID string) (*ListResponse, error) {
	items, err := s.items.ListItems(ctx, userID)
	if err != nil {
		if s.opts.TolerateReadErrors {
			log.Printf("WARN shopping list: read failed for user=%s, returning empty list: %v", userID, err)
			items = nil
		} else {
			return nil, apperr.Store("list shopping items", err)
		}
	}

	return s.group(items), nil
}

func (s *Service) group(items []storage.ShoppingItem) *ListResponse {
	sorted := make([]storage.ShoppingItem, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ca, cb := categoryKey(a.Category), categoryKey(b.Category)
		if ca != cb {
			// Uncategorized sorts last.
			if ca == "" {
				return false
			}
			if cb == "" {
				return true
			}
			return ca < cb
		}
		na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if na != nb {
			return na < nb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	resp := &ListResponse{
		Groups: []GroupDTO{},
		Items:  make([]ItemDTO, 0, len(sorted)),
		Total:  len(sorted),
	}

	for _, item := range sorted {
		dto := toItemDTO(item)
		resp.Items = append(resp.Items, dto)

		key := categoryKey(item.Category)
		last := len(resp.Groups) - 1
		if last < 0 || categoryKey(resp.Groups[last].Category) != key {
			label := strings.TrimSpace(item.Category)
			if key == "" {
				label = s.opts.UncategorizedLabel
			}
			resp.Groups = append(resp.Groups, GroupDTO{Category: strings.TrimSpace(item.Category), Label: label})
			last++
		}
		resp.Groups[last].Items = append(resp.Groups[last].Items, dto)
	}

	return resp
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// AddManual creates a manual item. Duplicates are not merged.
func (s *Service) AddManual(ctx context.Context, userID string, req AddManualRequest) (*ItemDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	qty := decimal.Zero
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	item, err := s.items.InsertItem(ctx, storage.ShoppingItem{
		UserID:   userID,
		Name:     req.Name,
		Quantity: qty,
		Unit:     strings.TrimSpace(req.Unit),
		Category: strings.TrimSpace(req.Category),
	})
	if err != nil {
		return nil, apperr.Store("insert manual item", err)
	}

	dto := toItemDTO(item)
	return &dto, nil
}

// AddGenerated creates a dish-attributed item that is not tied to a scheduled meal.
func (s *Service) AddGenerated(ctx context.Context, userID string, req AddGeneratedRequest) (*ItemDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	dishID, dishName := req.DishID, req.DishName
	item, err := s.items.InsertItem(ctx, storage.ShoppingItem{
		UserID:   userID,
		Name:     req.Name,
		Quantity: *req.Quantity,
		Unit:     strings.TrimSpace(req.Unit),
		Category: strings.TrimSpace(req.Category),
		DishID:   &dishID,
		DishName: &dishName,
	})
	if err != nil {
		return nil, apperr.Store("insert generated item", err)
	}

	dto := toItemDTO(item)
	return &dto, nil
}

// checkManual resolves id to a manual item of the user.
func (s *Service) checkManual(ctx context.Context, userID, id string) error {
	item, err := s.items.GetItem(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("shopping item not found")
	}
	if err != nil {
		return apperr.Store("get shopping item", err)
	}
	if item.IsGenerated() {
		return apperr.Forbidden("generated items can only be removed by retracting their dish")
	}
	return nil
}

// UpdateManual applies req to a manual item.
func (s *Service) UpdateManual(ctx context.Context, userID, id string, req UpdateItemRequest) (*ItemDTO, error) {
	if err := s.checkManual(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	upd := storage.ShoppingItemUpdate{
		Name:     req.Name,
		Quantity: req.Quantity,
		Unit:     trimPtr(req.Unit),
		Category: trimPtr(req.Category),
		Checked:  req.Checked,
	}

	item, err := s.items.UpdateManualItem(ctx, userID, id, upd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("shopping item not found")
	}
	if err != nil {
		return nil, apperr.Store("update shopping item", err)
	}

	dto := toItemDTO(item)
	return &dto, nil
}

// DeleteManual removes a manual item.
func (s *Service) DeleteManual(ctx context.Context, userID, id string) error {
	if err := s.checkManual(ctx, userID, id); err != nil {
		return err
	}

	deleted, err := s.items.DeleteManualItem(ctx, userID, id)
	if err != nil {
		return apperr.Store("delete shopping item", err)
	}
	if !deleted {
		return apperr.NotFound("shopping item not found")
	}
	return nil
}

// ToggleChecked flips the checked flag of a manual item.
func (s *Service) ToggleChecked(ctx context.Context, userID, id string) (*ItemDTO, error) {
	if err := s.checkManual(ctx, userID, id); err != nil {
		return nil, err
	}

	item, err := s.items.ToggleManualItem(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("shopping item not found")
	}
	if err != nil {
		return nil, apperr.Store("toggle shopping item", err)
	}

	dto := toItemDTO(item)
	return &dto, nil
}

// RetractByDish removes every generated item of the user for dishID,
// whichever scheduled meal produced it.
func (s *Service) RetractByDish(ctx context.Context, userID, dishID string) (int, error) {
	dishID = strings.TrimSpace(dishID)
	if dishID == "" {
		return 0, apperr.Validation("dish_id is required")
	}

	count, err := s.items.DeleteItemsByDish(ctx, userID, dishID)
	if err != nil {
		return 0, apperr.Store("retract dish items", err)
	}
	return count, nil
}

// ClearChecked removes checked manual items.
func (s *Service) ClearChecked(ctx context.Context, userID string) (int, error) {
	count, err := s.items.DeleteCheckedItems(ctx, userID)
	if err != nil {
		return 0, apperr.Store("clear checked items", err)
	}
	return count, nil
}

// reconcileAttempts bounds retries when meals with unloaded dishes appear
// between the catalog prefetch and the rebuild.
const reconcileAttempts = 3

type dishEntry struct {
	dish  storage.Dish
	lines []storage.CompositionLine
	ok    bool
}

// unloadedDishes lists dish IDs the rebuild met without a catalog entry.
type unloadedDishes []string

func (u unloadedDishes) Error() string {
	return "dishes not loaded: " + strings.Join(u, ", ")
}

// Reconcile rebuilds every meal-linked generated item of the user from the
// current catalog. Items added without a scheduled meal are left alone.
// The meal list and the item swap are read and written under one store
// transaction, so meals scheduled or removed meanwhile stay consistent.
func (s *Service) Reconcile(ctx context.Context, userID string) (*ReconcileResponse, error) {
	meals, err := s.plans.ListMeals(ctx, userID, "0001-01-01", "9999-12-31")
	if err != nil {
		return nil, apperr.Store("list meals", err)
	}
	pending := make([]string, 0, len(meals))
	for _, meal := range meals {
		pending = append(pending, meal.DishID)
	}

	dishes := make(map[string]dishEntry)
	for attempt := 1; ; attempt++ {
		if err := s.loadDishes(ctx, dishes, pending); err != nil {
			return nil, err
		}

		result, err := s.items.ReplaceMealItems(ctx, userID, func(meals []storage.ScheduledMeal) ([]storage.ShoppingItem, error) {
			return rebuildMealItems(meals, dishes)
		})
		var missing unloadedDishes
		if errors.As(err, &missing) && attempt < reconcileAttempts {
			pending = missing
			continue
		}
		if err != nil {
			return nil, apperr.Store("replace meal items", err)
		}

		log.Printf("INFO reconcile: user=%s meals=%d removed=%d inserted=%d",
			userID, result.Meals, result.Removed, result.Inserted)
		return &ReconcileResponse{Removed: result.Removed, Inserted: result.Inserted}, nil
	}
}

func (s *Service) loadDishes(ctx context.Context, dishes map[string]dishEntry, ids []string) error {
	for _, id := range ids {
		if _, seen := dishes[id]; seen {
			continue
		}
		dish, err := s.catalog.GetDish(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Printf("WARN reconcile: dish %s no longer in catalog", id)
			dishes[id] = dishEntry{}
			continue
		case err != nil:
			return apperr.Store("get dish", err)
		}
		lines, err := s.catalog.ListComposition(ctx, id)
		if err != nil {
			return apperr.Store("list composition", err)
		}
		dishes[id] = dishEntry{dish: dish, lines: lines, ok: true}
	}
	return nil
}

// rebuildMealItems materializes meals from preloaded dishes. Meals whose dish
// left the catalog get no items.
func rebuildMealItems(meals []storage.ScheduledMeal, dishes map[string]dishEntry) ([]storage.ShoppingItem, error) {
	var (
		rebuilt []storage.ShoppingItem
		missing unloadedDishes
	)
	for _, meal := range meals {
		entry, seen := dishes[meal.DishID]
		if !seen {
			if !slices.Contains(missing, meal.DishID) {
				missing = append(missing, meal.DishID)
			}
			continue
		}
		if !entry.ok {
			continue
		}

		mealID := meal.ID
		for _, item := range Materialize(entry.dish, entry.lines, meal.Servings) {
			item.UserID = meal.UserID
			item.MealPlanID = &mealID
			rebuilt = append(rebuilt, item)
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return rebuilt, nil
}

func toItemDTO(item storage.ShoppingItem) ItemDTO {
	return ItemDTO{
		ID:         item.ID,
		Name:       item.Name,
		Quantity:   item.Quantity.InexactFloat64(),
		Unit:       item.Unit,
		Category:   item.Category,
		Checked:    item.Checked,
		DishID:     item.DishID,
		DishName:   item.DishName,
		MealPlanID: item.MealPlanID,
		Generated:  item.IsGenerated(),
		Editable:   !item.IsGenerated(),
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
