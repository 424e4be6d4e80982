package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fdg312/meal-hub/internal/storage"
)

// CatalogMemoryStorage: in-memory каталог блюд и ингредиентов
type CatalogMemoryStorage struct {
	mu          sync.RWMutex
	ingredients map[string]storage.Ingredient
	dishes      map[string]storage.Dish
	composition map[string][]storage.CompositionLine // key: dish_id
}

func NewCatalogMemoryStorage() *CatalogMemoryStorage {
	return &CatalogMemoryStorage{
		ingredients: make(map[string]storage.Ingredient),
		dishes:      make(map[string]storage.Dish),
		composition: make(map[string][]storage.CompositionLine),
	}
}

func (s *CatalogMemoryStorage) ListDishes(ctx context.Context) ([]storage.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dishes := make([]storage.Dish, 0, len(s.dishes))
	for _, d := range s.dishes {
		dishes = append(dishes, d)
	}
	sort.Slice(dishes, func(i, j int) bool {
		a, b := strings.ToLower(dishes[i].Name), strings.ToLower(dishes[j].Name)
		if a != b {
			return a < b
		}
		return dishes[i].ID < dishes[j].ID
	})
	return dishes, nil
}

func (s *CatalogMemoryStorage) GetDish(ctx context.Context, id string) (storage.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dishes[id]
	if !ok {
		return storage.Dish{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *CatalogMemoryStorage) ListComposition(ctx context.Context, dishID string) ([]storage.CompositionLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dishes[dishID]; !ok {
		return nil, storage.ErrNotFound
	}
	lines := s.composition[dishID]
	out := make([]storage.CompositionLine, len(lines))
	copy(out, lines)
	return out, nil
}

// SeedCatalog upserts the snapshot. Dishes present in the snapshot get their
// composition replaced; other dishes are left untouched.
func (s *CatalogMemoryStorage) SeedCatalog(ctx context.Context, ingredients []storage.Ingredient, dishes []storage.Dish) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]storage.Ingredient, len(s.ingredients)+len(ingredients))
	for id, ing := range s.ingredients {
		known[id] = ing
	}
	for _, ing := range ingredients {
		known[ing.ID] = ing
	}

	resolved := make(map[string][]storage.CompositionLine, len(dishes))
	for _, d := range dishes {
		lines := make([]storage.CompositionLine, 0, len(d.Composition))
		for _, line := range d.Composition {
			ing, ok := known[line.IngredientID]
			if !ok {
				return &storage.UnknownIngredientError{DishID: d.ID, IngredientID: line.IngredientID}
			}
			line.IngredientName = ing.Name
			line.Category = ing.Category
			if line.Unit == "" {
				line.Unit = ing.Unit
			}
			lines = append(lines, line)
		}
		resolved[d.ID] = lines
	}

	s.ingredients = known
	for _, d := range dishes {
		stored := d
		stored.Composition = nil
		s.dishes[d.ID] = stored
		s.composition[d.ID] = resolved[d.ID]
	}
	return nil
}

// dishLabel returns the dish name and category used to join meal reads.
func (s *CatalogMemoryStorage) dishLabel(id string) (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dishes[id]
	if !ok {
		return "", ""
	}
	return d.Name, d.Category
}
