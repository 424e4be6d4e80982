// Package catalog loads the dish and ingredient catalog from a TOML file and
// serves read-only dish lookups.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fdg312/meal-hub/internal/storage"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// ErrNoSeedFile is returned by LoadFile when the path does not exist.
var ErrNoSeedFile = errors.New("catalog seed file not found")

// File is the on-disk catalog format.
type File struct {
	Ingredients []IngredientEntry `toml:"ingredients"`
	Dishes      []DishEntry       `toml:"dishes"`
}

type IngredientEntry struct {
	ID       string  `toml:"id"`
	Name     string  `toml:"name"`
	Unit     string  `toml:"unit"`
	Category string  `toml:"category"`
	Stock    float64 `toml:"stock"`
}

type DishEntry struct {
	ID          string      `toml:"id"`
	Name        string      `toml:"name"`
	Category    string      `toml:"category"`
	Description string      `toml:"description"`
	PrepMinutes int         `toml:"prep_minutes"`
	CookMinutes int         `toml:"cook_minutes"`
	Ingredients []LineEntry `toml:"ingredients"`
}

type LineEntry struct {
	Ingredient string  `toml:"ingredient"`
	Quantity   float64 `toml:"quantity"`
	Unit       string  `toml:"unit"`
}

// Snapshot is a validated catalog ready to be seeded.
type Snapshot struct {
	Ingredients []storage.Ingredient
	Dishes      []storage.Dish
}

// LoadFile reads and parses a TOML catalog file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSeedFile
		}
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog TOML.
func Parse(data []byte) (*Snapshot, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return f.Snapshot()
}

// Snapshot validates f and converts it to storage records.
func (f File) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Ingredients: make([]storage.Ingredient, 0, len(f.Ingredients)),
		Dishes:      make([]storage.Dish, 0, len(f.Dishes)),
	}

	ingredients := make(map[string]bool, len(f.Ingredients))
	for i, ing := range f.Ingredients {
		if ing.ID == "" || ing.Name == "" {
			return nil, fmt.Errorf("ingredients[%d]: id and name are required", i)
		}
		if ingredients[ing.ID] {
			return nil, fmt.Errorf("ingredients[%d]: duplicate id %q", i, ing.ID)
		}
		if ing.Stock < 0 {
			return nil, fmt.Errorf("ingredient %q: stock must be >= 0", ing.ID)
		}
		ingredients[ing.ID] = true
		snap.Ingredients = append(snap.Ingredients, storage.Ingredient{
			ID:       ing.ID,
			Name:     ing.Name,
			Unit:     ing.Unit,
			Category: ing.Category,
			Stock:    decimal.NewFromFloat(ing.Stock),
		})
	}

	dishes := make(map[string]bool, len(f.Dishes))
	for i, d := range f.Dishes {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("dishes[%d]: id and name are required", i)
		}
		if dishes[d.ID] {
			return nil, fmt.Errorf("dishes[%d]: duplicate id %q", i, d.ID)
		}
		dishes[d.ID] = true

		dish := storage.Dish{
			ID:          d.ID,
			Name:        d.Name,
			Category:    d.Category,
			Description: d.Description,
			PrepMinutes: d.PrepMinutes,
			CookMinutes: d.CookMinutes,
			Composition: make([]storage.CompositionLine, 0, len(d.Ingredients)),
		}
		for j, line := range d.Ingredients {
			if !ingredients[line.Ingredient] {
				return nil, fmt.Errorf("dish %q line %d: unknown ingredient %q", d.ID, j, line.Ingredient)
			}
			if line.Quantity <= 0 {
				return nil, fmt.Errorf("dish %q line %d: quantity must be > 0", d.ID, j)
			}
			dish.Composition = append(dish.Composition, storage.CompositionLine{
				IngredientID: line.Ingredient,
				Quantity:     decimal.NewFromFloat(line.Quantity),
				Unit:         line.Unit,
			})
		}
		snap.Dishes = append(snap.Dishes, dish)
	}

	return snap, nil
}

// Apply seeds the snapshot into store.
func Apply(ctx context.Context, store storage.CatalogStorage, snap *Snapshot) error {
	if err := store.SeedCatalog(ctx, snap.Ingredients, snap.Dishes); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	return nil
}
