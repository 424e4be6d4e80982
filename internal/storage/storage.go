package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row is absent or belongs to another user.
var ErrNotFound = errors.New("not found")

// Meal slots in declaration order.
const (
	SlotMorning = "morning"
	SlotLunch   = "lunch"
	SlotSnack   = "snack"
	SlotDinner  = "dinner"
)

// Slots lists the valid meal slots in declaration order.
var Slots = []string{SlotMorning, SlotLunch, SlotSnack, SlotDinner}

// SlotOrder returns the position of slot in declaration order, or len(Slots) if unknown.
func SlotOrder(slot string) int {
	for i, s := range Slots {
		if s == slot {
			return i
		}
	}
	return len(Slots)
}

// ValidSlot reports whether slot is one of Slots.
func ValidSlot(slot string) bool {
	return SlotOrder(slot) < len(Slots)
}

// Storage bundles the feature stores of one backend (memory, postgres, sqlite, mysql).
type Storage interface {
	GetMealPlansStorage() MealPlansStorage
	GetShoppingItemsStorage() ShoppingItemsStorage
	GetCatalogStorage() CatalogStorage
	GetExportsStorage() ExportsStorage

	// Close закрывает соединение (для SQL бэкендов)
	Close() error
}

// ---------- Catalog ----------

type Ingredient struct {
	ID       string
	Name     string
	Unit     string
	Category string
	Stock    decimal.Decimal
}

type Dish struct {
	ID          string
	Name        string
	Category    string
	Description string
	PrepMinutes int
	CookMinutes int
	// Composition is only filled when seeding; reads go through ListComposition.
	Composition []CompositionLine
}

// CompositionLine is one (ingredient, quantity, unit) line of a dish.
type CompositionLine struct {
	IngredientID   string
	IngredientName string
	Quantity       decimal.Decimal
	Unit           string // falls back to the ingredient unit when empty
	Category       string // ingredient category
}

// UnknownIngredientError is returned by SeedCatalog when a composition line
// references an ingredient missing from both the snapshot and the store.
type UnknownIngredientError struct {
	DishID       string
	IngredientID string
}

func (e *UnknownIngredientError) Error() string {
	return fmt.Sprintf("dish %s references unknown ingredient %s", e.DishID, e.IngredientID)
}

// CatalogStorage is the read-only dish/ingredient lookup.
type CatalogStorage interface {
	// ListDishes returns all dishes ordered by name
	ListDishes(ctx context.Context) ([]Dish, error)
	// GetDish returns ErrNotFound for unknown ids
	GetDish(ctx context.Context, id string) (Dish, error)
	// ListComposition returns the composition lines of a dish in declared order
	ListComposition(ctx context.Context, dishID string) ([]CompositionLine, error)
	// SeedCatalog upserts ingredients and dishes (with composition) from a snapshot
	SeedCatalog(ctx context.Context, ingredients []Ingredient, dishes []Dish) error
}

// ---------- Meal plan ----------

// ScheduledMeal is "dish D is planned for user U on date Y at slot S with N servings".
type ScheduledMeal struct {
	ID           string
	UserID       string
	Date         string // YYYY-MM-DD
	Slot         string
	DishID       string
	DishName     string // joined on read
	DishCategory string // joined on read
	Servings     int
	Notes        string
	CreatedAt    time.Time
}

// MealRemoval reports what a meal deletion removed.
type MealRemoval struct {
	Meals          int
	RetractedItems int
}

// MealPlansStorage manages scheduled meals together with the generated
// shopping items they own.
type MealPlansStorage interface {
	// ScheduleMeal inserts the meal and its generated items in one transaction.
	// The store assigns ids and sets MealPlanID of every generated item to the new meal.
	ScheduleMeal(ctx context.Context, meal ScheduledMeal, generated []ShoppingItem) (ScheduledMeal, []ShoppingItem, error)
	// UnscheduleMeal deletes one meal of the user and the generated items tied to it.
	// Meals == 0 when the meal does not exist for that user.
	UnscheduleMeal(ctx context.Context, userID string, mealID string) (MealRemoval, error)
	// ListMeals returns meals in [from, to] ordered by date, slot order, creation
	ListMeals(ctx context.Context, userID string, from, to string) ([]ScheduledMeal, error)
	// ClearRange deletes every meal in [from, to] and the generated items tied to them
	ClearRange(ctx context.Context, userID string, from, to string) (MealRemoval, error)
}

// ---------- Shopping list ----------

type ShoppingItem struct {
	ID         string
	UserID     string
	Name       string
	Quantity   decimal.Decimal
	Unit       string
	Category   string
	Checked    bool
	DishID     *string // non-nil marks a generated item
	DishName   *string
	MealPlanID *string // scheduling event that produced the item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsGenerated reports whether the item was derived from a dish.
func (i ShoppingItem) IsGenerated() bool {
	return i.DishID != nil
}

// ShoppingItemUpdate holds the mutable fields of a manual item; nil means unchanged.
type ShoppingItemUpdate struct {
	Name     *string
	Quantity *decimal.Decimal
	Unit     *string
	Category *string
	Checked  *bool
}

// ShoppingItemsStorage persists shopping items. Every call is scoped to userID;
// rows of other users behave as absent.
type ShoppingItemsStorage interface {
	InsertItem(ctx context.Context, item ShoppingItem) (ShoppingItem, error)
	// GetItem returns ErrNotFound for absent or foreign items
	GetItem(ctx context.Context, userID string, id string) (ShoppingItem, error)
	// UpdateManualItem returns ErrNotFound when the item is absent, foreign or generated
	UpdateManualItem(ctx context.Context, userID string, id string, upd ShoppingItemUpdate) (ShoppingItem, error)
	// ToggleManualItem flips the checked flag of a manual item
	ToggleManualItem(ctx context.Context, userID string, id string) (ShoppingItem, error)
	// DeleteManualItem reports false when nothing manual matched
	DeleteManualItem(ctx context.Context, userID string, id string) (bool, error)
	// DeleteItemsByDish removes every generated item of the user for dishID
	DeleteItemsByDish(ctx context.Context, userID string, dishID string) (int, error)
	// DeleteCheckedItems removes checked manual items
	DeleteCheckedItems(ctx context.Context, userID string) (int, error)
	ListItems(ctx context.Context, userID string) ([]ShoppingItem, error)
	// ReplaceMealItems lists the user's scheduled meals and rebuilds their
	// generated items with build, all under one lock or transaction. Items
	// linked to meals that no longer exist are removed. A build error aborts
	// the call with nothing written.
	ReplaceMealItems(ctx context.Context, userID string, build MealItemsBuilder) (MealItemsReplacement, error)
}

// MealItemsBuilder derives generated items for meals. It runs inside the
// store's lock or transaction and must not call back into storage. Returned
// items must carry MealPlanID of one of the given meals.
type MealItemsBuilder func(meals []ScheduledMeal) ([]ShoppingItem, error)

// MealItemsReplacement reports the outcome of ReplaceMealItems.
type MealItemsReplacement struct {
	Meals    int
	Removed  int
	Inserted int
}

// ---------- Exports ----------

type ExportMeta struct {
	ID        string
	UserID    string
	Format    string  // "pdf" or "csv"
	ObjectKey *string // S3 object key (NULL for local mode)
	ItemCount int
	SizeBytes int64
	Status    string
	CreatedAt time.Time
	Data      []byte // file bytes in local mode, nil when ObjectKey is set
}

// ExportsStorage keeps shopping-list export metadata.
type ExportsStorage interface {
	CreateExport(ctx context.Context, export *ExportMeta) error
	// GetExport returns ErrNotFound for absent or foreign exports
	GetExport(ctx context.Context, userID string, id string) (*ExportMeta, error)
	ListExports(ctx context.Context, userID string, limit, offset int) ([]ExportMeta, error)
	DeleteExport(ctx context.Context, userID string, id string) error
}
