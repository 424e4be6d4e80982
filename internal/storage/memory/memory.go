package memory

import (
	"github.com/fdg312/meal-hub/internal/storage"
)

// MemoryStorage: in-memory реализация storage.Storage
type MemoryStorage struct {
	catalog *CatalogMemoryStorage
	planner *PlannerMemoryStorage
	exports *ExportsMemoryStorage
}

// New создаёт пустой MemoryStorage
func New() *MemoryStorage {
	catalog := NewCatalogMemoryStorage()
	return &MemoryStorage{
		catalog: catalog,
		planner: NewPlannerMemoryStorage(catalog),
		exports: NewExportsMemoryStorage(),
	}
}

// GetMealPlansStorage returns the meal plan store.
func (m *MemoryStorage) GetMealPlansStorage() storage.MealPlansStorage {
	return m.planner
}

// GetShoppingItemsStorage returns the shopping item store. It shares its lock
// with the meal plan store so schedule and unschedule stay atomic.
func (m *MemoryStorage) GetShoppingItemsStorage() storage.ShoppingItemsStorage {
	return m.planner
}

// GetCatalogStorage returns the catalog store.
func (m *MemoryStorage) GetCatalogStorage() storage.CatalogStorage {
	return m.catalog
}

// GetExportsStorage returns the exports store.
func (m *MemoryStorage) GetExportsStorage() storage.ExportsStorage {
	return m.exports
}

func (m *MemoryStorage) Close() error {
	// no-op для memory
	return nil
}
