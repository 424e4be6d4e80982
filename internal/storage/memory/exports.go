package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

// ExportsMemoryStorage: in-memory storage для выгрузок списка покупок
type ExportsMemoryStorage struct {
	mu      sync.RWMutex
	exports map[string]*storage.ExportMeta
}

// NewExportsMemoryStorage создаёт новое in-memory хранилище
func NewExportsMemoryStorage() *ExportsMemoryStorage {
	return &ExportsMemoryStorage{
		exports: make(map[string]*storage.ExportMeta),
	}
}

func (s *ExportsMemoryStorage) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if export.ID == "" {
		export.ID = uuid.New().String()
	}
	export.CreatedAt = time.Now().UTC()

	stored := *export
	s.exports[export.ID] = &stored
	return nil
}

func (s *ExportsMemoryStorage) GetExport(ctx context.Context, userID string, id string) (*storage.ExportMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export, exists := s.exports[id]
	if !exists || export.UserID != userID {
		return nil, storage.ErrNotFound
	}

	out := *export
	return &out, nil
}

// ListExports возвращает выгрузки пользователя, новые первыми
func (s *ExportsMemoryStorage) ListExports(ctx context.Context, userID string, limit, offset int) ([]storage.ExportMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []storage.ExportMeta
	for _, e := range s.exports {
		if e.UserID == userID {
			filtered = append(filtered, *e)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := offset
	if start > len(filtered) {
		return []storage.ExportMeta{}, nil
	}

	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end], nil
}

func (s *ExportsMemoryStorage) DeleteExport(ctx context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	export, exists := s.exports[id]
	if !exists || export.UserID != userID {
		return storage.ErrNotFound
	}

	delete(s.exports, id)
	return nil
}
