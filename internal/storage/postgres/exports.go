package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExportsStorage: Postgres storage для выгрузок списка покупок
type PostgresExportsStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresExportsStorage создаёт новое Postgres хранилище
func NewPostgresExportsStorage(pool *pgxpool.Pool) *PostgresExportsStorage {
	return &PostgresExportsStorage{pool: pool}
}

// CreateExport сохраняет метаданные (и байты в local режиме)
func (s *PostgresExportsStorage) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	query := `
		INSERT INTO exports (id, user_id, format, object_key, item_count, size_bytes, status, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	if export.ID == "" {
		export.ID = uuid.New().String()
	}

	err := s.pool.QueryRow(ctx, query,
		export.ID,
		export.UserID,
		export.Format,
		export.ObjectKey,
		export.ItemCount,
		export.SizeBytes,
		export.Status,
		export.Data,
	).Scan(&export.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}

	return nil
}

// GetExport возвращает выгрузку пользователя по ID
func (s *PostgresExportsStorage) GetExport(ctx context.Context, userID string, id string) (*storage.ExportMeta, error) {
	query := `
		SELECT id::text, user_id, format, object_key, item_count, size_bytes, status, data, created_at
		FROM exports
		WHERE user_id = $1 AND id::text = $2
	`

	var e storage.ExportMeta
	err := s.pool.QueryRow(ctx, query, userID, id).Scan(
		&e.ID,
		&e.UserID,
		&e.Format,
		&e.ObjectKey,
		&e.ItemCount,
		&e.SizeBytes,
		&e.Status,
		&e.Data,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return &e, nil
}

// ListExports возвращает список выгрузок с пагинацией (без байтов)
func (s *PostgresExportsStorage) ListExports(ctx context.Context, userID string, limit, offset int) ([]storage.ExportMeta, error) {
	query := `
		SELECT id::text, user_id, format, object_key, item_count, size_bytes, status, created_at
		FROM exports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	exports := []storage.ExportMeta{}
	for rows.Next() {
		var e storage.ExportMeta
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Format,
			&e.ObjectKey,
			&e.ItemCount,
			&e.SizeBytes,
			&e.Status,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, e)
	}

	return exports, rows.Err()
}

// DeleteExport удаляет выгрузку
func (s *PostgresExportsStorage) DeleteExport(ctx context.Context, userID string, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM exports WHERE user_id = $1 AND id::text = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}
