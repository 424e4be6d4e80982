package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

type exportsStore struct {
	db *sql.DB
}

func (s *exportsStore) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	if export.ID == "" {
		export.ID = uuid.New().String()
	}
	export.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (id, user_id, format, object_key, item_count, size_bytes, status, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		export.ID, export.UserID, export.Format, export.ObjectKey, export.ItemCount,
		export.SizeBytes, export.Status, export.Data, formatTime(export.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlstore: create export: %w", err)
	}
	return nil
}

func (s *exportsStore) GetExport(ctx context.Context, userID string, id string) (*storage.ExportMeta, error) {
	var (
		e       storage.ExportMeta
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, format, object_key, item_count, size_bytes, status, data, created_at
		FROM exports WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&e.ID, &e.UserID, &e.Format, &e.ObjectKey, &e.ItemCount, &e.SizeBytes, &e.Status, &e.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get export: %w", err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *exportsStore) ListExports(ctx context.Context, userID string, limit, offset int) ([]storage.ExportMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, format, object_key, item_count, size_bytes, status, created_at
		FROM exports WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list exports: %w", err)
	}
	defer rows.Close()

	exports := []storage.ExportMeta{}
	for rows.Next() {
		var (
			e       storage.ExportMeta
			created string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Format, &e.ObjectKey, &e.ItemCount, &e.SizeBytes, &e.Status, &created); err != nil {
			return nil, fmt.Errorf("sqlstore: scan export: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

func (s *exportsStore) DeleteExport(ctx context.Context, userID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
