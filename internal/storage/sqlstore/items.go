package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

const itemColumns = `id, user_id, name, quantity, unit, category, is_checked,
	dish_id, dish_name, meal_plan_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanItem(row rowScanner) (storage.ShoppingItem, error) {
	var (
		item             storage.ShoppingItem
		created, updated string
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.Quantity, &item.Unit, &item.Category,
		&item.Checked, &item.DishID, &item.DishName, &item.MealPlanID, &created, &updated)
	if err != nil {
		return storage.ShoppingItem{}, err
	}
	if item.CreatedAt, err = parseTime(created); err != nil {
		return storage.ShoppingItem{}, err
	}
	if item.UpdatedAt, err = parseTime(updated); err != nil {
		return storage.ShoppingItem{}, err
	}
	return item, nil
}

func insertItem(ctx context.Context, db execer, item storage.ShoppingItem, now time.Time) (storage.ShoppingItem, error) {
	item.ID = uuid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO shopping_list_items (id, user_id, name, quantity, unit, category, is_checked,
			dish_id, dish_name, meal_plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Name, item.Quantity.String(), item.Unit, item.Category, item.Checked,
		item.DishID, item.DishName, item.MealPlanID, formatTime(now), formatTime(now))
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: insert shopping item: %w", err)
	}
	return item, nil
}

func (s *plannerStore) InsertItem(ctx context.Context, item storage.ShoppingItem) (storage.ShoppingItem, error) {
	return insertItem(ctx, s.db, item, time.Now().UTC())
}

func (s *plannerStore) GetItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items WHERE user_id = ? AND id = ?`, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: get shopping item: %w", err)
	}
	return item, nil
}

// UpdateManualItem reads the row back inside the transaction; MySQL reports
// zero affected rows for no-op updates, so RowsAffected cannot be trusted.
// The read holds a row lock on MySQL until commit.
func (s *plannerStore) UpdateManualItem(ctx context.Context, userID string, id string, upd storage.ShoppingItemUpdate) (storage.ShoppingItem, error) {
	return s.mutateManual(ctx, userID, id, func(item *storage.ShoppingItem) {
		if upd.Name != nil {
			item.Name = *upd.Name
		}
		if upd.Quantity != nil {
			item.Quantity = *upd.Quantity
		}
		if upd.Unit != nil {
			item.Unit = *upd.Unit
		}
		if upd.Category != nil {
			item.Category = *upd.Category
		}
		if upd.Checked != nil {
			item.Checked = *upd.Checked
		}
	})
}

// ToggleManualItem flips the flag in SQL so concurrent toggles never collapse
// into one.
func (s *plannerStore) ToggleManualItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		UPDATE shopping_list_items
		SET is_checked = NOT is_checked, updated_at = ?
		WHERE user_id = ? AND id = ? AND dish_id IS NULL`,
		formatTime(time.Now().UTC()), userID, id)
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: toggle shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items WHERE user_id = ? AND id = ?`, userID, id))
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: load shopping item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return item, nil
}

func (s *plannerStore) mutateManual(ctx context.Context, userID, id string, apply func(*storage.ShoppingItem)) (storage.ShoppingItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items WHERE user_id = ? AND id = ? AND dish_id IS NULL`+s.forUpdate,
		userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: load shopping item: %w", err)
	}

	apply(&item)
	item.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE shopping_list_items
		SET name = ?, quantity = ?, unit = ?, category = ?, is_checked = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		item.Name, item.Quantity.String(), item.Unit, item.Category, item.Checked, formatTime(item.UpdatedAt),
		userID, id); err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: update shopping item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return item, nil
}

func (s *plannerStore) DeleteManualItem(ctx context.Context, userID string, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE user_id = ? AND id = ? AND dish_id IS NULL`, userID, id)
	if err != nil {
		return false, fmt.Errorf("sqlstore: delete shopping item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *plannerStore) DeleteItemsByDish(ctx context.Context, userID string, dishID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE user_id = ? AND dish_id = ?`, userID, dishID)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: delete items by dish: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *plannerStore) DeleteCheckedItems(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE user_id = ? AND dish_id IS NULL AND is_checked = ?`, userID, true)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: delete checked items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *plannerStore) ListItems(ctx context.Context, userID string) ([]storage.ShoppingItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list shopping items: %w", err)
	}
	defer rows.Close()

	items := []storage.ShoppingItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan shopping item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReplaceMealItems lists and rebuilds inside one transaction. On MySQL the
// meal rows are read with a lock, so an unschedule waits for the rebuild.
// A meal committed after the listing keeps its items.
func (s *plannerStore) ReplaceMealItems(ctx context.Context, userID string, build storage.MealItemsBuilder) (storage.MealItemsReplacement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	meals, err := lockMeals(ctx, tx, userID, s.forUpdate)
	if err != nil {
		return storage.MealItemsReplacement{}, err
	}

	items, err := build(meals)
	if err != nil {
		return storage.MealItemsReplacement{}, err
	}

	args := []any{userID}
	listed := make(map[string]bool, len(meals))
	for _, m := range meals {
		args = append(args, m.ID)
		listed[m.ID] = true
	}
	query := `
		DELETE FROM shopping_list_items
		WHERE user_id = ? AND meal_plan_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM meal_plans m WHERE m.id = shopping_list_items.meal_plan_id)`
	if len(meals) > 0 {
		query = `
		DELETE FROM shopping_list_items
		WHERE user_id = ? AND (meal_plan_id IN (?` + strings.Repeat(", ?", len(meals)-1) + `)
		  OR (meal_plan_id IS NOT NULL
		      AND NOT EXISTS (SELECT 1 FROM meal_plans m WHERE m.id = shopping_list_items.meal_plan_id)))`
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("sqlstore: remove meal items: %w", err)
	}
	removed, _ := res.RowsAffected()

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		if item.MealPlanID == nil || !listed[*item.MealPlanID] {
			continue
		}
		item.UserID = userID
		if _, err := insertItem(ctx, tx, item, now); err != nil {
			return storage.MealItemsReplacement{}, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return storage.MealItemsReplacement{Meals: len(meals), Removed: int(removed), Inserted: inserted}, nil
}
