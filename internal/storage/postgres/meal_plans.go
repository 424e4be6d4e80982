package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// plannerStorage serves both meal plans and shopping items so that a meal and
// its generated items always share one transaction.
type plannerStorage struct {
	pool *pgxpool.Pool
}

func newPlannerStorage(pool *pgxpool.Pool) *plannerStorage {
	return &plannerStorage{pool: pool}
}

func (s *plannerStorage) ScheduleMeal(ctx context.Context, meal storage.ScheduledMeal, generated []storage.ShoppingItem) (storage.ScheduledMeal, []storage.ShoppingItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	mealQuery := `
		INSERT INTO meal_plans (user_id, date, slot, dish_id, servings, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`
	err = tx.QueryRow(ctx, mealQuery,
		meal.UserID,
		meal.Date,
		meal.Slot,
		meal.DishID,
		meal.Servings,
		meal.Notes,
	).Scan(&meal.ID, &meal.CreatedAt)
	if err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("failed to insert meal: %w", err)
	}

	err = tx.QueryRow(ctx, `SELECT name, category FROM dishes WHERE id = $1`, meal.DishID).
		Scan(&meal.DishName, &meal.DishCategory)
	if err != nil && err != pgx.ErrNoRows {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("failed to join dish: %w", err)
	}

	mealID := meal.ID
	created := make([]storage.ShoppingItem, 0, len(generated))
	for _, item := range generated {
		item.UserID = meal.UserID
		item.MealPlanID = &mealID
		inserted, err := insertItem(ctx, tx, item)
		if err != nil {
			return storage.ScheduledMeal{}, nil, err
		}
		created = append(created, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return meal, created, nil
}

func (s *plannerStorage) UnscheduleMeal(ctx context.Context, userID string, mealID string) (storage.MealRemoval, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Items go first so the count is reported; the FK cascade would drop them anyway.
	itemsTag, err := tx.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND meal_plan_id::text = $2
	`, userID, mealID)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to retract items: %w", err)
	}

	mealTag, err := tx.Exec(ctx, `
		DELETE FROM meal_plans
		WHERE user_id = $1 AND id::text = $2
	`, userID, mealID)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to delete meal: %w", err)
	}

	if mealTag.RowsAffected() == 0 {
		return storage.MealRemoval{}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return storage.MealRemoval{
		Meals:          int(mealTag.RowsAffected()),
		RetractedItems: int(itemsTag.RowsAffected()),
	}, nil
}

func (s *plannerStorage) ListMeals(ctx context.Context, userID string, from, to string) ([]storage.ScheduledMeal, error) {
	query := `
		SELECT m.id::text, m.user_id, m.date::text, m.slot, m.dish_id,
		       COALESCE(d.name, ''), COALESCE(d.category, ''), m.servings, m.notes, m.created_at
		FROM meal_plans m
		LEFT JOIN dishes d ON d.id = m.dish_id
		WHERE m.user_id = $1 AND m.date BETWEEN $2 AND $3
		ORDER BY m.date,
		         CASE m.slot WHEN 'morning' THEN 0 WHEN 'lunch' THEN 1 WHEN 'snack' THEN 2 WHEN 'dinner' THEN 3 ELSE 4 END,
		         m.created_at
	`

	rows, err := s.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	meals := []storage.ScheduledMeal{}
	for rows.Next() {
		var m storage.ScheduledMeal
		err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.Date,
			&m.Slot,
			&m.DishID,
			&m.DishName,
			&m.DishCategory,
			&m.Servings,
			&m.Notes,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}

	return meals, nil
}

func (s *plannerStorage) ClearRange(ctx context.Context, userID string, from, to string) (storage.MealRemoval, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	itemsTag, err := tx.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND meal_plan_id IN (
			SELECT id FROM meal_plans WHERE user_id = $1 AND date BETWEEN $2 AND $3
		)
	`, userID, from, to)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to retract items: %w", err)
	}

	mealTag, err := tx.Exec(ctx, `
		DELETE FROM meal_plans
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
	`, userID, from, to)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to clear meals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.MealRemoval{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return storage.MealRemoval{
		Meals:          int(mealTag.RowsAffected()),
		RetractedItems: int(itemsTag.RowsAffected()),
	}, nil
}
