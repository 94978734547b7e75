package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yuki/nourish/internal/model"
)

// PostgresMealRepo はPostgreSQLを使用した食事リポジトリ。
type PostgresMealRepo struct {
	db *sql.DB
}

// NewPostgresMealRepo はPostgresMealRepoを生成する。
func NewPostgresMealRepo(db *sql.DB) *PostgresMealRepo {
	return &PostgresMealRepo{db: db}
}

// Create は食事と全材料を同一トランザクションで作成する。
// 材料の挿入に失敗した場合は食事本体もロールバックされる。
func (r *PostgresMealRepo) Create(ctx context.Context, meal *model.Meal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, date, meal_type, name,
			total_calories, total_protein, total_carbs, total_fat, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		meal.ID, meal.UserID, meal.Date, meal.MealType, meal.Name,
		meal.TotalCalories, meal.TotalProtein, meal.TotalCarbs, meal.TotalFat,
		meal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	for _, ing := range meal.Ingredients {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO meal_ingredients (id, meal_id, name, quantity, calories, protein, carbs, fats)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ing.ID, meal.ID, ing.Name, ing.Quantity, ing.Calories, ing.Protein, ing.Carbs, ing.Fats,
		)
		if err != nil {
			return fmt.Errorf("failed to insert meal ingredient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDの食事を材料付きで取得する。見つからない場合はnilを返す。
func (r *PostgresMealRepo) FindByID(ctx context.Context, id string) (*model.Meal, error) {
	meal := &model.Meal{}
	var date time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, meal_type, name,
			total_calories, total_protein, total_carbs, total_fat, created_at
		 FROM meals WHERE id = $1`,
		id,
	).Scan(&meal.ID, &meal.UserID, &date, &meal.MealType, &meal.Name,
		&meal.TotalCalories, &meal.TotalProtein, &meal.TotalCarbs, &meal.TotalFat,
		&meal.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find meal by ID: %w", err)
	}
	meal.Date = date.Format(model.DateLayout)

	if err := r.attachIngredients(ctx, []*model.Meal{meal}); err != nil {
		return nil, err
	}

	return meal, nil
}

// ListByUserAndDate は指定ユーザー・指定日の食事一覧を材料付きで返す。
func (r *PostgresMealRepo) ListByUserAndDate(ctx context.Context, userID, date string) ([]*model.Meal, error) {
	return r.list(ctx,
		`SELECT id, user_id, date, meal_type, name,
			total_calories, total_protein, total_carbs, total_fat, created_at
		 FROM meals WHERE user_id = $1 AND date = $2 ORDER BY created_at`,
		userID, date)
}

// ListByUser は指定ユーザーの全食事を材料付きで返す。
func (r *PostgresMealRepo) ListByUser(ctx context.Context, userID string) ([]*model.Meal, error) {
	return r.list(ctx,
		`SELECT id, user_id, date, meal_type, name,
			total_calories, total_protein, total_carbs, total_fat, created_at
		 FROM meals WHERE user_id = $1 ORDER BY date, created_at`,
		userID)
}

func (r *PostgresMealRepo) list(ctx context.Context, query string, args ...any) ([]*model.Meal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	var meals []*model.Meal
	for rows.Next() {
		meal := &model.Meal{}
		var date time.Time
		if err := rows.Scan(&meal.ID, &meal.UserID, &date, &meal.MealType, &meal.Name,
			&meal.TotalCalories, &meal.TotalProtein, &meal.TotalCarbs, &meal.TotalFat,
			&meal.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meal.Date = date.Format(model.DateLayout)
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	if err := r.attachIngredients(ctx, meals); err != nil {
		return nil, err
	}

	return meals, nil
}

// attachIngredients は食事一覧に材料を紐付ける。
// N+1を避けるため、対象の食事IDをまとめて1クエリで取得する。
func (r *PostgresMealRepo) attachIngredients(ctx context.Context, meals []*model.Meal) error {
	if len(meals) == 0 {
		return nil
	}

	byID := make(map[string]*model.Meal, len(meals))
	ids := make([]string, 0, len(meals))
	for _, m := range meals {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, meal_id, name, quantity, calories, protein, carbs, fats
		 FROM meal_ingredients WHERE meal_id = ANY($1::uuid[]) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list meal ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing model.MealIngredient
		if err := rows.Scan(&ing.ID, &ing.MealID, &ing.Name, &ing.Quantity,
			&ing.Calories, &ing.Protein, &ing.Carbs, &ing.Fats); err != nil {
			return fmt.Errorf("failed to scan meal ingredient: %w", err)
		}
		if meal, ok := byID[ing.MealID]; ok {
			meal.Ingredients = append(meal.Ingredients, ing)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate meal ingredients: %w", err)
	}

	return nil
}

// ListDatesByUser は指定ユーザーが食事を記録した暦日の一覧を返す（重複なし）。
func (r *PostgresMealRepo) ListDatesByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM meals WHERE user_id = $1 ORDER BY date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan meal date: %w", err)
		}
		dates = append(dates, date.Format(model.DateLayout))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meal dates: %w", err)
	}

	return dates, nil
}

// Update は指定ユーザーが所有する食事と材料を同一トランザクションで更新する。
// 材料は全削除してから挿入し直す（全置換）。
// 食事が存在しないか別ユーザーの所有の場合はfalseを返す。
func (r *PostgresMealRepo) Update(ctx context.Context, meal *model.Meal) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE meals SET date = $3, meal_type = $4, name = $5,
			total_calories = $6, total_protein = $7, total_carbs = $8, total_fat = $9
		 WHERE id = $1 AND user_id = $2`,
		meal.ID, meal.UserID, meal.Date, meal.MealType, meal.Name,
		meal.TotalCalories, meal.TotalProtein, meal.TotalCarbs, meal.TotalFat,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update meal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM meal_ingredients WHERE meal_id = $1`,
		meal.ID,
	); err != nil {
		return false, fmt.Errorf("failed to delete meal ingredients: %w", err)
	}

	for _, ing := range meal.Ingredients {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO meal_ingredients (id, meal_id, name, quantity, calories, protein, carbs, fats)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ing.ID, meal.ID, ing.Name, ing.Quantity, ing.Calories, ing.Protein, ing.Carbs, ing.Fats,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert meal ingredient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// UpdateTotals は食事の集計値キャッシュを更新する。
func (r *PostgresMealRepo) UpdateTotals(ctx context.Context, mealID string, calories, protein, carbs, fat float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE meals SET total_calories = $2, total_protein = $3, total_carbs = $4, total_fat = $5
		 WHERE id = $1`,
		mealID, calories, protein, carbs, fat,
	)
	if err != nil {
		return fmt.Errorf("failed to update meal totals: %w", err)
	}
	return nil
}

// Delete は指定ユーザーが所有する食事を削除する。
// 食事が存在しないか別ユーザーの所有の場合はfalseを返す。
func (r *PostgresMealRepo) Delete(ctx context.Context, userID, mealID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM meals WHERE id = $1 AND user_id = $2`,
		mealID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete meal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ MealRepository = (*PostgresMealRepo)(nil)
