package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/yuki/nourish/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はSELECTで取得するカラムの並び。scanUserと対応を保つこと。
const userColumns = `id, email, username, age, gender, height_cm, weight_kg, goal_weight_kg,
	weekly_weight_gain_goal, activity_level, avg_steps_per_day, therapy_style,
	therapist_description, fear_foods, bmr, tdee, daily_caloric_goal, created_at, updated_at`

func scanUser(row *sql.Row) (*model.UserProfile, error) {
	user := &model.UserProfile{}
	var fearFoods []byte
	err := row.Scan(
		&user.UserID, &user.Email, &user.Username, &user.Age, &user.Gender,
		&user.HeightCm, &user.WeightKg, &user.GoalWeightKg,
		&user.WeeklyWeightGainGoal, &user.ActivityLevel, &user.AvgStepsPerDay,
		&user.TherapyStyle, &user.TherapistDescription, &fearFoods,
		&user.BMR, &user.TDEE, &user.DailyCaloricGoal,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fearFoods, &user.FearFoods); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fear_foods: %w", err)
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.UserProfile, identity *model.Identity) error {
	fearFoods, err := marshalFearFoods(user.FearFoods)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, username, therapy_style, fear_foods, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.UserID, user.Email, user.Username, user.TherapyStyle, fearFoods,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// identityを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateProfile はプロフィールの編集可能フィールドと派生値キャッシュを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.UserProfile) error {
	fearFoods, err := marshalFearFoods(user.FearFoods)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			username = $2, age = $3, gender = $4, height_cm = $5, weight_kg = $6,
			goal_weight_kg = $7, weekly_weight_gain_goal = $8, activity_level = $9,
			avg_steps_per_day = $10, therapy_style = $11, therapist_description = $12,
			fear_foods = $13, bmr = $14, tdee = $15, daily_caloric_goal = $16,
			updated_at = now()
		 WHERE id = $1`,
		user.UserID, user.Username, user.Age, user.Gender, user.HeightCm, user.WeightKg,
		user.GoalWeightKg, user.WeeklyWeightGainGoal, user.ActivityLevel,
		user.AvgStepsPerDay, user.TherapyStyle, user.TherapistDescription,
		fearFoods, user.BMR, user.TDEE, user.DailyCaloricGoal,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.UserID)
	}

	return nil
}

// UpdateDerived は派生値キャッシュのみを更新する。
func (r *PostgresUserRepo) UpdateDerived(ctx context.Context, userID string, bmr, tdee, dailyCaloricGoal int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET bmr = $2, tdee = $3, daily_caloric_goal = $4 WHERE id = $1`,
		userID, bmr, tdee, dailyCaloricGoal,
	)
	if err != nil {
		return fmt.Errorf("failed to update derived values: %w", err)
	}
	return nil
}

// ListIDs は全ユーザーのIDを返す。
func (r *PostgresUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user IDs: %w", err)
	}

	return ids, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連レコードはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// marshalFearFoods はフィアフード一覧をjsonbカラム用にエンコードする。
// nilスライスは空配列として保存する。
func marshalFearFoods(foods []string) ([]byte, error) {
	if foods == nil {
		foods = []string{}
	}
	data, err := json.Marshal(foods)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fear_foods: %w", err)
	}
	return data, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
