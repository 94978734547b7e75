package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yuki/nourish/internal/model"
)

// PostgresWeightRepo はPostgreSQLを使用した体重記録リポジトリ。
type PostgresWeightRepo struct {
	db *sql.DB
}

// NewPostgresWeightRepo はPostgresWeightRepoを生成する。
func NewPostgresWeightRepo(db *sql.DB) *PostgresWeightRepo {
	return &PostgresWeightRepo{db: db}
}

// Upsert は体重記録を作成する。同一ユーザー・同一日付の既存記録は上書きされる。
func (r *PostgresWeightRepo) Upsert(ctx context.Context, entry *model.WeightEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weight_entries (user_id, date, weight_kg, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, date) DO UPDATE SET weight_kg = EXCLUDED.weight_kg`,
		entry.UserID, entry.Date, entry.WeightKg, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert weight entry: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーの体重記録を日付の昇順で返す。
// fromとtoが空でない場合は日付範囲で絞り込む。
func (r *PostgresWeightRepo) ListByUser(ctx context.Context, userID, from, to string) ([]*model.WeightEntry, error) {
	query := `SELECT user_id, date, weight_kg, created_at
		 FROM weight_entries WHERE user_id = $1`
	args := []interface{}{userID}

	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.WeightEntry
	for rows.Next() {
		entry := &model.WeightEntry{}
		var date time.Time
		if err := rows.Scan(&entry.UserID, &date, &entry.WeightKg, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight entry: %w", err)
		}
		entry.Date = date.Format(model.DateLayout)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight entries: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ WeightRepository = (*PostgresWeightRepo)(nil)
