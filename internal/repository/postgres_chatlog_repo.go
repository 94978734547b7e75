package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yuki/nourish/internal/model"
)

// PostgresChatLogRepo はPostgreSQLを使用したチャットログリポジトリ。
type PostgresChatLogRepo struct {
	db *sql.DB
}

// NewPostgresChatLogRepo はPostgresChatLogRepoを生成する。
func NewPostgresChatLogRepo(db *sql.DB) *PostgresChatLogRepo {
	return &PostgresChatLogRepo{db: db}
}

// Create はチャットログを作成し、採番されたIDをlog.IDに設定する。
func (r *PostgresChatLogRepo) Create(ctx context.Context, log *model.ChatLog) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_logs (user_id, message_user, message_bot, context, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		log.UserID, log.MessageUser, log.MessageBot, log.Context, log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create chat log: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーのチャットログを新しい順に最大limit件返す。
func (r *PostgresChatLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ChatLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message_user, message_bot, context, created_at
		 FROM chat_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.ChatLog
	for rows.Next() {
		log := &model.ChatLog{}
		if err := rows.Scan(&log.ID, &log.UserID, &log.MessageUser, &log.MessageBot,
			&log.Context, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat logs: %w", err)
	}

	return logs, nil
}

// DeleteOlderThan は指定期間より古いチャットログを削除し、削除件数を返す。
func (r *PostgresChatLogRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old chat logs: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ ChatLogRepository = (*PostgresChatLogRepo)(nil)
