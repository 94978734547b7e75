// Package cleanup は古いデータの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したチャットログと期限切れセッションを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ChatLogDeleter はチャットログの削除を抽象化するインターフェース。
type ChatLogDeleter interface {
	// DeleteOlderThan は指定期間より古いチャットログを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionDeleter は期限切れセッションの削除を抽象化するインターフェース。
type SessionDeleter interface {
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は保持期間を超過したチャットログと期限切れセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	chatLogs      ChatLogDeleter
	sessions      SessionDeleter
	logger        *slog.Logger
	RetentionDays int // チャットログの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(chatLogs ChatLogDeleter, sessions SessionDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		chatLogs:      chatLogs,
		sessions:      sessions,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したチャットログと期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	retention := time.Duration(j.RetentionDays) * 24 * time.Hour

	deletedLogs, err := j.chatLogs.DeleteOlderThan(ctx, retention)
	if err != nil {
		j.logger.Error("チャットログクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("チャットログクリーンアップの実行に失敗: %w", err)
	}

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_chat_logs", deletedLogs),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
