// Package weight は体重記録のドメインロジックを提供する。
package weight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/repository"
)

// maxWeightKg は体重の妥当性検証の上限。
const maxWeightKg = 500

// Service は体重記録のサービス層。
type Service struct {
	weightRepo repository.WeightRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(weightRepo repository.WeightRepository) *Service {
	return &Service{weightRepo: weightRepo}
}

// Record は体重を記録する。同一日付の既存記録は上書きされる。
func (s *Service) Record(ctx context.Context, userID, date string, weightKg float64) (*model.WeightEntry, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, model.NewInvalidDateError(date)
	}
	if weightKg <= 0 || weightKg > maxWeightKg {
		return nil, model.NewInvalidWeightError()
	}

	entry := &model.WeightEntry{
		UserID:    userID,
		Date:      date,
		WeightKg:  weightKg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.weightRepo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("体重の記録に失敗しました: %w", err)
	}

	slog.Info("体重を記録しました",
		slog.String("user_id", userID),
		slog.String("date", date),
		slog.Float64("weight_kg", weightKg),
	)

	return entry, nil
}

// History は体重記録の履歴を日付の昇順で返す。
// fromとtoが指定された場合はその日付範囲に絞り込む（空文字列は無制限）。
func (s *Service) History(ctx context.Context, userID, from, to string) ([]*model.WeightEntry, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return nil, model.NewInvalidDateError(d)
		}
	}

	entries, err := s.weightRepo.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("体重履歴の取得に失敗しました: %w", err)
	}
	return entries, nil
}
