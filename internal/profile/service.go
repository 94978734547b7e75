// Package profile はユーザープロフィール管理のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuki/nourish/internal/metabolic"
	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/repository"
	"github.com/yuki/nourish/internal/security"
)

// 入力値のバリデーション上限。現実的にありえない値を弾く。
const (
	maxAge              = 120
	maxHeightCm         = 300
	maxWeightKg         = 500
	maxWeeklyWeightGoal = 2.0 // kg/週
)

// UpdateInput はプロフィール更新の入力値。
type UpdateInput struct {
	Username             string
	Age                  int
	Gender               model.Gender
	HeightCm             float64
	WeightKg             float64
	GoalWeightKg         float64
	WeeklyWeightGainGoal float64
	ActivityLevel        model.ActivityLevel
	AvgStepsPerDay       int
	TherapyStyle         model.TherapyStyle
	TherapistDescription string
	FearFoods            []string
}

// Service はプロフィール管理のサービス層。
// 派生値（BMR, TDEE, DailyCaloricGoal）のキャッシュ管理と
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
	}
}

// Get はプロフィールを取得する。
// 保存されている派生値はキャッシュに過ぎないため、読み取り時に毎回再計算し、
// ドリフトを検出した場合は機会的に書き戻す（書き戻し失敗は読み取りを妨げない）。
func (s *Service) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	derived := metabolic.Compute(user)
	if derived.Differs(user) {
		if err := s.userRepo.UpdateDerived(ctx, userID, derived.BMR, derived.TDEE, derived.DailyCaloricGoal); err != nil {
			slog.Warn("派生値キャッシュの書き戻しに失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	user.BMR = derived.BMR
	user.TDEE = derived.TDEE
	user.DailyCaloricGoal = derived.DailyCaloricGoal

	return user, nil
}

// Update はプロフィールを更新する。
// 入力値を検証・サニタイズし、派生値を再計算してキャッシュごと保存する。
func (s *Service) Update(ctx context.Context, userID string, input UpdateInput) (*model.UserProfile, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	user.Username = s.sanitizer.Sanitize(input.Username)
	user.Age = input.Age
	user.Gender = input.Gender
	user.HeightCm = input.HeightCm
	user.WeightKg = input.WeightKg
	user.GoalWeightKg = input.GoalWeightKg
	user.WeeklyWeightGainGoal = input.WeeklyWeightGainGoal
	user.ActivityLevel = input.ActivityLevel
	user.AvgStepsPerDay = input.AvgStepsPerDay
	// 未指定の場合は保存済みのスタイルを維持する（初期値はACT）
	if input.TherapyStyle != "" {
		user.TherapyStyle = input.TherapyStyle
	}
	user.TherapistDescription = s.sanitizer.Sanitize(input.TherapistDescription)
	user.FearFoods = s.sanitizeFearFoods(input.FearFoods)

	derived := metabolic.Compute(user)
	user.BMR = derived.BMR
	user.TDEE = derived.TDEE
	user.DailyCaloricGoal = derived.DailyCaloricGoal

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", userID),
		slog.Int("bmr", user.BMR),
		slog.Int("tdee", user.TDEE),
		slog.Int("daily_caloric_goal", user.DailyCaloricGoal),
	)

	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities, meals, weight_entries, chat_logs）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// validateInput はプロフィール更新の入力値を検証する。
// 各数値フィールドは0（未設定）を許容する。
func validateInput(input UpdateInput) error {
	if input.TherapyStyle != "" && !model.IsValidTherapyStyle(input.TherapyStyle) {
		return model.NewInvalidTherapyStyleError(string(input.TherapyStyle))
	}
	if input.Age < 0 || input.Age > maxAge {
		return model.NewInvalidProfileError(fmt.Sprintf("年齢が範囲外です: %d", input.Age))
	}
	if input.Gender != "" && input.Gender != model.GenderMale && input.Gender != model.GenderFemale {
		return model.NewInvalidProfileError(fmt.Sprintf("性別が不正です: %s", input.Gender))
	}
	if input.HeightCm < 0 || input.HeightCm > maxHeightCm {
		return model.NewInvalidProfileError(fmt.Sprintf("身長が範囲外です: %v", input.HeightCm))
	}
	if input.WeightKg < 0 || input.WeightKg > maxWeightKg {
		return model.NewInvalidProfileError(fmt.Sprintf("体重が範囲外です: %v", input.WeightKg))
	}
	if input.GoalWeightKg < 0 || input.GoalWeightKg > maxWeightKg {
		return model.NewInvalidProfileError(fmt.Sprintf("目標体重が範囲外です: %v", input.GoalWeightKg))
	}
	if input.WeeklyWeightGainGoal < -maxWeeklyWeightGoal || input.WeeklyWeightGainGoal > maxWeeklyWeightGoal {
		return model.NewInvalidProfileError(fmt.Sprintf("週間体重変化目標が範囲外です: %v", input.WeeklyWeightGainGoal))
	}
	if input.ActivityLevel != "" {
		switch input.ActivityLevel {
		case model.ActivitySedentary, model.ActivityLight, model.ActivityModerate,
			model.ActivityVery, model.ActivityExtreme:
		default:
			return model.NewInvalidProfileError(fmt.Sprintf("活動レベルが不正です: %s", input.ActivityLevel))
		}
	}
	if input.AvgStepsPerDay < 0 {
		return model.NewInvalidProfileError(fmt.Sprintf("歩数が範囲外です: %d", input.AvgStepsPerDay))
	}
	return nil
}

// sanitizeFearFoods は苦手食品リストの各要素をサニタイズし、空要素を除外する。
func (s *Service) sanitizeFearFoods(foods []string) []string {
	cleaned := make([]string, 0, len(foods))
	for _, f := range foods {
		f = s.sanitizer.Sanitize(f)
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	return cleaned
}
