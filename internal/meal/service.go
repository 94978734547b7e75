// Package meal は食事記録のドメインロジックを提供する。
// 栄養推定・保存・日次集計・ストリーク計算を担う。
package meal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yuki/nourish/internal/metabolic"
	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/repository"
	"github.com/yuki/nourish/internal/security"
	"github.com/yuki/nourish/internal/streak"
)

// NutritionEstimator は食事説明文からの栄養推定インターフェース。
type NutritionEstimator interface {
	// Estimate は栄養価を推定する。2番目の戻り値はフォールバックを使ったかを示す。
	Estimate(ctx context.Context, description string) (model.NutritionEstimate, bool)
}

// Celebrator は食事記録直後のお祝いメッセージ生成インターフェース。
type Celebrator interface {
	MealCelebration(ctx context.Context, meal *model.Meal) string
}

// IngredientInput は食事保存の材料入力値。
type IngredientInput struct {
	Name     string
	Quantity string
	Calories float64
	Protein  float64
	Carbs    float64
	Fats     float64
}

// SaveInput は食事保存の入力値。
type SaveInput struct {
	Date        string
	MealType    string
	Name        string
	Ingredients []IngredientInput
}

// DayStats は1日分の栄養集計とストリークを表す。
type DayStats struct {
	Date             string
	TotalCalories    float64
	TotalProtein     float64
	TotalCarbs       float64
	TotalFat         float64
	DailyCaloricGoal int
	MealCount        int
	Streak           int
}

// Service は食事記録のサービス層。
type Service struct {
	mealRepo   repository.MealRepository
	userRepo   repository.UserRepository
	estimator  NutritionEstimator
	celebrator Celebrator
	sanitizer  security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
// celebratorはnilを許容する（その場合お祝いメッセージは空文字列になる）。
func NewService(
	mealRepo repository.MealRepository,
	userRepo repository.UserRepository,
	estimator NutritionEstimator,
	celebrator Celebrator,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		mealRepo:   mealRepo,
		userRepo:   userRepo,
		estimator:  estimator,
		celebrator: celebrator,
		sanitizer:  sanitizer,
	}
}

// Analyze は食事の説明文から栄養価を推定する。
// 説明文はサニタイズされ、空の場合はエラーを返す。
// 2番目の戻り値はフォールバック推定を使ったかを示す。
func (s *Service) Analyze(ctx context.Context, description string) (model.NutritionEstimate, bool, error) {
	description = s.sanitizer.Sanitize(description)
	if description == "" {
		return model.NutritionEstimate{}, false, model.NewEmptyDescriptionError()
	}

	est, usedFallback := s.estimator.Estimate(ctx, description)
	return est, usedFallback, nil
}

// Save は食事と材料を検証・サニタイズして同一トランザクションで保存し、
// 記録を祝う励ましメッセージとともに返す。
// 集計値は材料から計算し、クライアントから受け取らない。
func (s *Service) Save(ctx context.Context, userID string, input SaveInput) (*model.Meal, string, error) {
	meal, err := s.buildMeal(userID, uuid.NewString(), input)
	if err != nil {
		return nil, "", err
	}
	meal.CreatedAt = time.Now().UTC()

	if err := s.mealRepo.Create(ctx, meal); err != nil {
		return nil, "", fmt.Errorf("食事の保存に失敗しました: %w", err)
	}

	slog.Info("食事を記録しました",
		slog.String("user_id", userID),
		slog.String("meal_id", meal.ID),
		slog.String("date", meal.Date),
		slog.String("meal_type", meal.MealType),
		slog.Float64("total_calories", meal.TotalCalories),
	)

	encouragement := ""
	if s.celebrator != nil {
		encouragement = s.celebrator.MealCelebration(ctx, meal)
	}

	return meal, encouragement, nil
}

// Update は指定ユーザーが所有する食事を編集する。
// 材料は全置換され、集計値は新しい材料から再計算される。
// 食事が存在しないか別ユーザーの所有の場合はエラーを返す。
func (s *Service) Update(ctx context.Context, userID, mealID string, input SaveInput) (*model.Meal, error) {
	existing, err := s.mealRepo.FindByID(ctx, mealID)
	if err != nil {
		return nil, fmt.Errorf("食事の取得に失敗しました: %w", err)
	}
	if existing == nil || existing.UserID != userID {
		return nil, model.NewMealNotFoundError(mealID)
	}

	meal, err := s.buildMeal(userID, mealID, input)
	if err != nil {
		return nil, err
	}
	meal.CreatedAt = existing.CreatedAt

	updated, err := s.mealRepo.Update(ctx, meal)
	if err != nil {
		return nil, fmt.Errorf("食事の更新に失敗しました: %w", err)
	}
	if !updated {
		return nil, model.NewMealNotFoundError(mealID)
	}

	slog.Info("食事を更新しました",
		slog.String("user_id", userID),
		slog.String("meal_id", mealID),
		slog.String("date", meal.Date),
		slog.Float64("total_calories", meal.TotalCalories),
	)

	return meal, nil
}

// buildMeal は入力値を検証・サニタイズして食事エンティティを組み立てる。
// 集計値は材料から計算する。CreatedAtは呼び出し側が設定する。
func (s *Service) buildMeal(userID, mealID string, input SaveInput) (*model.Meal, error) {
	mealType := s.sanitizer.Sanitize(input.MealType)
	if mealType == "" {
		return nil, model.NewMissingMealTypeError()
	}
	if _, err := time.Parse(model.DateLayout, input.Date); err != nil {
		return nil, model.NewInvalidDateError(input.Date)
	}
	if len(input.Ingredients) == 0 {
		return nil, model.NewMissingIngredientsError()
	}

	meal := &model.Meal{
		ID:       mealID,
		UserID:   userID,
		Date:     input.Date,
		MealType: mealType,
		Name:     s.sanitizer.Sanitize(input.Name),
	}
	for _, in := range input.Ingredients {
		name := s.sanitizer.Sanitize(in.Name)
		if name == "" {
			return nil, model.NewMissingIngredientsError()
		}
		meal.Ingredients = append(meal.Ingredients, model.MealIngredient{
			ID:       uuid.NewString(),
			MealID:   mealID,
			Name:     name,
			Quantity: s.sanitizer.Sanitize(in.Quantity),
			Calories: in.Calories,
			Protein:  in.Protein,
			Carbs:    in.Carbs,
			Fats:     in.Fats,
		})
	}
	meal.RecomputeTotals()

	return meal, nil
}

// ListByDate は指定日の食事一覧を返す。
// 集計値は材料から再計算され、保存値とのドリフトを検出した場合は
// 機会的に書き戻す（書き戻し失敗は読み取りを妨げない）。
func (s *Service) ListByDate(ctx context.Context, userID, date string) ([]*model.Meal, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, model.NewInvalidDateError(date)
	}

	meals, err := s.mealRepo.ListByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("食事一覧の取得に失敗しました: %w", err)
	}

	for _, m := range meals {
		s.recomputeAndRepair(ctx, m)
	}

	return meals, nil
}

// Delete は指定ユーザーが所有する食事を削除する。材料もCASCADE削除される。
// 食事が存在しないか別ユーザーの所有の場合はエラーを返す。
func (s *Service) Delete(ctx context.Context, userID, mealID string) error {
	deleted, err := s.mealRepo.Delete(ctx, userID, mealID)
	if err != nil {
		return fmt.Errorf("食事の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewMealNotFoundError(mealID)
	}

	slog.Info("食事を削除しました",
		slog.String("user_id", userID),
		slog.String("meal_id", mealID),
	)

	return nil
}

// TodayStats は当日の栄養集計・目標カロリー・記録ストリークを返す。
// 目標カロリーはプロフィールから再計算した値を使用する。
func (s *Service) TodayStats(ctx context.Context, userID string, now time.Time) (*DayStats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	today := now.Format(model.DateLayout)
	meals, err := s.mealRepo.ListByUserAndDate(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("食事一覧の取得に失敗しました: %w", err)
	}

	stats := &DayStats{
		Date:             today,
		DailyCaloricGoal: metabolic.DailyCaloricGoal(user),
		MealCount:        len(meals),
	}
	for _, m := range meals {
		s.recomputeAndRepair(ctx, m)
		stats.TotalCalories += m.TotalCalories
		stats.TotalProtein += m.TotalProtein
		stats.TotalCarbs += m.TotalCarbs
		stats.TotalFat += m.TotalFat
	}

	dates, err := s.mealRepo.ListDatesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("記録日一覧の取得に失敗しました: %w", err)
	}
	stats.Streak = streak.Count(dates, now)

	return stats, nil
}

// recomputeAndRepair は食事の集計値を材料から再計算し、
// 保存値とのドリフトを検出した場合は機会的に書き戻す。
func (s *Service) recomputeAndRepair(ctx context.Context, m *model.Meal) {
	storedCal, storedProtein, storedCarbs, storedFat := m.TotalCalories, m.TotalProtein, m.TotalCarbs, m.TotalFat
	m.RecomputeTotals()

	if m.TotalCalories == storedCal && m.TotalProtein == storedProtein &&
		m.TotalCarbs == storedCarbs && m.TotalFat == storedFat {
		return
	}

	if err := s.mealRepo.UpdateTotals(ctx, m.ID, m.TotalCalories, m.TotalProtein, m.TotalCarbs, m.TotalFat); err != nil {
		slog.Warn("食事集計値の書き戻しに失敗しました",
			slog.String("meal_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
