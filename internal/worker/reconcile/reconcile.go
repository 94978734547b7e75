// Package reconcile は派生値キャッシュの整合ワーカーを提供する。
// 全ユーザーを巡回してプロフィールの派生値（BMR, TDEE, DailyCaloricGoal）と
// 食事の集計値を再計算し、保存値とのドリフトを修復する。
// 読み取り経路の機会的な書き戻しから漏れたドリフトのセーフティネット。
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yuki/nourish/internal/metabolic"
	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/repository"
)

// MetricsRecorder はドリフト修復の計測インターフェース。
type MetricsRecorder interface {
	// RecordDriftRepaired は修復したドリフトを記録する。
	// kindは"derived"または"meal_totals"。
	RecordDriftRepaired(kind string)
}

// Worker は派生値の整合ワーカー。
// 定期ティッカーで全ユーザーを巡回し、semaphoreパターンで
// 最大並列数を制御しながらドリフトを修復する。
type Worker struct {
	userRepo       repository.UserRepository
	mealRepo       repository.MealRepository
	logger         *slog.Logger
	metrics        MetricsRecorder
	maxConcurrency int
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
// metricsはnilを許容する。
func NewWorker(
	userRepo repository.UserRepository,
	mealRepo repository.MealRepository,
	logger *slog.Logger,
	metrics MetricsRecorder,
	maxConcurrency int,
) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Worker{
		userRepo:       userRepo,
		mealRepo:       mealRepo,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーで整合ワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("整合ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("整合サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("整合ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("整合サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ユーザーを1回巡回し、並列でドリフトを修復する。
// semaphoreパターンで最大並列数を制御する。
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()

	userIDs, err := w.userRepo.ListIDs(ctx)
	if err != nil {
		return err
	}

	if len(userIDs) == 0 {
		w.logger.Info("整合対象のユーザーはいません")
		return nil
	}

	w.logger.Info("整合サイクルを開始します",
		slog.Int("user_count", len(userIDs)),
	)

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := w.reconcileUser(ctx, id); err != nil {
				w.logger.Error("ユーザーの整合処理に失敗しました",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
			}
		}(userID)
	}

	wg.Wait()

	duration := time.Since(start)
	w.logger.Info("整合サイクルが完了しました",
		slog.Int("user_count", len(userIDs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// reconcileUser は1ユーザー分の派生値と食事集計値のドリフトを修復する。
func (w *Worker) reconcileUser(ctx context.Context, userID string) error {
	user, err := w.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		// 巡回中に退会したユーザーはスキップ
		return nil
	}

	derived := metabolic.Compute(user)
	if derived.Differs(user) {
		if err := w.userRepo.UpdateDerived(ctx, userID, derived.BMR, derived.TDEE, derived.DailyCaloricGoal); err != nil {
			return err
		}
		w.logger.Info("派生値ドリフトを修復しました",
			slog.String("user_id", userID),
			slog.Int("bmr", derived.BMR),
			slog.Int("tdee", derived.TDEE),
			slog.Int("daily_caloric_goal", derived.DailyCaloricGoal),
		)
		if w.metrics != nil {
			w.metrics.RecordDriftRepaired("derived")
		}
	}

	meals, err := w.mealRepo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, meal := range meals {
		if err := w.reconcileMeal(ctx, meal); err != nil {
			return err
		}
	}

	return nil
}

// reconcileMeal は1件の食事の集計値ドリフトを修復する。
func (w *Worker) reconcileMeal(ctx context.Context, meal *model.Meal) error {
	storedCal, storedProtein, storedCarbs, storedFat :=
		meal.TotalCalories, meal.TotalProtein, meal.TotalCarbs, meal.TotalFat
	meal.RecomputeTotals()

	if meal.TotalCalories == storedCal && meal.TotalProtein == storedProtein &&
		meal.TotalCarbs == storedCarbs && meal.TotalFat == storedFat {
		return nil
	}

	if err := w.mealRepo.UpdateTotals(ctx, meal.ID,
		meal.TotalCalories, meal.TotalProtein, meal.TotalCarbs, meal.TotalFat); err != nil {
		return err
	}

	w.logger.Info("食事集計値ドリフトを修復しました",
		slog.String("meal_id", meal.ID),
	)
	if w.metrics != nil {
		w.metrics.RecordDriftRepaired("meal_totals")
	}

	return nil
}
