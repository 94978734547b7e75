// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/yuki/nourish/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.UserProfile, identity *model.Identity) error

	// UpdateProfile はプロフィールの編集可能フィールドを更新する。
	// 派生値キャッシュ（BMR, TDEE, DailyCaloricGoal）も同時に保存する。
	UpdateProfile(ctx context.Context, user *model.UserProfile) error

	// UpdateDerived は派生値キャッシュのみを更新する。
	// 読み取り時の再計算でドリフトを検出した場合の機会的な書き戻しに使用する。
	UpdateDerived(ctx context.Context, userID string, bmr, tdee, dailyCaloricGoal int) error

	// ListIDs は全ユーザーのIDを返す。整合ワーカーの巡回に使用する。
	ListIDs(ctx context.Context) ([]string, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、meals、weight_entries、chat_logsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// MealRepository は食事記録の永続化インターフェース。
type MealRepository interface {
	// Create は食事と全材料を同一トランザクションで作成する。
	// 材料の挿入に失敗した場合は食事本体もロールバックされる。
	Create(ctx context.Context, meal *model.Meal) error

	// FindByID は指定IDの食事を材料付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Meal, error)

	// ListByUserAndDate は指定ユーザー・指定日の食事一覧を材料付きで返す。
	// 作成日時の昇順で返す。
	ListByUserAndDate(ctx context.Context, userID, date string) ([]*model.Meal, error)

	// ListByUser は指定ユーザーの全食事を材料付きで返す。
	// 整合ワーカーの集計値ドリフト検査に使用する。
	ListByUser(ctx context.Context, userID string) ([]*model.Meal, error)

	// ListDatesByUser は指定ユーザーが食事を記録した暦日の一覧を返す（重複なし）。
	// ストリーク計算に使用する。
	ListDatesByUser(ctx context.Context, userID string) ([]string, error)

	// Update は指定ユーザーが所有する食事と材料を同一トランザクションで更新する。
	// 材料は全置換する。食事が存在しないか別ユーザーの所有の場合はfalseを返す。
	Update(ctx context.Context, meal *model.Meal) (bool, error)

	// UpdateTotals は食事の集計値キャッシュを更新する。
	// ドリフト検出時の書き戻しに使用する。
	UpdateTotals(ctx context.Context, mealID string, calories, protein, carbs, fat float64) error

	// Delete は指定ユーザーが所有する食事を削除する。材料はCASCADE削除される。
	// 食事が存在しないか別ユーザーの所有の場合はfalseを返す。
	Delete(ctx context.Context, userID, mealID string) (bool, error)
}

// WeightRepository は体重記録の永続化インターフェース。
type WeightRepository interface {
	// Upsert は体重記録を作成する。同一ユーザー・同一日付の既存記録は上書きされる。
	Upsert(ctx context.Context, entry *model.WeightEntry) error

	// ListByUser は指定ユーザーの体重記録を日付の昇順で返す。
	// fromとtoはYYYY-MM-DD形式の日付で、空文字列の場合はその側の範囲制限を行わない。
	ListByUser(ctx context.Context, userID, from, to string) ([]*model.WeightEntry, error)
}

// ChatLogRepository はAIチャットログの永続化インターフェース。
type ChatLogRepository interface {
	// Create はチャットログを作成し、採番されたIDをlog.IDに設定する。
	Create(ctx context.Context, log *model.ChatLog) error

	// ListByUser は指定ユーザーのチャットログを新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ChatLog, error)

	// DeleteOlderThan は指定期間より古いチャットログを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
