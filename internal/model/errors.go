// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, nutrition, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeMealNotFound        = "MEAL_NOT_FOUND"
	ErrCodeEmptyDescription    = "EMPTY_DESCRIPTION"
	ErrCodeMissingMealType     = "MISSING_MEAL_TYPE"
	ErrCodeMissingIngredients  = "MISSING_INGREDIENTS"
	ErrCodeInvalidDate         = "INVALID_DATE"
	ErrCodeInvalidWeight       = "INVALID_WEIGHT"
	ErrCodeInvalidTherapyStyle = "INVALID_THERAPY_STYLE"
	ErrCodeInvalidProfile      = "INVALID_PROFILE"
	ErrCodeEmptyChatMessage    = "EMPTY_CHAT_MESSAGE"
	ErrCodeFoodSearchFailed    = "FOOD_SEARCH_FAILED"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewMealNotFoundError は食事記録が見つからない場合のエラーを生成する。
func NewMealNotFoundError(mealID string) *APIError {
	return &APIError{
		Code:     ErrCodeMealNotFound,
		Message:  fmt.Sprintf("指定された食事記録が見つかりません: %s", mealID),
		Category: "validation",
		Action:   "食事記録のIDを確認してください。",
	}
}

// NewEmptyDescriptionError は食事の説明文が空の場合のエラーを生成する。
func NewEmptyDescriptionError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyDescription,
		Message:  "食事の説明が入力されていません。",
		Category: "validation",
		Action:   "何を食べたか説明を入力してください。",
	}
}

// NewMissingMealTypeError は食事タイプが未指定の場合のエラーを生成する。
func NewMissingMealTypeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingMealType,
		Message:  "食事タイプが指定されていません。",
		Category: "validation",
		Action:   "朝食・昼食・夕食・間食のいずれかを選択してください。",
	}
}

// NewMissingIngredientsError は材料が1件もない食事を保存しようとした場合のエラーを生成する。
func NewMissingIngredientsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingIngredients,
		Message:  "材料が1件も含まれていません。",
		Category: "validation",
		Action:   "少なくとも1つの材料を追加してから保存してください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付形式です: %s", date),
		Category: "validation",
		Action:   "日付はYYYY-MM-DD形式で指定してください。",
	}
}

// NewInvalidWeightError は体重の値が不正な場合のエラーを生成する。
func NewInvalidWeightError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWeight,
		Message:  "体重の値が不正です。",
		Category: "validation",
		Action:   "体重は0より大きい数値（kg）で入力してください。",
	}
}

// NewInvalidTherapyStyleError はセラピースタイルが不正な場合のエラーを生成する。
func NewInvalidTherapyStyleError(style string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTherapyStyle,
		Message:  fmt.Sprintf("無効なセラピースタイルです: %s", style),
		Category: "validation",
		Action:   "ACT、CBT、DBTのいずれかを指定してください。",
	}
}

// NewInvalidProfileError はプロフィール入力が不正な場合のエラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力値を確認してください。",
	}
}

// NewEmptyChatMessageError はチャットメッセージが空の場合のエラーを生成する。
func NewEmptyChatMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyChatMessage,
		Message:  "メッセージが入力されていません。",
		Category: "validation",
		Action:   "メッセージを入力してください。",
	}
}

// NewFoodSearchFailedError は食品データベース検索が失敗した場合のエラーを生成する。
func NewFoodSearchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFoodSearchFailed,
		Message:  "食品データベースの検索に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
