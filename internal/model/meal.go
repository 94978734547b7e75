// Package model はドメインモデルを定義する。
package model

import "time"

// DateLayout は食事・体重記録のカレンダー日付フォーマット。
// タイムスタンプではなく暦日として扱う（日次集計・ストリーク計算の単位）。
const DateLayout = "2006-01-02"

// Meal は1回の食事記録を表す。
// 集計値（TotalCalories等）は保存時点の材料合計のキャッシュであり、
// 読み取り時に材料から再計算される。
type Meal struct {
	ID            string
	UserID        string
	Date          string // DateLayout形式の暦日
	MealType      string // 例: Breakfast, Lunch, Dinner, Morning Snack
	Name          string
	TotalCalories float64
	TotalProtein  float64
	TotalCarbs    float64
	TotalFat      float64
	Ingredients   []MealIngredient
	CreatedAt     time.Time
}

// RecomputeTotals は材料の栄養値から集計値を再計算して上書きする。
// 材料が編集された後の集計ドリフトを防ぐため、読み取り経路で毎回呼び出す。
func (m *Meal) RecomputeTotals() {
	var cal, protein, carbs, fat float64
	for _, ing := range m.Ingredients {
		cal += ing.Calories
		protein += ing.Protein
		carbs += ing.Carbs
		fat += ing.Fats
	}
	m.TotalCalories = cal
	m.TotalProtein = protein
	m.TotalCarbs = carbs
	m.TotalFat = fat
}

// MealIngredient は食事を構成する1つの材料を表す。
// 食事の保存・編集と同時に作成・削除され、独立したライフサイクルを持たない。
type MealIngredient struct {
	ID       string
	MealID   string
	Name     string
	Quantity string // 自由記述（例: "2 cup", "1切れ"）
	Calories float64
	Protein  float64
	Carbs    float64
	Fats     float64
}

// NutritionEstimate はLLMによる栄養推定の結果を表す一時的な値オブジェクト。
// ユーザーが保存を確定するまで永続化されない。
type NutritionEstimate struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// WeightEntry はユーザーの1日1件の体重記録を表す。
// 同一ユーザー・同一日付にはUPSERTで上書きされる。
type WeightEntry struct {
	UserID    string
	Date      string // DateLayout形式の暦日
	WeightKg  float64
	CreatedAt time.Time
}

// ChatLog はAIチャットの1往復（ユーザー発言とボット応答）を表す。
type ChatLog struct {
	ID          int64
	UserID      string
	MessageUser string
	MessageBot  string
	Context     string // セラピースタイル等の付帯情報
	CreatedAt   time.Time
}
