// Package model はドメインモデルを定義する。
package model

import "time"

// Gender は生物学的性別を表す。BMR計算（Mifflin-St Jeor式）で使用する。
type Gender string

const (
	// GenderMale は男性。
	GenderMale Gender = "male"
	// GenderFemale は女性。
	GenderFemale Gender = "female"
)

// ActivityLevel は日常の活動量レベルを表す。TDEE計算の乗数に対応する。
type ActivityLevel string

const (
	// ActivitySedentary は座りがちな生活（乗数1.2）。
	ActivitySedentary ActivityLevel = "sedentary"
	// ActivityLight は軽い活動（乗数1.375）。
	ActivityLight ActivityLevel = "lightly-active"
	// ActivityModerate は中程度の活動（乗数1.55）。
	ActivityModerate ActivityLevel = "moderately-active"
	// ActivityVery は活発な活動（乗数1.725）。
	ActivityVery ActivityLevel = "very-active"
	// ActivityExtreme は非常に活発な活動（乗数1.9）。
	ActivityExtreme ActivityLevel = "extremely-active"
)

// TherapyStyle はAIチャットの応答スタイル（セラピーペルソナ）を表す。
type TherapyStyle string

const (
	// TherapyACT はアクセプタンス＆コミットメント・セラピー。
	TherapyACT TherapyStyle = "ACT"
	// TherapyCBT は認知行動療法。
	TherapyCBT TherapyStyle = "CBT"
	// TherapyDBT は弁証法的行動療法。
	TherapyDBT TherapyStyle = "DBT"
)

// IsValidTherapyStyle はセラピースタイルが定義済みの値かどうかを判定する。
func IsValidTherapyStyle(s TherapyStyle) bool {
	switch s {
	case TherapyACT, TherapyCBT, TherapyDBT:
		return true
	default:
		return false
	}
}

// UserProfile はサービス利用ユーザーのプロフィールを表す。
// 身体情報（Age, HeightCm, WeightKg, Gender）が揃っている場合のみ
// 派生値（BMR, TDEE, DailyCaloricGoal）が意味を持つ。
// 派生値はキャッシュであり、読み取り時に毎回再計算される。
type UserProfile struct {
	UserID               string
	Email                string
	Username             string
	Age                  int
	Gender               Gender
	HeightCm             float64
	WeightKg             float64
	GoalWeightKg         float64
	WeeklyWeightGainGoal float64 // kg/週。負の値は減量目標を意味する。
	ActivityLevel        ActivityLevel
	AvgStepsPerDay       int
	TherapyStyle         TherapyStyle
	TherapistDescription string
	FearFoods            []string

	// キャッシュされた派生値。真実の源はmetabolicパッケージの再計算結果。
	BMR              int
	TDEE             int
	DailyCaloricGoal int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBiometrics はBMR計算に必要な身体情報が全て揃っているかを返す。
func (p *UserProfile) HasBiometrics() bool {
	return p.Age > 0 && p.HeightCm > 0 && p.WeightKg > 0 &&
		(p.Gender == GenderMale || p.Gender == GenderFemale)
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
