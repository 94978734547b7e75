// Package metabolic は代謝関連の派生値計算を提供する。
// BMR（Mifflin-St Jeor式）、TDEE、1日の目標カロリーを
// プロフィールから純粋関数として導出する。
// プロフィールに保存されている派生値はキャッシュに過ぎず、
// 真実の源は常にこのパッケージの計算結果である。
package metabolic

import (
	"math"

	"github.com/yuki/nourish/internal/model"
)

// kcalPerKg は体重1kgの増減に相当するカロリー（約7700kcal）。
const kcalPerKg = 7700.0

// stepCaloriesFactor は1歩あたりの消費カロリー補正係数。
// 活動レベルに関わらず歩数が記録されていれば一律に適用する。
const stepCaloriesFactor = 0.03

// Derived はプロフィールから導出される代謝派生値の組。
type Derived struct {
	BMR              int
	TDEE             int
	DailyCaloricGoal int
}

// activityMultipliers は活動レベルごとのTDEE乗数。
var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary: 1.2,
	model.ActivityLight:     1.375,
	model.ActivityModerate:  1.55,
	model.ActivityVery:      1.725,
	model.ActivityExtreme:   1.9,
}

// defaultMultiplier は活動レベルが未設定・未知の場合の乗数。
const defaultMultiplier = 1.2

// BMR はMifflin-St Jeor式で基礎代謝量を計算する。
// 男性: 10×体重 + 6.25×身長 − 5×年齢 + 5
// 女性: 10×体重 + 6.25×身長 − 5×年齢 − 161
// 性別が不明、または必須項目（年齢・身長・体重）が欠けている場合は0を返す。
func BMR(p *model.UserProfile) int {
	if p == nil || !p.HasBiometrics() {
		return 0
	}

	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)

	switch p.Gender {
	case model.GenderMale:
		return round(base + 5)
	case model.GenderFemale:
		return round(base - 161)
	default:
		return 0
	}
}

// TDEE は総消費カロリーを計算する。
// BMR × 活動レベル乗数 + 歩数×0.03。
// 歩数補正は活動レベルに関係なく歩数が正なら一律に加算する。
// BMRが0の場合は0を返す。
func TDEE(p *model.UserProfile) int {
	bmr := BMR(p)
	if bmr == 0 {
		return 0
	}

	multiplier, ok := activityMultipliers[p.ActivityLevel]
	if !ok {
		multiplier = defaultMultiplier
	}

	total := float64(bmr) * multiplier
	if p.AvgStepsPerDay > 0 {
		total += float64(p.AvgStepsPerDay) * stepCaloriesFactor
	}

	return round(total)
}

// DailyCaloricGoal は1日の目標カロリーを計算する。
// TDEE + 週間体重変化目標から導出した日次サープラス（7700kcal ≒ 体重1kg）。
// 週間目標が負（減量）の場合、目標カロリーはTDEEを下回る。
// 週間目標が未設定（0）の場合はTDEEをそのまま返す。
// TDEEが0の場合は0を返す。
func DailyCaloricGoal(p *model.UserProfile) int {
	tdee := TDEE(p)
	if tdee == 0 {
		return 0
	}

	if p.WeeklyWeightGainGoal == 0 {
		return tdee
	}

	dailySurplus := round(p.WeeklyWeightGainGoal * kcalPerKg / 7)
	return tdee + dailySurplus
}

// Compute は3つの派生値をまとめて計算する。
// プロフィールの保存・読み取り時のキャッシュ更新判定に使用する。
func Compute(p *model.UserProfile) Derived {
	return Derived{
		BMR:              BMR(p),
		TDEE:             TDEE(p),
		DailyCaloricGoal: DailyCaloricGoal(p),
	}
}

// Differs は計算結果がプロフィールにキャッシュされた派生値と異なるかを返す。
func (d Derived) Differs(p *model.UserProfile) bool {
	return d.BMR != p.BMR || d.TDEE != p.TDEE || d.DailyCaloricGoal != p.DailyCaloricGoal
}

// round は四捨五入で最近接整数に丸める。
func round(v float64) int {
	return int(math.Round(v))
}
