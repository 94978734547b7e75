package metabolic

import (
	"testing"

	"github.com/yuki/nourish/internal/model"
)

// BMRが男性のMifflin-St Jeor式に一致することを検証
func TestBMR_Male(t *testing.T) {
	p := &model.UserProfile{
		Gender:   model.GenderMale,
		Age:      30,
		WeightKg: 70,
		HeightCm: 175,
	}

	// round(10*70 + 6.25*175 - 5*30 + 5) = round(1648.75) = 1649
	got := BMR(p)
	if got != 1649 {
		t.Errorf("BMR = %d, want 1649", got)
	}
}

// BMRが女性のMifflin-St Jeor式に一致することを検証
func TestBMR_Female(t *testing.T) {
	p := &model.UserProfile{
		Gender:   model.GenderFemale,
		Age:      30,
		WeightKg: 70,
		HeightCm: 175,
	}

	// round(10*70 + 6.25*175 - 5*30 - 161) = round(1482.75) = 1483
	got := BMR(p)
	if got != 1483 {
		t.Errorf("BMR = %d, want 1483", got)
	}
}

// 性別が不正・未設定の場合に全派生値が0になることを検証
func TestCompute_MissingGender_AllZero(t *testing.T) {
	cases := []struct {
		name   string
		gender model.Gender
	}{
		{"empty", ""},
		{"unknown", "other"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &model.UserProfile{
				Gender:         tc.gender,
				Age:            30,
				WeightKg:       70,
				HeightCm:       175,
				ActivityLevel:  model.ActivityModerate,
				AvgStepsPerDay: 8000,
			}

			d := Compute(p)
			if d.BMR != 0 || d.TDEE != 0 || d.DailyCaloricGoal != 0 {
				t.Errorf("Compute = %+v, want all zero", d)
			}
		})
	}
}

// 必須項目が欠けている場合にBMRが0になることを検証
func TestBMR_MissingBiometrics_ReturnsZero(t *testing.T) {
	cases := []struct {
		name    string
		profile model.UserProfile
	}{
		{"no age", model.UserProfile{Gender: model.GenderMale, WeightKg: 70, HeightCm: 175}},
		{"no weight", model.UserProfile{Gender: model.GenderMale, Age: 30, HeightCm: 175}},
		{"no height", model.UserProfile{Gender: model.GenderMale, Age: 30, WeightKg: 70}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BMR(&tc.profile); got != 0 {
				t.Errorf("BMR = %d, want 0", got)
			}
		})
	}
}

// nilプロフィールでパニックせず0を返すことを検証
func TestBMR_NilProfile_ReturnsZero(t *testing.T) {
	if got := BMR(nil); got != 0 {
		t.Errorf("BMR(nil) = %d, want 0", got)
	}
}

// TDEEがBMR×乗数+歩数×0.03の式に一致することを検証
func TestTDEE_Formula(t *testing.T) {
	p := &model.UserProfile{
		Gender:         model.GenderMale,
		Age:            30,
		WeightKg:       70,
		HeightCm:       175,
		ActivityLevel:  model.ActivityModerate,
		AvgStepsPerDay: 8000,
	}

	// BMR = 1649, TDEE = round(1649*1.55 + 8000*0.03) = round(2555.95 + 240) = 2796
	got := TDEE(p)
	if got != 2796 {
		t.Errorf("TDEE = %d, want 2796", got)
	}
}

// 活動レベルごとの乗数を検証
func TestTDEE_ActivityMultipliers(t *testing.T) {
	base := model.UserProfile{
		Gender:   model.GenderMale,
		Age:      30,
		WeightKg: 70,
		HeightCm: 175,
	}

	cases := []struct {
		level      model.ActivityLevel
		multiplier float64
	}{
		{model.ActivitySedentary, 1.2},
		{model.ActivityLight, 1.375},
		{model.ActivityModerate, 1.55},
		{model.ActivityVery, 1.725},
		{model.ActivityExtreme, 1.9},
		{"", 1.2},        // 未設定はデフォルト1.2
		{"unknown", 1.2}, // 未知の値もデフォルト1.2
	}

	for _, tc := range cases {
		t.Run(string(tc.level), func(t *testing.T) {
			p := base
			p.ActivityLevel = tc.level

			want := round(1649 * tc.multiplier)
			if got := TDEE(&p); got != want {
				t.Errorf("TDEE = %d, want %d", got, want)
			}
		})
	}
}

// 歩数を増やすとTDEEが単調増加することを検証
func TestTDEE_MonotonicInSteps(t *testing.T) {
	p := model.UserProfile{
		Gender:        model.GenderMale,
		Age:           30,
		WeightKg:      70,
		HeightCm:      175,
		ActivityLevel: model.ActivitySedentary,
	}

	prev := TDEE(&p)
	for _, steps := range []int{1000, 5000, 10000, 20000} {
		p.AvgStepsPerDay = steps
		cur := TDEE(&p)
		if cur <= prev {
			t.Errorf("TDEE with %d steps = %d, want > %d", steps, cur, prev)
		}
		prev = cur
	}
}

// 歩数補正が活動レベルに関わらず一律に適用されることを検証
func TestTDEE_StepAdjustmentUniform(t *testing.T) {
	for _, level := range []model.ActivityLevel{
		model.ActivitySedentary, model.ActivityExtreme,
	} {
		p := model.UserProfile{
			Gender:        model.GenderMale,
			Age:           30,
			WeightKg:      70,
			HeightCm:      175,
			ActivityLevel: level,
		}

		without := TDEE(&p)
		p.AvgStepsPerDay = 10000
		with := TDEE(&p)

		// 10000歩 × 0.03 = 300kcal の加算
		if with-without != 300 {
			t.Errorf("level %s: step adjustment = %d, want 300", level, with-without)
		}
	}
}

// 増量目標が正のサープラスになることを検証
func TestDailyCaloricGoal_GainGoal(t *testing.T) {
	p := &model.UserProfile{
		Gender:               model.GenderMale,
		Age:                  30,
		WeightKg:             70,
		HeightCm:             175,
		ActivityLevel:        model.ActivitySedentary,
		WeeklyWeightGainGoal: 0.5,
	}

	tdee := TDEE(p)
	// round(0.5 * 7700 / 7) = 550
	want := tdee + 550
	if got := DailyCaloricGoal(p); got != want {
		t.Errorf("DailyCaloricGoal = %d, want %d", got, want)
	}
}

// 減量目標（負の週間目標）で目標カロリーがTDEEを下回ることを検証
func TestDailyCaloricGoal_LossGoal_BelowTDEE(t *testing.T) {
	p := &model.UserProfile{
		Gender:               model.GenderFemale,
		Age:                  25,
		WeightKg:             55,
		HeightCm:             165,
		ActivityLevel:        model.ActivityModerate,
		WeeklyWeightGainGoal: -0.25,
	}

	tdee := TDEE(p)
	goal := DailyCaloricGoal(p)
	if goal >= tdee {
		t.Errorf("DailyCaloricGoal = %d, want < TDEE %d", goal, tdee)
	}
}

// 週間目標が未設定の場合に目標カロリーがTDEEと等しいことを検証
func TestDailyCaloricGoal_NoGoal_EqualsTDEE(t *testing.T) {
	p := &model.UserProfile{
		Gender:        model.GenderMale,
		Age:           30,
		WeightKg:      70,
		HeightCm:      175,
		ActivityLevel: model.ActivityLight,
	}

	if got, want := DailyCaloricGoal(p), TDEE(p); got != want {
		t.Errorf("DailyCaloricGoal = %d, want %d", got, want)
	}
}

// エンドツーエンドのシナリオ検証:
// 女性 25歳 165cm 55kg 中程度の活動 6000歩 週+0.25kg目標
func TestCompute_EndToEndScenario(t *testing.T) {
	p := &model.UserProfile{
		Gender:               model.GenderFemale,
		Age:                  25,
		HeightCm:             165,
		WeightKg:             55,
		ActivityLevel:        model.ActivityModerate,
		AvgStepsPerDay:       6000,
		WeeklyWeightGainGoal: 0.25,
	}

	d := Compute(p)

	// BMR = round(550 + 1031.25 - 125 - 161) = round(1295.25) = 1295
	if d.BMR != 1295 {
		t.Errorf("BMR = %d, want 1295", d.BMR)
	}
	// TDEE = round(1295*1.55 + 6000*0.03) = round(2007.25 + 180) = 2187
	if d.TDEE != 2187 {
		t.Errorf("TDEE = %d, want 2187", d.TDEE)
	}
	// goal = 2187 + round(0.25*7700/7) = 2187 + 275 = 2462
	if d.DailyCaloricGoal != 2462 {
		t.Errorf("DailyCaloricGoal = %d, want 2462", d.DailyCaloricGoal)
	}
}

// Differsがキャッシュとの差分を正しく検出することを検証
func TestDerived_Differs(t *testing.T) {
	p := &model.UserProfile{
		Gender:        model.GenderMale,
		Age:           30,
		WeightKg:      70,
		HeightCm:      175,
		ActivityLevel: model.ActivitySedentary,
	}

	d := Compute(p)
	if !d.Differs(p) {
		t.Error("expected Differs to be true for profile with zero cached values")
	}

	p.BMR = d.BMR
	p.TDEE = d.TDEE
	p.DailyCaloricGoal = d.DailyCaloricGoal
	if d.Differs(p) {
		t.Error("expected Differs to be false after cache update")
	}
}
