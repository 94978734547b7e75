package handler

import (
	"github.com/yuki/nourish/internal/auth"
	"github.com/yuki/nourish/internal/chat"
	"github.com/yuki/nourish/internal/encourage"
	"github.com/yuki/nourish/internal/foodsearch"
	"github.com/yuki/nourish/internal/meal"
	"github.com/yuki/nourish/internal/profile"
	"github.com/yuki/nourish/internal/weight"
)

// 各サービスはハンドラー側インターフェースを直接満たす。
// シグネチャの不一致をコンパイル時に検出するためのチェック。

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ ProfileServiceInterface = (*profile.Service)(nil)
var _ MealServiceInterface = (*meal.Service)(nil)
var _ WeightServiceInterface = (*weight.Service)(nil)
var _ ChatServiceInterface = (*chat.Service)(nil)
var _ DailyEncourager = (*encourage.Composer)(nil)
var _ FoodSearchInterface = (*foodsearch.Client)(nil)
