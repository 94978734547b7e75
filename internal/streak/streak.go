// Package streak は連続記録日数（ストリーク）の計算を提供する。
// 「今日から過去に向かって、1食以上記録された暦日が何日連続しているか」を
// 純粋関数として計算する。
package streak

import (
	"time"

	"github.com/yuki/nourish/internal/model"
)

// maxLookbackDays はストリーク計算の遡り上限。計算コストを有界にする。
const maxLookbackDays = 365

// Count は食事記録のある暦日（YYYY-MM-DD文字列）の集合から、
// todayを起点に過去へ向かって連続している日数を返す。
// today自体に記録がない場合は0を返す（今日の分を記録するまで今日は数えない）。
// 不正な形式の日付文字列は無視される。
func Count(mealDates []string, today time.Time) int {
	if len(mealDates) == 0 {
		return 0
	}

	// 重複を除去して暦日の集合を構築
	dateSet := make(map[string]struct{}, len(mealDates))
	for _, d := range mealDates {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			continue
		}
		dateSet[d] = struct{}{}
	}

	count := 0
	for offset := 0; offset < maxLookbackDays; offset++ {
		day := today.AddDate(0, 0, -offset).Format(model.DateLayout)
		if _, ok := dateSet[day]; !ok {
			break
		}
		count++
	}

	return count
}
