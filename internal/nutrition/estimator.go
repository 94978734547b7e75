// Package nutrition は食事説明文からの栄養価推定を提供する。
// LLMに食事の説明を渡してカロリー・タンパク質・炭水化物・脂質を推定し、
// 失敗時は固定のフォールバック値を返す。このパッケージはエラーを返さない。
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuki/nourish/internal/llm"
	"github.com/yuki/nourish/internal/model"
)

// フォールバック推定値。LLMが利用できない場合の一般的な1食分の値。
const (
	fallbackCalories = 650
	fallbackProtein  = 35
	fallbackCarbs    = 55
	fallbackFats     = 20
)

// 推定値の妥当性検証の上限。LLMの異常出力を弾く。
const (
	maxCalories = 10000
	maxMacro    = 1000
)

// estimateTemperature は栄養推定の生成温度。再現性重視で低めに設定する。
const estimateTemperature = 0.3

// systemPrompt は栄養推定のシステムプロンプト。
// JSONオブジェクトのみを返すよう強く制約する。
const systemPrompt = `You are a nutrition expert. Analyze the meal description and respond with ONLY a valid JSON object in this exact format: {"calories": number, "protein": number, "carbs": number, "fats": number}. Values are for the entire meal. Protein, carbs and fats are in grams. Do not include any other text, explanation, or markdown.`

// MetricsRecorder は栄養推定の計測インターフェース。
type MetricsRecorder interface {
	// RecordEstimate は推定結果を記録する。outcomeは"success"または"fallback"。
	RecordEstimate(outcome string)
}

// Estimator は食事説明文から栄養価を推定する。
type Estimator struct {
	completer llm.Completer
	logger    *slog.Logger
	maxTokens int
	metrics   MetricsRecorder
}

// NewEstimator はEstimatorの新しいインスタンスを生成する。
// metricsはnilを許容する。
func NewEstimator(completer llm.Completer, logger *slog.Logger, maxTokens int, metrics MetricsRecorder) *Estimator {
	return &Estimator{
		completer: completer,
		logger:    logger,
		maxTokens: maxTokens,
		metrics:   metrics,
	}
}

// Estimate は食事の説明文から栄養価を推定する。
// LLM呼び出し・JSON抽出・妥当性検証のいずれかに失敗した場合は
// フォールバック値を返す。2番目の戻り値はフォールバックを使ったかを示す。
// このメソッドは決してエラーを返さない（食事記録を妨げないため）。
func (e *Estimator) Estimate(ctx context.Context, description string) (model.NutritionEstimate, bool) {
	est, err := e.estimateFromModel(ctx, description)
	if err != nil {
		e.logger.Warn("栄養推定に失敗したためフォールバック値を使用します",
			slog.String("error", err.Error()),
		)
		if e.metrics != nil {
			e.metrics.RecordEstimate("fallback")
		}
		return Fallback(), true
	}

	if e.metrics != nil {
		e.metrics.RecordEstimate("success")
	}
	return est, false
}

// Fallback はフォールバック推定値を返す。
func Fallback() model.NutritionEstimate {
	return model.NutritionEstimate{
		Calories: fallbackCalories,
		Protein:  fallbackProtein,
		Carbs:    fallbackCarbs,
		Fats:     fallbackFats,
	}
}

func (e *Estimator) estimateFromModel(ctx context.Context, description string) (model.NutritionEstimate, error) {
	content, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: description},
		},
		MaxTokens:   e.maxTokens,
		Temperature: estimateTemperature,
	})
	if err != nil {
		return model.NutritionEstimate{}, err
	}

	jsonText, err := extractJSON(content)
	if err != nil {
		return model.NutritionEstimate{}, err
	}

	var payload estimatePayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return model.NutritionEstimate{}, fmt.Errorf("推定結果JSONのパースに失敗しました: %w", err)
	}

	est, err := payload.toEstimate()
	if err != nil {
		return model.NutritionEstimate{}, err
	}

	if err := validate(est); err != nil {
		return model.NutritionEstimate{}, err
	}

	return est, nil
}

// estimatePayload はLLM出力のJSONデコード用の中間表現。
// キーの欠落とゼロ値を区別するためポインタで受ける。
type estimatePayload struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fats     *float64 `json:"fats"`
}

// toEstimate は4フィールドすべての存在を検証して推定値に変換する。
func (p estimatePayload) toEstimate() (model.NutritionEstimate, error) {
	if p.Calories == nil || p.Protein == nil || p.Carbs == nil || p.Fats == nil {
		return model.NutritionEstimate{}, fmt.Errorf("推定結果JSONに必須フィールドが欠落しています")
	}
	return model.NutritionEstimate{
		Calories: *p.Calories,
		Protein:  *p.Protein,
		Carbs:    *p.Carbs,
		Fats:     *p.Fats,
	}, nil
}

// extractJSON はLLM出力から最初のJSONオブジェクトを抽出する。
// マークダウンのコードブロックや前置きテキストに包まれていても、
// 波括弧の深さを数えて最初の完全なオブジェクトを切り出す。
func extractJSON(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", fmt.Errorf("LLM出力にJSONオブジェクトが含まれていません")
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("LLM出力のJSONオブジェクトが閉じていません")
}

// validate は推定値が現実的な範囲に収まっているかを検証する。
func validate(est model.NutritionEstimate) error {
	if est.Calories <= 0 || est.Calories > maxCalories {
		return fmt.Errorf("カロリーの推定値が範囲外です: %v", est.Calories)
	}
	if est.Protein < 0 || est.Protein > maxMacro {
		return fmt.Errorf("タンパク質の推定値が範囲外です: %v", est.Protein)
	}
	if est.Carbs < 0 || est.Carbs > maxMacro {
		return fmt.Errorf("炭水化物の推定値が範囲外です: %v", est.Carbs)
	}
	if est.Fats < 0 || est.Fats > maxMacro {
		return fmt.Errorf("脂質の推定値が範囲外です: %v", est.Fats)
	}
	return nil
}
