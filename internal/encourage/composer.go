// Package encourage は回復を支援する励ましメッセージの生成を提供する。
// 食事記録直後のお祝いメッセージと、1日1回の励ましメッセージの2種類を
// LLMで生成し、失敗時はテンプレートのフォールバック文を返す。
// このパッケージはエラーを返さない。
package encourage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuki/nourish/internal/llm"
	"github.com/yuki/nourish/internal/model"
)

// composeTemperature は励まし生成の温度。毎回違う表現になるよう高めに設定する。
const composeTemperature = 0.8

// systemPrompt は励まし生成のシステムプロンプト。
const systemPrompt = `You are a warm, supportive AI assistant helping someone in eating disorder recovery. Focus on the positive aspects of nourishment and self-care. Be encouraging but not overly clinical.`

// dailyPrompt は1日1回の励ましメッセージの生成プロンプト。
const dailyPrompt = `Generate a warm, encouraging message about eating and self-care for someone in eating disorder recovery. Keep it positive, supportive, and focused on nourishment. Make it unique and personal. 1-2 sentences maximum.`

// dailyFallbacks はLLMが利用できない場合の励ましメッセージ。日替わりで選択される。
var dailyFallbacks = []string{
	"Every meal you log is an act of self-care. Your body is grateful for the nourishment you give it.",
	"Recovery is built one meal at a time. You are doing the work, and that matters.",
	"Nourishing yourself today is a gift to your future self. Keep going.",
	"Your commitment to eating well is a quiet kind of courage. Be proud of it.",
	"Food is fuel, comfort, and healing. Thank you for taking care of yourself today.",
}

// Composer は励ましメッセージを生成する。
type Composer struct {
	completer llm.Completer
	logger    *slog.Logger
	maxTokens int
}

// NewComposer はComposerの新しいインスタンスを生成する。
func NewComposer(completer llm.Completer, logger *slog.Logger, maxTokens int) *Composer {
	return &Composer{
		completer: completer,
		logger:    logger,
		maxTokens: maxTokens,
	}
}

// MealCelebration は記録直後の食事を祝うメッセージを生成する。
// 栄養素が体と回復をどう支えるかに言及した1段落を返す。
// LLM失敗時は食事内容を埋め込んだテンプレート文を返す。
func (c *Composer) MealCelebration(ctx context.Context, meal *model.Meal) string {
	prompt := fmt.Sprintf(
		"The user just logged a %s with %.0f calories, %.0fg protein, %.0fg carbs, and %.0fg fat. "+
			"Write a warm, encouraging paragraph (about 75 words) celebrating their dedication to recovery "+
			"and explaining the physiological benefits of this meal. "+
			"Be specific about how these nutrients support their body and recovery journey.",
		meal.MealType, meal.TotalCalories, meal.TotalProtein, meal.TotalCarbs, meal.TotalFat,
	)

	content, err := c.compose(ctx, prompt)
	if err != nil {
		c.logger.Warn("食事お祝いメッセージの生成に失敗したためテンプレートを使用します",
			slog.String("error", err.Error()),
		)
		return mealFallback(meal)
	}
	return content
}

// Daily は1日1回の励ましメッセージを生成する。
// LLM失敗時は固定メッセージを日替わりで返す。
func (c *Composer) Daily(ctx context.Context, now time.Time) string {
	content, err := c.compose(ctx, dailyPrompt)
	if err != nil {
		c.logger.Warn("励ましメッセージの生成に失敗したためテンプレートを使用します",
			slog.String("error", err.Error()),
		)
		return dailyFallbacks[now.YearDay()%len(dailyFallbacks)]
	}
	return content
}

func (c *Composer) compose(ctx context.Context, prompt string) (string, error) {
	content, err := c.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: composeTemperature,
	})
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("LLMが空のメッセージを返しました")
	}
	return content, nil
}

// mealFallback は食事内容を埋め込んだテンプレートのお祝い文を返す。
func mealFallback(meal *model.Meal) string {
	var b strings.Builder
	b.WriteString("Well done for logging your ")
	b.WriteString(string(meal.MealType))
	b.WriteString("! ")

	if len(meal.Ingredients) > 0 {
		names := make([]string, 0, len(meal.Ingredients))
		for _, ing := range meal.Ingredients {
			names = append(names, ing.Name)
		}
		b.WriteString("The ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(" you ate ")
	} else {
		b.WriteString("This meal ")
	}

	fmt.Fprintf(&b,
		"gives your body about %.0f calories of energy, with protein to rebuild, carbs to fuel, and fats to support recovery. ",
		meal.TotalCalories,
	)
	b.WriteString("Every meal is a step forward. Keep taking care of yourself.")
	return b.String()
}
