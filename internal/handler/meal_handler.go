package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuki/nourish/internal/meal"
	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
)

// MealServiceInterface は食事ハンドラーが必要とするサービスインターフェース。
type MealServiceInterface interface {
	// Analyze は食事の説明文から栄養価を推定する。2番目の戻り値はフォールバック使用を示す。
	Analyze(ctx context.Context, description string) (model.NutritionEstimate, bool, error)
	// Save は食事と材料を保存し、励ましメッセージとともに返す。
	Save(ctx context.Context, userID string, input meal.SaveInput) (*model.Meal, string, error)
	// Update は食事記録を編集する。材料は全置換される。
	Update(ctx context.Context, userID, mealID string, input meal.SaveInput) (*model.Meal, error)
	// ListByDate は指定日の食事一覧を返す。
	ListByDate(ctx context.Context, userID, date string) ([]*model.Meal, error)
	// Delete は食事記録を削除する。
	Delete(ctx context.Context, userID, mealID string) error
	// TodayStats は当日の栄養集計とストリークを返す。
	TodayStats(ctx context.Context, userID string, now time.Time) (*meal.DayStats, error)
}

// MealMetrics は食事ハンドラーが記録するメトリクスのインターフェース。
type MealMetrics interface {
	RecordMealLogged()
	RecordEstimate(outcome string)
}

// MealHandler は食事記録のHTTPハンドラー。
type MealHandler struct {
	service MealServiceInterface
	metrics MealMetrics // nil許容
}

// NewMealHandler はMealHandlerを生成する。metricsはnilを許容する。
func NewMealHandler(service MealServiceInterface, metrics MealMetrics) *MealHandler {
	return &MealHandler{
		service: service,
		metrics: metrics,
	}
}

// analyzeRequest は栄養推定リクエストのボディ。
type analyzeRequest struct {
	Description string `json:"description"`
}

// analyzeResponse は栄養推定のAPIレスポンス。
type analyzeResponse struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	Fallback bool    `json:"fallback"`
}

// ingredientPayload は材料の入出力共通フォーマット。
type ingredientPayload struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Quantity string  `json:"quantity"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// saveMealRequest は食事保存リクエストのボディ。
type saveMealRequest struct {
	Date        string              `json:"date"`
	MealType    string              `json:"meal_type"`
	Name        string              `json:"name"`
	Ingredients []ingredientPayload `json:"ingredients"`
}

// mealResponse は食事記録のAPIレスポンス。
type mealResponse struct {
	ID            string              `json:"id"`
	Date          string              `json:"date"`
	MealType      string              `json:"meal_type"`
	Name          string              `json:"name"`
	TotalCalories float64             `json:"total_calories"`
	TotalProtein  float64             `json:"total_protein"`
	TotalCarbs    float64             `json:"total_carbs"`
	TotalFat      float64             `json:"total_fat"`
	Ingredients   []ingredientPayload `json:"ingredients"`
	CreatedAt     time.Time           `json:"created_at"`
}

// saveMealResponse は食事保存のAPIレスポンス。励ましメッセージを含む。
type saveMealResponse struct {
	Meal          mealResponse `json:"meal"`
	Encouragement string       `json:"encouragement,omitempty"`
}

// dayStatsResponse は当日統計のAPIレスポンス。
type dayStatsResponse struct {
	Date             string  `json:"date"`
	TotalCalories    float64 `json:"total_calories"`
	TotalProtein     float64 `json:"total_protein"`
	TotalCarbs       float64 `json:"total_carbs"`
	TotalFat         float64 `json:"total_fat"`
	DailyCaloricGoal int     `json:"daily_caloric_goal"`
	MealCount        int     `json:"meal_count"`
	Streak           int     `json:"streak"`
}

// Analyze は食事の説明文から栄養価を推定する。
// POST /api/meals/analyze
func (h *MealHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	est, fallback, err := h.service.Analyze(r.Context(), req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		if fallback {
			h.metrics.RecordEstimate("fallback")
		} else {
			h.metrics.RecordEstimate("success")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analyzeResponse{
		Calories: est.Calories,
		Protein:  est.Protein,
		Carbs:    est.Carbs,
		Fats:     est.Fats,
		Fallback: fallback,
	})
}

// Save は食事記録を保存する。
// POST /api/meals
func (h *MealHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req saveMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := meal.SaveInput{
		Date:     req.Date,
		MealType: req.MealType,
		Name:     req.Name,
	}
	for _, ing := range req.Ingredients {
		input.Ingredients = append(input.Ingredients, meal.IngredientInput{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Calories: ing.Calories,
			Protein:  ing.Protein,
			Carbs:    ing.Carbs,
			Fats:     ing.Fats,
		})
	}

	saved, encouragement, err := h.service.Save(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMealLogged()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saveMealResponse{
		Meal:          toMealResponse(saved),
		Encouragement: encouragement,
	})
}

// Update は食事記録を編集する。
// PUT /api/meals/:id
func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req saveMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := meal.SaveInput{
		Date:     req.Date,
		MealType: req.MealType,
		Name:     req.Name,
	}
	for _, ing := range req.Ingredients {
		input.Ingredients = append(input.Ingredients, meal.IngredientInput{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Calories: ing.Calories,
			Protein:  ing.Protein,
			Carbs:    ing.Carbs,
			Fats:     ing.Fats,
		})
	}

	mealID := chi.URLParam(r, "id")
	updated, err := h.service.Update(r.Context(), userID, mealID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMealResponse(updated))
}

// List は指定日の食事一覧を返す。
// GET /api/meals?date=YYYY-MM-DD
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	date := r.URL.Query().Get("date")
	meals, err := h.service.ListByDate(r.Context(), userID, date)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]mealResponse, len(meals))
	for i, m := range meals {
		results[i] = toMealResponse(m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meals": results,
	})
}

// Delete は食事記録を削除する。
// DELETE /api/meals/:id
func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	mealID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, mealID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TodayStats は当日の栄養集計とストリークを返す。
// GET /api/stats/today
func (h *MealHandler) TodayStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.TodayStats(r.Context(), userID, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dayStatsResponse{
		Date:             stats.Date,
		TotalCalories:    stats.TotalCalories,
		TotalProtein:     stats.TotalProtein,
		TotalCarbs:       stats.TotalCarbs,
		TotalFat:         stats.TotalFat,
		DailyCaloricGoal: stats.DailyCaloricGoal,
		MealCount:        stats.MealCount,
		Streak:           stats.Streak,
	})
}

// --- ヘルパー関数 ---

// toMealResponse はmodel.MealからAPIレスポンスに変換する。
func toMealResponse(m *model.Meal) mealResponse {
	ingredients := make([]ingredientPayload, len(m.Ingredients))
	for i, ing := range m.Ingredients {
		ingredients[i] = ingredientPayload{
			ID:       ing.ID,
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Calories: ing.Calories,
			Protein:  ing.Protein,
			Carbs:    ing.Carbs,
			Fats:     ing.Fats,
		}
	}
	return mealResponse{
		ID:            m.ID,
		Date:          m.Date,
		MealType:      m.MealType,
		Name:          m.Name,
		TotalCalories: m.TotalCalories,
		TotalProtein:  m.TotalProtein,
		TotalCarbs:    m.TotalCarbs,
		TotalFat:      m.TotalFat,
		Ingredients:   ingredients,
		CreatedAt:     m.CreatedAt,
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorized は未認証エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestBody はボディ解析失敗のエラーレスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeMealNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyDescription,
		model.ErrCodeMissingMealType,
		model.ErrCodeMissingIngredients,
		model.ErrCodeInvalidDate,
		model.ErrCodeInvalidWeight,
		model.ErrCodeInvalidTherapyStyle,
		model.ErrCodeInvalidProfile,
		model.ErrCodeEmptyChatMessage:
		return http.StatusBadRequest
	case model.ErrCodeFoodSearchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
