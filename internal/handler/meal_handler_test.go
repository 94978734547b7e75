package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuki/nourish/internal/meal"
	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
)

// --- モック定義 ---

type mockMealService struct {
	analyzeFn    func(ctx context.Context, description string) (model.NutritionEstimate, bool, error)
	saveFn       func(ctx context.Context, userID string, input meal.SaveInput) (*model.Meal, string, error)
	updateFn     func(ctx context.Context, userID, mealID string, input meal.SaveInput) (*model.Meal, error)
	listByDateFn func(ctx context.Context, userID, date string) ([]*model.Meal, error)
	deleteFn     func(ctx context.Context, userID, mealID string) error
	todayStatsFn func(ctx context.Context, userID string, now time.Time) (*meal.DayStats, error)
}

func (m *mockMealService) Analyze(ctx context.Context, description string) (model.NutritionEstimate, bool, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, description)
	}
	return model.NutritionEstimate{}, false, nil
}

func (m *mockMealService) Save(ctx context.Context, userID string, input meal.SaveInput) (*model.Meal, string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, userID, input)
	}
	return nil, "", nil
}

func (m *mockMealService) Update(ctx context.Context, userID, mealID string, input meal.SaveInput) (*model.Meal, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, mealID, input)
	}
	return nil, nil
}

func (m *mockMealService) ListByDate(ctx context.Context, userID, date string) ([]*model.Meal, error) {
	if m.listByDateFn != nil {
		return m.listByDateFn(ctx, userID, date)
	}
	return nil, nil
}

func (m *mockMealService) Delete(ctx context.Context, userID, mealID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, mealID)
	}
	return nil
}

func (m *mockMealService) TodayStats(ctx context.Context, userID string, now time.Time) (*meal.DayStats, error) {
	if m.todayStatsFn != nil {
		return m.todayStatsFn(ctx, userID, now)
	}
	return nil, nil
}

type mockMealMetrics struct {
	mu          sync.Mutex
	mealsLogged int
	estimates   []string
}

func (m *mockMealMetrics) RecordMealLogged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mealsLogged++
}

func (m *mockMealMetrics) RecordEstimate(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimates = append(m.estimates, outcome)
}

// authedRequest は認証済みユーザーIDをコンテキストに持つリクエストを生成する。
func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := middleware.ContextWithUserID(req.Context(), "user-123")
	return req.WithContext(ctx)
}

// withURLParam はchiのURLパラメータをリクエストコンテキストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testMeal() *model.Meal {
	return &model.Meal{
		ID:            "meal-1",
		UserID:        "user-123",
		Date:          "2025-06-15",
		MealType:      "Lunch",
		Name:          "Chicken and rice",
		TotalCalories: 465,
		TotalProtein:  50,
		TotalCarbs:    45,
		TotalFat:      7,
		Ingredients: []model.MealIngredient{
			{ID: "ing-1", MealID: "meal-1", Name: "grilled chicken", Quantity: "200g", Calories: 260, Protein: 48, Carbs: 0, Fats: 6},
			{ID: "ing-2", MealID: "meal-1", Name: "rice", Quantity: "1 cup", Calories: 205, Protein: 2, Carbs: 45, Fats: 1},
		},
		CreatedAt: time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
	}
}

// --- テスト ---

func TestMealHandler_Analyze_ReturnsEstimate(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(ctx context.Context, description string) (model.NutritionEstimate, bool, error) {
			if description != "grilled chicken with rice" {
				t.Errorf("description = %q, want %q", description, "grilled chicken with rice")
			}
			return model.NutritionEstimate{Calories: 465, Protein: 50, Carbs: 45, Fats: 7}, false, nil
		},
	}
	metrics := &mockMealMetrics{}
	h := NewMealHandler(svc, metrics)

	body, _ := json.Marshal(analyzeRequest{Description: "grilled chicken with rice"})
	req := authedRequest(http.MethodPost, "/api/meals/analyze", body)
	w := httptest.NewRecorder()

	h.Analyze(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Calories != 465 || got.Protein != 50 {
		t.Errorf("estimate = %+v, want calories=465 protein=50", got)
	}
	if got.Fallback {
		t.Error("fallback should be false")
	}
	if len(metrics.estimates) != 1 || metrics.estimates[0] != "success" {
		t.Errorf("estimates metric = %v, want [success]", metrics.estimates)
	}
}

func TestMealHandler_Analyze_FallbackRecordsMetric(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(ctx context.Context, description string) (model.NutritionEstimate, bool, error) {
			return model.NutritionEstimate{Calories: 650, Protein: 35, Carbs: 55, Fats: 20}, true, nil
		},
	}
	metrics := &mockMealMetrics{}
	h := NewMealHandler(svc, metrics)

	body, _ := json.Marshal(analyzeRequest{Description: "mystery stew"})
	req := authedRequest(http.MethodPost, "/api/meals/analyze", body)
	w := httptest.NewRecorder()

	h.Analyze(w, req)

	var got analyzeResponse
	json.NewDecoder(w.Result().Body).Decode(&got)
	if !got.Fallback {
		t.Error("fallback should be true")
	}
	if len(metrics.estimates) != 1 || metrics.estimates[0] != "fallback" {
		t.Errorf("estimates metric = %v, want [fallback]", metrics.estimates)
	}
}

func TestMealHandler_Analyze_EmptyDescription_ReturnsBadRequest(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(ctx context.Context, description string) (model.NutritionEstimate, bool, error) {
			return model.NutritionEstimate{}, false, model.NewEmptyDescriptionError()
		},
	}
	h := NewMealHandler(svc, nil)

	body, _ := json.Marshal(analyzeRequest{Description: ""})
	req := authedRequest(http.MethodPost, "/api/meals/analyze", body)
	w := httptest.NewRecorder()

	h.Analyze(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Code != model.ErrCodeEmptyDescription {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeEmptyDescription)
	}
}

func TestMealHandler_Analyze_Unauthenticated_ReturnsUnauthorized(t *testing.T) {
	h := NewMealHandler(&mockMealService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/meals/analyze", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.Analyze(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestMealHandler_Save_ReturnsCreatedWithEncouragement(t *testing.T) {
	svc := &mockMealService{
		saveFn: func(ctx context.Context, userID string, input meal.SaveInput) (*model.Meal, string, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if len(input.Ingredients) != 2 {
				t.Errorf("ingredients = %d, want 2", len(input.Ingredients))
			}
			return testMeal(), "Well done!", nil
		},
	}
	metrics := &mockMealMetrics{}
	h := NewMealHandler(svc, metrics)

	body, _ := json.Marshal(saveMealRequest{
		Date:     "2025-06-15",
		MealType: "Lunch",
		Name:     "Chicken and rice",
		Ingredients: []ingredientPayload{
			{Name: "grilled chicken", Quantity: "200g", Calories: 260, Protein: 48, Fats: 6},
			{Name: "rice", Quantity: "1 cup", Calories: 205, Protein: 2, Carbs: 45, Fats: 1},
		},
	})
	req := authedRequest(http.MethodPost, "/api/meals", body)
	w := httptest.NewRecorder()

	h.Save(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got saveMealResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Meal.ID != "meal-1" {
		t.Errorf("meal ID = %q, want %q", got.Meal.ID, "meal-1")
	}
	if got.Meal.TotalCalories != 465 {
		t.Errorf("total calories = %v, want 465", got.Meal.TotalCalories)
	}
	if got.Encouragement != "Well done!" {
		t.Errorf("encouragement = %q, want %q", got.Encouragement, "Well done!")
	}
	if metrics.mealsLogged != 1 {
		t.Errorf("meals logged metric = %d, want 1", metrics.mealsLogged)
	}
}

func TestMealHandler_Save_ValidationError_ReturnsBadRequest(t *testing.T) {
	svc := &mockMealService{
		saveFn: func(ctx context.Context, userID string, input meal.SaveInput) (*model.Meal, string, error) {
			return nil, "", model.NewMissingIngredientsError()
		},
	}
	metrics := &mockMealMetrics{}
	h := NewMealHandler(svc, metrics)

	body, _ := json.Marshal(saveMealRequest{Date: "2025-06-15", MealType: "Lunch"})
	req := authedRequest(http.MethodPost, "/api/meals", body)
	w := httptest.NewRecorder()

	h.Save(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if metrics.mealsLogged != 0 {
		t.Errorf("meals logged metric = %d, want 0", metrics.mealsLogged)
	}
}

func TestMealHandler_Save_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewMealHandler(&mockMealService{}, nil)

	req := authedRequest(http.MethodPost, "/api/meals", []byte(`{invalid`))
	w := httptest.NewRecorder()

	h.Save(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestMealHandler_Update_ReturnsUpdatedMeal(t *testing.T) {
	svc := &mockMealService{
		updateFn: func(ctx context.Context, userID, mealID string, input meal.SaveInput) (*model.Meal, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if mealID != "meal-1" {
				t.Errorf("mealID = %q, want %q", mealID, "meal-1")
			}
			if len(input.Ingredients) != 2 {
				t.Errorf("ingredients = %d, want 2", len(input.Ingredients))
			}
			return testMeal(), nil
		},
	}
	h := NewMealHandler(svc, nil)

	body, _ := json.Marshal(saveMealRequest{
		Date:     "2025-06-15",
		MealType: "Lunch",
		Name:     "Chicken and rice",
		Ingredients: []ingredientPayload{
			{Name: "grilled chicken", Quantity: "200g", Calories: 260, Protein: 48, Fats: 6},
			{Name: "rice", Quantity: "1 cup", Calories: 205, Protein: 2, Carbs: 45, Fats: 1},
		},
	})
	req := withURLParam(authedRequest(http.MethodPut, "/api/meals/meal-1", body), "id", "meal-1")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got mealResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "meal-1" {
		t.Errorf("meal ID = %q, want %q", got.ID, "meal-1")
	}
	if got.TotalCalories != 465 {
		t.Errorf("total calories = %v, want 465", got.TotalCalories)
	}
}

func TestMealHandler_Update_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockMealService{
		updateFn: func(ctx context.Context, userID, mealID string, input meal.SaveInput) (*model.Meal, error) {
			return nil, model.NewMealNotFoundError(mealID)
		},
	}
	h := NewMealHandler(svc, nil)

	body, _ := json.Marshal(saveMealRequest{
		Date:     "2025-06-15",
		MealType: "Lunch",
		Ingredients: []ingredientPayload{
			{Name: "rice", Quantity: "1 cup", Calories: 205},
		},
	})
	req := withURLParam(authedRequest(http.MethodPut, "/api/meals/missing", body), "id", "missing")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestMealHandler_Update_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewMealHandler(&mockMealService{}, nil)

	req := withURLParam(authedRequest(http.MethodPut, "/api/meals/meal-1", []byte(`{invalid`)), "id", "meal-1")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestMealHandler_List_ReturnsMealsForDate(t *testing.T) {
	svc := &mockMealService{
		listByDateFn: func(ctx context.Context, userID, date string) ([]*model.Meal, error) {
			if date != "2025-06-15" {
				t.Errorf("date = %q, want %q", date, "2025-06-15")
			}
			return []*model.Meal{testMeal()}, nil
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodGet, "/api/meals?date=2025-06-15", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got struct {
		Meals []mealResponse `json:"meals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.Meals) != 1 {
		t.Fatalf("meals = %d, want 1", len(got.Meals))
	}
	if len(got.Meals[0].Ingredients) != 2 {
		t.Errorf("ingredients = %d, want 2", len(got.Meals[0].Ingredients))
	}
}

func TestMealHandler_List_InvalidDate_ReturnsBadRequest(t *testing.T) {
	svc := &mockMealService{
		listByDateFn: func(ctx context.Context, userID, date string) ([]*model.Meal, error) {
			return nil, model.NewInvalidDateError(date)
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodGet, "/api/meals?date=not-a-date", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestMealHandler_Delete_ReturnsNoContent(t *testing.T) {
	deleted := ""
	svc := &mockMealService{
		deleteFn: func(ctx context.Context, userID, mealID string) error {
			deleted = mealID
			return nil
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodDelete, "/api/meals/meal-1", nil)
	req = withURLParam(req, "id", "meal-1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if deleted != "meal-1" {
		t.Errorf("deleted meal ID = %q, want %q", deleted, "meal-1")
	}
}

func TestMealHandler_Delete_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockMealService{
		deleteFn: func(ctx context.Context, userID, mealID string) error {
			return model.NewMealNotFoundError(mealID)
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodDelete, "/api/meals/missing", nil)
	req = withURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var errResp apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Code != model.ErrCodeMealNotFound {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeMealNotFound)
	}
}

func TestMealHandler_TodayStats_ReturnsStats(t *testing.T) {
	svc := &mockMealService{
		todayStatsFn: func(ctx context.Context, userID string, now time.Time) (*meal.DayStats, error) {
			return &meal.DayStats{
				Date:             "2025-06-15",
				TotalCalories:    1000,
				TotalProtein:     55,
				TotalCarbs:       110,
				TotalFat:         30,
				DailyCaloricGoal: 3346,
				MealCount:        2,
				Streak:           4,
			}, nil
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodGet, "/api/stats/today", nil)
	w := httptest.NewRecorder()

	h.TodayStats(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got dayStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.DailyCaloricGoal != 3346 {
		t.Errorf("daily caloric goal = %d, want 3346", got.DailyCaloricGoal)
	}
	if got.Streak != 4 {
		t.Errorf("streak = %d, want 4", got.Streak)
	}
	if got.MealCount != 2 {
		t.Errorf("meal count = %d, want 2", got.MealCount)
	}
}

func TestMealHandler_TodayStats_UserNotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockMealService{
		todayStatsFn: func(ctx context.Context, userID string, now time.Time) (*meal.DayStats, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewMealHandler(svc, nil)

	req := authedRequest(http.MethodGet, "/api/stats/today", nil)
	w := httptest.NewRecorder()

	h.TodayStats(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
