package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// Get はプロフィールを取得する。派生値は再計算済みの値が返る。
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	// Update はプロフィールを検証・サニタイズして更新する。
	Update(ctx context.Context, userID string, input profile.UpdateInput) (*model.UserProfile, error)
	// Withdraw はユーザーの退会処理を実行する。
	Withdraw(ctx context.Context, userID string) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Username             string   `json:"username"`
	Age                  int      `json:"age"`
	Gender               string   `json:"gender"`
	HeightCm             float64  `json:"height_cm"`
	WeightKg             float64  `json:"weight_kg"`
	GoalWeightKg         float64  `json:"goal_weight_kg"`
	WeeklyWeightGainGoal float64  `json:"weekly_weight_gain_goal"`
	ActivityLevel        string   `json:"activity_level"`
	AvgStepsPerDay       int      `json:"avg_steps_per_day"`
	TherapyStyle         string   `json:"therapy_style"`
	TherapistDescription string   `json:"therapist_description"`
	FearFoods            []string `json:"fear_foods"`
}

// profileResponse はプロフィールのAPIレスポンス。派生値を含む。
type profileResponse struct {
	ID                   string   `json:"id"`
	Email                string   `json:"email"`
	Username             string   `json:"username"`
	Age                  int      `json:"age"`
	Gender               string   `json:"gender"`
	HeightCm             float64  `json:"height_cm"`
	WeightKg             float64  `json:"weight_kg"`
	GoalWeightKg         float64  `json:"goal_weight_kg"`
	WeeklyWeightGainGoal float64  `json:"weekly_weight_gain_goal"`
	ActivityLevel        string   `json:"activity_level"`
	AvgStepsPerDay       int      `json:"avg_steps_per_day"`
	TherapyStyle         string   `json:"therapy_style"`
	TherapistDescription string   `json:"therapist_description"`
	FearFoods            []string `json:"fear_foods"`
	BMR                  int      `json:"bmr"`
	TDEE                 int      `json:"tdee"`
	DailyCaloricGoal     int      `json:"daily_caloric_goal"`
}

// Get はプロフィールを取得する。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(user))
}

// Update はプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, profile.UpdateInput{
		Username:             req.Username,
		Age:                  req.Age,
		Gender:               model.Gender(req.Gender),
		HeightCm:             req.HeightCm,
		WeightKg:             req.WeightKg,
		GoalWeightKg:         req.GoalWeightKg,
		WeeklyWeightGainGoal: req.WeeklyWeightGainGoal,
		ActivityLevel:        model.ActivityLevel(req.ActivityLevel),
		AvgStepsPerDay:       req.AvgStepsPerDay,
		TherapyStyle:         model.TherapyStyle(req.TherapyStyle),
		TherapistDescription: req.TherapistDescription,
		FearFoods:            req.FearFoods,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(updated))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *ProfileHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// toProfileResponse はmodel.UserProfileからAPIレスポンスに変換する。
func toProfileResponse(user *model.UserProfile) profileResponse {
	fearFoods := user.FearFoods
	if fearFoods == nil {
		fearFoods = []string{}
	}
	return profileResponse{
		ID:                   user.UserID,
		Email:                user.Email,
		Username:             user.Username,
		Age:                  user.Age,
		Gender:               string(user.Gender),
		HeightCm:             user.HeightCm,
		WeightKg:             user.WeightKg,
		GoalWeightKg:         user.GoalWeightKg,
		WeeklyWeightGainGoal: user.WeeklyWeightGainGoal,
		ActivityLevel:        string(user.ActivityLevel),
		AvgStepsPerDay:       user.AvgStepsPerDay,
		TherapyStyle:         string(user.TherapyStyle),
		TherapistDescription: user.TherapistDescription,
		FearFoods:            fearFoods,
		BMR:                  user.BMR,
		TDEE:                 user.TDEE,
		DailyCaloricGoal:     user.DailyCaloricGoal,
	}
}
