package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
)

// WeightServiceInterface は体重ハンドラーが必要とするサービスインターフェース。
type WeightServiceInterface interface {
	// Record は体重を記録する。同一日付はUPSERTで上書きされる。
	Record(ctx context.Context, userID, date string, weightKg float64) (*model.WeightEntry, error)
	// History は体重履歴を日付昇順で返す。fromとtoで範囲を絞り込める（空は無制限）。
	History(ctx context.Context, userID, from, to string) ([]*model.WeightEntry, error)
}

// WeightHandler は体重記録のHTTPハンドラー。
type WeightHandler struct {
	service WeightServiceInterface
}

// NewWeightHandler はWeightHandlerを生成する。
func NewWeightHandler(service WeightServiceInterface) *WeightHandler {
	return &WeightHandler{service: service}
}

// recordWeightRequest は体重記録リクエストのボディ。
type recordWeightRequest struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
}

// weightEntryResponse は体重記録のAPIレスポンス。
type weightEntryResponse struct {
	Date      string    `json:"date"`
	WeightKg  float64   `json:"weight_kg"`
	CreatedAt time.Time `json:"created_at"`
}

// Record は体重を記録する。同一日付の既存記録は上書きされる。
// PUT /api/weight
func (h *WeightHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req recordWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	entry, err := h.service.Record(r.Context(), userID, req.Date, req.WeightKg)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toWeightEntryResponse(entry))
}

// History は体重履歴を返す。
// GET /api/weight?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *WeightHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	entries, err := h.service.History(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]weightEntryResponse, len(entries))
	for i, e := range entries {
		results[i] = toWeightEntryResponse(e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": results,
	})
}

// toWeightEntryResponse はmodel.WeightEntryからAPIレスポンスに変換する。
func toWeightEntryResponse(e *model.WeightEntry) weightEntryResponse {
	return weightEntryResponse{
		Date:      e.Date,
		WeightKg:  e.WeightKg,
		CreatedAt: e.CreatedAt,
	}
}
