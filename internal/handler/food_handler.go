package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yuki/nourish/internal/foodsearch"
	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
)

// FoodSearchInterface は食品検索ハンドラーが必要とするクライアントインターフェース。
type FoodSearchInterface interface {
	// Search はキーワードで一般食品とブランド食品を検索する。
	Search(ctx context.Context, query string) (*foodsearch.SearchResult, error)
	// Nutrients は自然文の食事説明から栄養情報を取得する。
	Nutrients(ctx context.Context, query string) ([]foodsearch.Food, error)
	// Item はブランド食品IDで栄養情報を取得する。
	Item(ctx context.Context, nixItemID string) (*foodsearch.Food, error)
}

// FoodHandler は食品データベース検索のプロキシHTTPハンドラー。
// APIキーをクライアントに露出させないため、サーバー側で外部APIを呼び出す。
type FoodHandler struct {
	client FoodSearchInterface
}

// NewFoodHandler はFoodHandlerを生成する。
func NewFoodHandler(client FoodSearchInterface) *FoodHandler {
	return &FoodHandler{client: client}
}

// nutrientsRequest は栄養情報取得リクエストのボディ。
type nutrientsRequest struct {
	Query string `json:"query"`
}

// Search は食品をキーワード検索する。
// GET /api/foods/search?q=xxx
func (h *FoodHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "検索キーワードが指定されていません。",
			Category: "validation",
			Action:   "クエリパラメータqを指定してください。",
		})
		return
	}

	result, err := h.client.Search(r.Context(), query)
	if err != nil {
		writeFoodSearchError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Nutrients は自然文の説明から栄養情報を取得する。
// POST /api/foods/nutrients
func (h *FoodHandler) Nutrients(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	var req nutrientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "食事の説明が指定されていません。",
			Category: "validation",
			Action:   "queryフィールドを指定してください。",
		})
		return
	}

	foods, err := h.client.Nutrients(r.Context(), req.Query)
	if err != nil {
		writeFoodSearchError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"foods": foods,
	})
}

// Item はブランド食品IDで栄養情報を取得する。
// GET /api/foods/item?nix_item_id=xxx
func (h *FoodHandler) Item(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	nixItemID := r.URL.Query().Get("nix_item_id")
	if nixItemID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "食品IDが指定されていません。",
			Category: "validation",
			Action:   "クエリパラメータnix_item_idを指定してください。",
		})
		return
	}

	food, err := h.client.Item(r.Context(), nixItemID)
	if err != nil {
		writeFoodSearchError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(food)
}

// writeFoodSearchError は外部食品APIの失敗を統一エラーフォーマットで返す。
func writeFoodSearchError(w http.ResponseWriter, err error) {
	slog.Error("food database request failed", slog.String("error", err.Error()))
	apiErr := model.NewFoodSearchFailedError()
	writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
}
