package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yuki/nourish/internal/middleware"
)

// DailyEncourager は1日1回の励ましメッセージ生成のインターフェース。
// 生成は失敗せず、LLMが使えない場合はフォールバック文が返る。
type DailyEncourager interface {
	Daily(ctx context.Context, now time.Time) string
}

// EncourageHandler は励ましメッセージのHTTPハンドラー。
type EncourageHandler struct {
	encourager DailyEncourager
}

// NewEncourageHandler はEncourageHandlerを生成する。
func NewEncourageHandler(encourager DailyEncourager) *EncourageHandler {
	return &EncourageHandler{encourager: encourager}
}

// Daily は1日1回の励ましメッセージを返す。
// GET /api/encouragement/daily
func (h *EncourageHandler) Daily(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	message := h.encourager.Daily(r.Context(), time.Now())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
	})
}
