package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	// Send はユーザーのメッセージをセラピーペルソナで応答し、往復をログに残す。
	Send(ctx context.Context, userID, message string) (*model.ChatLog, error)
	// History はチャット履歴を新しい順に最大limit件返す。
	History(ctx context.Context, userID string, limit int) ([]*model.ChatLog, error)
}

// ChatHandler はAIチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// chatRequest はチャット送信リクエストのボディ。
type chatRequest struct {
	Message string `json:"message"`
}

// chatLogResponse はチャット1往復のAPIレスポンス。
type chatLogResponse struct {
	ID          int64     `json:"id"`
	MessageUser string    `json:"message_user"`
	MessageBot  string    `json:"message_bot"`
	Context     string    `json:"context"`
	CreatedAt   time.Time `json:"created_at"`
}

// Send はチャットメッセージを処理する。
// POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	log, err := h.service.Send(r.Context(), userID, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toChatLogResponse(log))
}

// History はチャット履歴を返す。
// GET /api/chat/history?limit=50
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	logs, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]chatLogResponse, len(logs))
	for i, log := range logs {
		results[i] = toChatLogResponse(log)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs": results,
	})
}

// toChatLogResponse はmodel.ChatLogからAPIレスポンスに変換する。
func toChatLogResponse(log *model.ChatLog) chatLogResponse {
	return chatLogResponse{
		ID:          log.ID,
		MessageUser: log.MessageUser,
		MessageBot:  log.MessageBot,
		Context:     log.Context,
		CreatedAt:   log.CreatedAt,
	}
}
