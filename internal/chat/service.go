// Package chat はセラピーペルソナ付きAIチャットのドメインロジックを提供する。
// ユーザーのセラピースタイル（ACT/CBT/DBT）に応じたシステムプロンプトで
// LLMに応答を生成させ、会話をチャットログとして永続化する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuki/nourish/internal/llm"
	"github.com/yuki/nourish/internal/model"
	"github.com/yuki/nourish/internal/repository"
	"github.com/yuki/nourish/internal/security"
)

// chatTemperature はチャット応答の生成温度。
const chatTemperature = 0.7

// 履歴取得のデフォルト・上限件数。
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// personaPrompts はセラピースタイルごとのシステムプロンプト。
var personaPrompts = map[model.TherapyStyle]string{
	model.TherapyACT: "You are a compassionate AI assistant trained in Acceptance and Commitment Therapy (ACT) approaches for eating disorder recovery. Focus on helping users identify their values, practice psychological flexibility, and take committed action toward recovery. Use mindfulness and acceptance-based strategies. Keep responses supportive, non-judgmental, and focused on values-based living. Always remind users that you're supplemental support and encourage professional help when needed.",
	model.TherapyCBT: "You are a supportive AI assistant trained in Cognitive Behavioral Therapy (CBT) approaches for eating disorder recovery. Help users identify and challenge unhelpful thought patterns, examine evidence for and against their thoughts, and develop more balanced perspectives. Focus on the connection between thoughts, feelings, and behaviors. Keep responses encouraging and educational. Always remind users that you're supplemental support and encourage professional help when needed.",
	model.TherapyDBT: "You are a caring AI assistant trained in Dialectical Behavior Therapy (DBT) approaches for eating disorder recovery. Focus on teaching distress tolerance, emotion regulation, interpersonal effectiveness, and mindfulness skills. Help users practice radical acceptance and find the wise mind. Use validation and practical coping strategies. Keep responses warm and skills-focused. Always remind users that you're supplemental support and encourage professional help when needed.",
}

// Service はAIチャットのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	chatLogRepo repository.ChatLogRepository
	completer   llm.Completer
	sanitizer   security.TextSanitizerService
	maxTokens   int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	chatLogRepo repository.ChatLogRepository,
	completer llm.Completer,
	sanitizer security.TextSanitizerService,
	maxTokens int,
) *Service {
	return &Service{
		userRepo:    userRepo,
		chatLogRepo: chatLogRepo,
		completer:   completer,
		sanitizer:   sanitizer,
		maxTokens:   maxTokens,
	}
}

// Send はユーザーのメッセージに対するAI応答を生成し、会話を永続化して返す。
// システムプロンプトはプロフィールのセラピースタイルで選択され、
// 未設定・不正な場合はACTにフォールバックする。
// チャットログの保存失敗は応答の返却を妨げない。
func (s *Service) Send(ctx context.Context, userID, message string) (*model.ChatLog, error) {
	message = s.sanitizer.Sanitize(message)
	if message == "" {
		return nil, model.NewEmptyChatMessageError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	style := user.TherapyStyle
	if !model.IsValidTherapyStyle(style) {
		style = model.TherapyACT
	}

	content, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: personaPrompts[style]},
			{Role: "user", Content: message},
		},
		MaxTokens:   s.maxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("チャット応答の生成に失敗しました: %w", err)
	}

	log := &model.ChatLog{
		UserID:      userID,
		MessageUser: message,
		MessageBot:  s.sanitizer.Sanitize(content),
		Context:     string(style),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.chatLogRepo.Create(ctx, log); err != nil {
		slog.Warn("チャットログの保存に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("チャット応答を生成しました",
		slog.String("user_id", userID),
		slog.String("therapy_style", string(style)),
	)

	return log, nil
}

// History はチャットログを新しい順に返す。
// limitが0以下の場合はデフォルト件数、上限を超える場合は上限に丸める。
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*model.ChatLog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	logs, err := s.chatLogRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("チャット履歴の取得に失敗しました: %w", err)
	}
	return logs, nil
}
