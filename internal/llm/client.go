// Package llm はOpenAI互換のチャット補完APIクライアントを提供する。
// OpenAIとPerplexityは同一のリクエスト/レスポンス形式を持つため、
// エンドポイントとAPIキーの差し替えだけで両方に対応できる。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// OpenAIEndpoint はOpenAIのチャット補完APIエンドポイント。
	OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	// PerplexityEndpoint はPerplexityのチャット補完APIエンドポイント。
	PerplexityEndpoint = "https://api.perplexity.ai/chat/completions"

	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// Message はチャット補完のメッセージ。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request はチャット補完のリクエストパラメータ。
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer はチャット補完の実行インターフェース。
// 単一モデルのClientとフォールバック付きのChainが実装する。
type Completer interface {
	// Complete はチャット補完を実行し、生成されたテキストを返す。
	Complete(ctx context.Context, req Request) (string, error)
}

// Client はOpenAI互換APIの単一エンドポイントクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointにはOpenAIEndpointまたはPerplexityEndpointを指定する
// （テストではモックサーバーのURLを指定できる）。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// chatRequest はOpenAI互換APIのリクエストボディ。
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// chatResponse はOpenAI互換APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete はチャット補完APIを1回呼び出す。
// 非200ステータス、空のchoices、パース失敗はすべてエラーとして返す
// （フォールバックの判断は呼び出し元のChainが行う）。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("チャット補完APIの呼び出しに失敗しました",
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("チャット補完APIがエラーステータスを返しました",
			slog.String("model", req.Model),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("チャット補完APIがステータス %d を返しました", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("チャット補完APIのレスポンスにchoicesが含まれていません")
	}

	return parsed.Choices[0].Message.Content, nil
}
