package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Candidate はフォールバックチェーンの1候補（クライアントとモデル名の組）。
type Candidate struct {
	Client *Client
	Model  string
}

// MetricsRecorder はLLM呼び出しの計測インターフェース。
type MetricsRecorder interface {
	// RecordLLMRequest はモデル別・結果別の呼び出し回数とレイテンシを記録する。
	// outcomeは"success"または"error"。
	RecordLLMRequest(model, outcome string, duration time.Duration)
}

// Chain は複数モデルを順に試行するフォールバック付きCompleter。
// 先頭の候補から順に呼び出し、最初に成功した結果を返す。
// 全候補が失敗した場合のみエラーを返す。
type Chain struct {
	candidates []Candidate
	timeout    time.Duration
	logger     *slog.Logger
	metrics    MetricsRecorder
}

var _ Completer = (*Chain)(nil)

// NewChain はChainの新しいインスタンスを生成する。
// timeoutは候補1つあたりの試行タイムアウト。
// metricsはnilを許容する（計測なしで動作する）。
func NewChain(candidates []Candidate, timeout time.Duration, logger *slog.Logger, metrics MetricsRecorder) *Chain {
	return &Chain{
		candidates: candidates,
		timeout:    timeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Complete は候補を順に試行してチャット補完を実行する。
// req.Modelは候補ごとのモデル名で上書きされる。
func (c *Chain) Complete(ctx context.Context, req Request) (string, error) {
	if len(c.candidates) == 0 {
		return "", fmt.Errorf("チャット補完の候補モデルが設定されていません")
	}

	var lastErr error
	for _, cand := range c.candidates {
		attemptReq := req
		attemptReq.Model = cand.Model

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		content, err := cand.Client.Complete(attemptCtx, attemptReq)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordLLMRequest(cand.Model, "error", elapsed)
			}
			c.logger.Warn("チャット補完に失敗しました。次の候補にフォールバックします",
				slog.String("model", cand.Model),
				slog.String("error", err.Error()),
			)
			lastErr = err

			// 親コンテキストが終了している場合は後続の候補も試行しない
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		if c.metrics != nil {
			c.metrics.RecordLLMRequest(cand.Model, "success", elapsed)
		}
		return content, nil
	}

	return "", fmt.Errorf("全候補モデルでチャット補完に失敗しました: %w", lastErr)
}
