// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザー入力（食事名、食材名、チャットメッセージ等）と
// LLM出力をプレーンテキストに正規化し、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリの厳格ポリシーで全HTMLタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// ユーザー入力の保存前およびLLM出力の返却前に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去してプレーンテキストを返す。
	// script, iframe, img等のタグとon*イベント属性は内容ごと、
	// または開始・終了タグのみ除去される。
	// HTMLエンティティはデコードされ、前後の空白は削除される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicy（全タグ除去）を使用する。
// このアプリケーションが扱うテキストはすべてプレーンテキストであり、
// HTMLを保持する理由がないため、許可リストは空である。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去してプレーンテキストを返す。
// bluemondayはタグ除去後の残余テキストをエンティティエスケープするため、
// 保存用のプレーンテキストに戻すためにデコードを行う。
func (s *textSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
