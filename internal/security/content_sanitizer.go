// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は上流から受け取った表示用文字列からマークアップを除去する。
// カードはテンプレートでエスケープされるが、スプレッドシートに紛れ込んだ
// HTMLタグがそのまま文字として表示されることを防ぐ。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は表示用文字列のサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// PlainText はすべてのタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	PlainText(raw string) string

	// SafeLink は応募リンクとして表示してよいURLかを判定する。
	// http/httpsスキームかつホストを持つURLのみ許可する。
	SafeLink(raw string) (string, bool)
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicyを使用し、すべての要素を除去する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はタグを除去し、エンティティを戻したテキストを返す。
// 出力時のエスケープはテンプレート側で行う。
func (s *contentSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SafeLink はURLの前後の空白を除去し、許可されたURLであれば返す。
func (s *contentSanitizer) SafeLink(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := parseHTTPURL(trimmed)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
