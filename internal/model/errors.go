package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: upstream, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// LoadFailedMessage は読み込み失敗時にユーザーへ表示する固定メッセージ。
// 通信エラーとHTTPステータスエラーを区別せずに表示する。
const LoadFailedMessage = "Failed to load opportunities. Please try again later."

// 定義済みエラーコード
const (
	ErrCodeLoadFailed     = "LOAD_FAILED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
)

// NewLoadFailedError は募集情報の読み込み失敗エラーを生成する。
func NewLoadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoadFailed,
		Message:  LoadFailedMessage,
		Category: "upstream",
		Action:   "Wait a moment and reload the page.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewInvalidRequestError は不正なリクエストのエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request parameters.",
	}
}
