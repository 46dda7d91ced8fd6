// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, user, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists = "USER_ALREADY_EXISTS"
	ErrCodeFeedNotFound      = "FEED_NOT_FOUND"
	ErrCodePostingNotFound   = "POSTING_NOT_FOUND"
	ErrCodeNotAllowed        = "NOT_ALLOWED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeUpdateFailed      = "UPDATE_FAILED"
)

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "user",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewUserAlreadyExistsError はユーザー名重複エラーを生成する。
func NewUserAlreadyExistsError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "user",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(link string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", link),
		Category: "feed",
		Action:   "フィードのリンクを確認してください。",
	}
}

// NewPostingNotFoundError は記事未検出エラーを生成する。
func NewPostingNotFoundError(link string) *APIError {
	return &APIError{
		Code:     ErrCodePostingNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", link),
		Category: "feed",
		Action:   "記事のリンクを確認してください。",
	}
}

// NewNotAllowedError はフォローしていないフィードの記事を既読化しようと
// した場合のエラーを生成する。
func NewNotAllowedError(link string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAllowed,
		Message:  fmt.Sprintf("この記事を既読にする権限がありません: %s", link),
		Category: "feed",
		Action:   "先にフィードをフォローしてください。",
	}
}

// NewValidationError はフィールドのバリデーションエラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です (%s): %s", field, reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewFetchFailedError はフィード取得失敗エラーを生成する。
// 失敗種別（トランスポート/HTTPステータス/パース）は区別せず公開しない。
func NewFetchFailedError(link string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", link),
		Category: "feed",
		Action:   "リンクが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewUpdateFailedError は強制更新失敗エラーを生成する。
func NewUpdateFailedError(link string) *APIError {
	return &APIError{
		Code:     ErrCodeUpdateFailed,
		Message:  fmt.Sprintf("フィードの更新に失敗しました: %s", link),
		Category: "feed",
		Action:   "リンクが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
