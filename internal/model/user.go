// Package model はドメインモデルを定義する。
package model

// User はサービス利用ユーザーを表す。
type User struct {
	PK       int64
	Username string

	// FollowedFeeds はユーザーがフォロー中のフィード。
	// 一覧取得時にeager loadされる。
	FollowedFeeds []Feed
}

// usernameMinLength はユーザー名の最小文字数。
const usernameMinLength = 3

// ValidateUsername はユーザー名の長さ制約を検証する。
// 3文字未満の場合はバリデーションエラーを返す。
func ValidateUsername(username string) error {
	if len(username) < usernameMinLength {
		return NewValidationError("username", "ユーザー名は3文字以上で指定してください。")
	}
	return nil
}
