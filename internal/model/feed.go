// Package model はドメインモデルを定義する。
package model

import "time"

// Feed はRSS/Atomフィードを表す。
// linkがグローバル一意の自然キーで、pkはサロゲートキー。
type Feed struct {
	PK            int64
	Link          string
	Title         string
	Lang          string
	CopyrightText string
	Description   string
	Category      string
	Active        bool
	CreatedAt     time.Time

	// Postings はフィードに属する記事。FindByPKでeager loadされる。
	Postings []Posting
}

// ScheduledFeed はスケジューラが扱う (pk, link, active) のタプル。
// リフレッシュ対象の列挙ではフィード全体をロードしない。
type ScheduledFeed struct {
	PK     int64
	Link   string
	Active bool
}

// FeedSnapshot はFetcherが生成するフィードの正規化済みスナップショット。
// Ingestorに渡された後は破棄される値型。
type FeedSnapshot struct {
	Link          string
	Title         string
	Lang          string
	CopyrightText string
	Description   string
	Category      string

	// Active はUPSERT時にフィード行へそのまま書き込まれる。スナップショットは
	// 常にactive=trueで生成され、リフレッシュ成功時の再活性化を担う。
	Active bool
}

// linkMinLength はフィード/記事リンクの最小文字数。
const linkMinLength = 4

// ValidateLink はリンクの長さ制約を検証する。
// 4文字未満の場合はバリデーションエラーを返す。
func ValidateLink(link string) error {
	if len(link) < linkMinLength {
		return NewValidationError("link", "リンクは4文字以上で指定してください。")
	}
	return nil
}
