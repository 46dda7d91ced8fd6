package security

import "github.com/microcosm-cc/bluemonday"

// ContentSanitizerService はフィード由来テキストのサニタイズ機能のインターフェース。
// 記事のタイトルや概要はプレーンテキストとして保存するため、
// 取り込み前に全てのHTMLタグを除去する。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したテキストを返す。
	// 空文字列の入力には空文字列を返し、同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグを一切許可しないため、scriptやiframeを含む
// あらゆるHTMLが除去され、テキストのみが残る。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
