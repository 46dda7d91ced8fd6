// Package model はドメインモデルを定義する。
package model

import "time"

// Posting はフィードから取得した個々の記事を表す。
// linkがグローバル一意。updated_atはUPSERTのたびに前進する。
type Posting struct {
	PK          int64
	Link        string
	Title       string
	Description string
	Author      string
	PublishedAt time.Time
	UpdatedAt   time.Time
	FeedID      int64
}

// PostingSnapshot はFetcherが生成する記事の正規化済みスナップショット。
type PostingSnapshot struct {
	Link        string
	Title       string
	Description string
	Author      string
	PublishedAt time.Time
}

// PostingOrder は記事一覧の並び順を表す。
type PostingOrder string

const (
	// OrderLastUpdateAsc はupdated_at昇順。
	OrderLastUpdateAsc PostingOrder = "last_update"
	// OrderLastUpdateDesc はupdated_at降順（デフォルト）。
	OrderLastUpdateDesc PostingOrder = "-last_update"
)

// ParsePostingOrder はクエリパラメータの並び順指定を解釈する。
// 未指定または未知の値の場合は降順を返す。
func ParsePostingOrder(s string) PostingOrder {
	if s == string(OrderLastUpdateAsc) {
		return OrderLastUpdateAsc
	}
	return OrderLastUpdateDesc
}

// PostingFilter は記事一覧のフィルタ条件を表す。
// FeedLink / IsRead はnilの場合その条件を適用しない。
type PostingFilter struct {
	FeedLink *string
	IsRead   *bool
	Order    PostingOrder
	Offset   int
	Limit    int
}
