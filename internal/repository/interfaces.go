// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/feedcloud/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複している場合は
	// *model.APIError (USER_ALREADY_EXISTS) を返す。
	Create(ctx context.Context, username string) (*model.User, error)

	// List はユーザー一覧をフォロー中フィード付きで返す。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
}

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// UpsertWithPostings はフィードとその記事群を単一トランザクションでUPSERTする。
	// フィードはlinkをキーに衝突時全列更新、各記事もlinkをキーに衝突時全列更新
	// （updated_atはnow()に前進、feed_idは親フィードのpkに更新）。
	// 戻り値はフィードのpk。
	UpsertWithPostings(ctx context.Context, feed model.FeedSnapshot, postings []model.PostingSnapshot) (int64, error)

	// FindByPK は指定pkのフィードを記事付きで取得する。見つからない場合はnilを返す。
	FindByPK(ctx context.Context, pk int64) (*model.Feed, error)

	// FindByLink はリンクでフィードを検索する。見つからない場合はnilを返す。
	FindByLink(ctx context.Context, link string) (*model.Feed, error)

	// ListActive はactive=trueの全フィードを (pk, link, active) のタプルで返す。
	ListActive(ctx context.Context) ([]model.ScheduledFeed, error)

	// SetActive はフィードの活性フラグを更新する。冪等であり、
	// 該当行が存在しない場合もエラーにならない（no-op）。
	SetActive(ctx context.Context, pk int64, active bool) error
}

// PostingRepository は記事データの永続化インターフェース。
type PostingRepository interface {
	// FindByLink はリンクで記事を検索する。見つからない場合はnilを返す。
	FindByLink(ctx context.Context, link string) (*model.Posting, error)

	// ListFollowed はユーザーがフォロー中かつactiveなフィードの記事を
	// フィルタ条件（フィードリンク、既読状態、並び順、ページング）で返す。
	ListFollowed(ctx context.Context, userPK int64, filter model.PostingFilter) ([]model.Posting, error)

	// MarkRead は既読行を挿入する。既に存在する場合は何もしない（冪等）。
	MarkRead(ctx context.Context, userPK, postingPK int64) error

	// MarkUnread は指定ユーザーの既読行を削除する。存在しない場合もエラーにならない。
	MarkUnread(ctx context.Context, userPK, postingPK int64) error
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Follow はフォロー行を挿入する。既に存在する場合は何もしない（冪等）。
	Follow(ctx context.Context, userPK, feedPK int64) error

	// Unfollow はフォロー行の削除と、対象フィードの記事に対する
	// 当該ユーザーの既読行の削除を単一トランザクションで行う。
	Unfollow(ctx context.Context, userPK, feedPK int64) error

	// IsFollowing はユーザーがフィードをフォロー中かを返す。
	IsFollowing(ctx context.Context, userPK, feedPK int64) (bool, error)
}
