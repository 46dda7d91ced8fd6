package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
)

// PostgresPostingRepo はPostgreSQLを使用した記事リポジトリ。
// 記事本体の検索と、ユーザーごとの既読状態の操作を提供する。
type PostgresPostingRepo struct {
	db *sql.DB
}

// NewPostgresPostingRepo はPostgresPostingRepoを生成する。
func NewPostgresPostingRepo(db *sql.DB) *PostgresPostingRepo {
	return &PostgresPostingRepo{db: db}
}

// FindByLink はリンクで記事を検索する。見つからない場合はnilを返す。
func (r *PostgresPostingRepo) FindByLink(ctx context.Context, link string) (*model.Posting, error) {
	posting := &model.Posting{}

	err := r.db.QueryRowContext(ctx,
		`SELECT pk, link, title, description, author, published_at, updated_at, feed_id
		 FROM postings WHERE link = $1`,
		link,
	).Scan(
		&posting.PK, &posting.Link, &posting.Title, &posting.Description,
		&posting.Author, &posting.PublishedAt, &posting.UpdatedAt, &posting.FeedID,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リンクによる記事の検索に失敗しました: %w", err)
	}

	return posting, nil
}

// ListFollowed はユーザーがフォロー中かつactiveなフィードの記事を返す。
// フィードリンク指定、既読状態、updated_atの並び順、offset/limitを適用する。
func (r *PostgresPostingRepo) ListFollowed(ctx context.Context, userPK int64, filter model.PostingFilter) ([]model.Posting, error) {
	query := `SELECT p.pk, p.link, p.title, p.description, p.author, p.published_at, p.updated_at, p.feed_id
	 FROM postings p
	 INNER JOIN feeds f ON f.pk = p.feed_id
	 INNER JOIN user_feed uf ON uf.feed_pk = f.pk AND uf.user_pk = $1
	 WHERE f.active = TRUE`

	args := []any{userPK}

	if filter.FeedLink != nil {
		args = append(args, *filter.FeedLink)
		query += fmt.Sprintf(" AND f.link = $%d", len(args))
	}

	if filter.IsRead != nil {
		exists := "EXISTS"
		if !*filter.IsRead {
			exists = "NOT EXISTS"
		}
		query += fmt.Sprintf(
			" AND %s (SELECT 1 FROM read_postings rp WHERE rp.user_pk = $1 AND rp.posting_pk = p.pk)",
			exists,
		)
	}

	if filter.Order == model.OrderLastUpdateAsc {
		query += " ORDER BY p.updated_at ASC"
	} else {
		query += " ORDER BY p.updated_at DESC"
	}

	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		var posting model.Posting
		if err := rows.Scan(
			&posting.PK, &posting.Link, &posting.Title, &posting.Description,
			&posting.Author, &posting.PublishedAt, &posting.UpdatedAt, &posting.FeedID,
		); err != nil {
			return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
		}
		postings = append(postings, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return postings, nil
}

// MarkRead は既読行を挿入する。既に存在する場合は何もしない（冪等）。
func (r *PostgresPostingRepo) MarkRead(ctx context.Context, userPK, postingPK int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO read_postings (user_pk, posting_pk) VALUES ($1, $2)
		 ON CONFLICT (user_pk, posting_pk) DO NOTHING`,
		userPK, postingPK,
	)
	if err != nil {
		return fmt.Errorf("既読状態の登録に失敗しました: %w", err)
	}
	return nil
}

// MarkUnread は指定ユーザーの既読行を削除する。
// (user_pk, posting_pk) でスコープし、他ユーザーの既読状態には影響しない。
func (r *PostgresPostingRepo) MarkUnread(ctx context.Context, userPK, postingPK int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM read_postings WHERE user_pk = $1 AND posting_pk = $2`,
		userPK, postingPK,
	)
	if err != nil {
		return fmt.Errorf("既読状態の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PostingRepository = (*PostgresPostingRepo)(nil)
