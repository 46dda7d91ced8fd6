package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// UpsertWithPostings はフィードとその記事群を単一トランザクションでUPSERTする。
// 自然キー（link）の一意制約を衝突判定に使い、衝突時は非キー列を全て更新する。
// 記事は削除せずUPSERTのみ行うため、リンク単位の既読状態はリフレッシュ後も残る。
func (r *PostgresFeedRepo) UpsertWithPostings(ctx context.Context, feed model.FeedSnapshot, postings []model.PostingSnapshot) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var feedPK int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO feeds (link, title, lang, copyright_text, description, category, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (link) DO UPDATE SET
		    title = EXCLUDED.title,
		    lang = EXCLUDED.lang,
		    copyright_text = EXCLUDED.copyright_text,
		    description = EXCLUDED.description,
		    category = EXCLUDED.category,
		    active = EXCLUDED.active
		 RETURNING pk`,
		feed.Link, feed.Title, feed.Lang, feed.CopyrightText,
		feed.Description, feed.Category, feed.Active,
	).Scan(&feedPK)
	if err != nil {
		return 0, fmt.Errorf("フィードのUPSERTに失敗しました: %w", err)
	}

	for _, posting := range postings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO postings (link, title, description, author, published_at, updated_at, feed_id)
			 VALUES ($1, $2, $3, $4, $5, now(), $6)
			 ON CONFLICT (link) DO UPDATE SET
			    title = EXCLUDED.title,
			    description = EXCLUDED.description,
			    author = EXCLUDED.author,
			    published_at = EXCLUDED.published_at,
			    updated_at = now(),
			    feed_id = EXCLUDED.feed_id`,
			posting.Link, posting.Title, posting.Description,
			posting.Author, posting.PublishedAt, feedPK,
		)
		if err != nil {
			return 0, fmt.Errorf("記事のUPSERTに失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return feedPK, nil
}

// FindByPK は指定pkのフィードを記事付きで取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByPK(ctx context.Context, pk int64) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT pk, link, title, lang, copyright_text, description, category, active, created_at
		 FROM feeds WHERE pk = $1`,
		pk,
	).Scan(
		&feed.PK, &feed.Link, &feed.Title, &feed.Lang, &feed.CopyrightText,
		&feed.Description, &feed.Category, &feed.Active, &feed.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	postings, err := r.listPostingsByFeed(ctx, feed.PK)
	if err != nil {
		return nil, err
	}
	feed.Postings = postings

	return feed, nil
}

// FindByLink はリンクでフィードを検索する。見つからない場合はnilを返す。
// 記事はロードしない。
func (r *PostgresFeedRepo) FindByLink(ctx context.Context, link string) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT pk, link, title, lang, copyright_text, description, category, active, created_at
		 FROM feeds WHERE link = $1`,
		link,
	).Scan(
		&feed.PK, &feed.Link, &feed.Title, &feed.Lang, &feed.CopyrightText,
		&feed.Description, &feed.Category, &feed.Active, &feed.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リンクによるフィードの検索に失敗しました: %w", err)
	}

	return feed, nil
}

// ListActive はactive=trueの全フィードを (pk, link, active) のタプルで返す。
func (r *PostgresFeedRepo) ListActive(ctx context.Context) ([]model.ScheduledFeed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pk, link, active FROM feeds WHERE active = TRUE ORDER BY pk`,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブフィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []model.ScheduledFeed
	for rows.Next() {
		var feed model.ScheduledFeed
		if err := rows.Scan(&feed.PK, &feed.Link, &feed.Active); err != nil {
			return nil, fmt.Errorf("アクティブフィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティブフィードの走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// SetActive はフィードの活性フラグを更新する。
// 該当行が存在しない場合もエラーにならない（no-op）。
func (r *PostgresFeedRepo) SetActive(ctx context.Context, pk int64, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET active = $2 WHERE pk = $1`,
		pk, active,
	)
	if err != nil {
		return fmt.Errorf("フィード活性フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// listPostingsByFeed はフィードに属する記事をpk順で取得する。
func (r *PostgresFeedRepo) listPostingsByFeed(ctx context.Context, feedPK int64) ([]model.Posting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pk, link, title, description, author, published_at, updated_at, feed_id
		 FROM postings WHERE feed_id = $1 ORDER BY pk`,
		feedPK,
	)
	if err != nil {
		return nil, fmt.Errorf("フィード記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		var posting model.Posting
		if err := rows.Scan(
			&posting.PK, &posting.Link, &posting.Title, &posting.Description,
			&posting.Author, &posting.PublishedAt, &posting.UpdatedAt, &posting.FeedID,
		); err != nil {
			return nil, fmt.Errorf("フィード記事の読み取りに失敗しました: %w", err)
		}
		postings = append(postings, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード記事の走査に失敗しました: %w", err)
	}

	return postings, nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
