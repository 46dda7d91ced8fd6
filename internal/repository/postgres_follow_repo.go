package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFollowRepo はPostgreSQLを使用したフォロー関係リポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Follow はフォロー行を挿入する。既に存在する場合は何もしない（冪等）。
func (r *PostgresFollowRepo) Follow(ctx context.Context, userPK, feedPK int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_feed (user_pk, feed_pk) VALUES ($1, $2)
		 ON CONFLICT (user_pk, feed_pk) DO NOTHING`,
		userPK, feedPK,
	)
	if err != nil {
		return fmt.Errorf("フォローの登録に失敗しました: %w", err)
	}
	return nil
}

// Unfollow はフォロー行の削除と、対象フィードの記事に対する当該ユーザーの
// 既読行の削除を単一トランザクションで行う。
// Read(u, p) は Follow(u, p.feed) が存在する間のみ存在できるという不変条件を、
// 同一論理操作内の削除で維持する。
func (r *PostgresFollowRepo) Unfollow(ctx context.Context, userPK, feedPK int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM read_postings
		 WHERE user_pk = $1
		   AND posting_pk IN (SELECT pk FROM postings WHERE feed_id = $2)`,
		userPK, feedPK,
	)
	if err != nil {
		return fmt.Errorf("既読履歴の削除に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM user_feed WHERE user_pk = $1 AND feed_pk = $2`,
		userPK, feedPK,
	)
	if err != nil {
		return fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// IsFollowing はユーザーがフィードをフォロー中かを返す。
func (r *PostgresFollowRepo) IsFollowing(ctx context.Context, userPK, feedPK int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_feed WHERE user_pk = $1 AND feed_pk = $2)`,
		userPK, feedPK,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
