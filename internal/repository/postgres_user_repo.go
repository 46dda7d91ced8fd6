package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/feedcloud/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}

	err := r.db.QueryRowContext(ctx,
		`SELECT pk, username FROM users WHERE username = $1`,
		username,
	).Scan(&user.PK, &user.Username)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
// ユーザー名が重複している場合は *model.APIError (USER_ALREADY_EXISTS) を返す。
func (r *PostgresUserRepo) Create(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{Username: username}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username) VALUES ($1) RETURNING pk`,
		username,
	).Scan(&user.PK)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return nil, model.NewUserAlreadyExistsError(username)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return user, nil
}

// List はユーザー一覧をフォロー中フィード付きで返す。
// ユーザーをpk順にページングした後、フォロー中フィードを1クエリでまとめてロードする。
func (r *PostgresUserRepo) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pk, username FROM users ORDER BY pk OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	byPK := make(map[int64]*model.User)
	var userPKs []int64

	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.PK, &user.Username); err != nil {
			return nil, fmt.Errorf("ユーザー一覧の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
		byPK[user.PK] = user
		userPKs = append(userPKs, user.PK)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}

	if len(users) == 0 {
		return users, nil
	}

	// フォロー中フィードのeager load
	feedRows, err := r.db.QueryContext(ctx,
		`SELECT uf.user_pk, f.pk, f.link, f.title, f.lang, f.copyright_text,
		        f.description, f.category, f.active, f.created_at
		 FROM user_feed uf
		 INNER JOIN feeds f ON f.pk = uf.feed_pk
		 WHERE uf.user_pk = ANY($1)
		 ORDER BY f.pk`,
		pq.Array(userPKs),
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー中フィードの取得に失敗しました: %w", err)
	}
	defer feedRows.Close()

	for feedRows.Next() {
		var userPK int64
		feed := model.Feed{}
		if err := feedRows.Scan(
			&userPK, &feed.PK, &feed.Link, &feed.Title, &feed.Lang,
			&feed.CopyrightText, &feed.Description, &feed.Category,
			&feed.Active, &feed.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("フォロー中フィードの読み取りに失敗しました: %w", err)
		}
		if user, ok := byPK[userPK]; ok {
			user.FollowedFeeds = append(user.FollowedFeeds, feed)
		}
	}
	if err := feedRows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー中フィードの走査に失敗しました: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
