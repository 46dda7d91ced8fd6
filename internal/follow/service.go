// Package follow はフォロー関係と既読状態のドメインロジックを提供する。
package follow

import (
	"context"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/ingest"
	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Service はユーザー視点のフィード操作のサービス層。
// フォロー、フォロー解除、既読/未読化、記事一覧、強制更新を提供する。
type Service struct {
	userRepo    repository.UserRepository
	feedRepo    repository.FeedRepository
	postingRepo repository.PostingRepository
	followRepo  repository.FollowRepository
	ingestor    ingest.FeedIngestor
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	feedRepo repository.FeedRepository,
	postingRepo repository.PostingRepository,
	followRepo repository.FollowRepository,
	ingestor ingest.FeedIngestor,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		feedRepo:    feedRepo,
		postingRepo: postingRepo,
		followRepo:  followRepo,
		ingestor:    ingestor,
		logger:      logger,
	}
}

// Follow はユーザーに指定リンクのフィードをフォローさせる。
// 既にフォロー済みの場合はフェッチせずに既存フィードをそのまま返す（冪等）。
// 新規の場合はフェッチして取り込み、フォロー行を挿入した上で
// 記事付きのフィードを返す。
func (s *Service) Follow(ctx context.Context, username, link string) (*model.Feed, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	// フォロー済みならフェッチしない
	if existing, err := s.feedRepo.FindByLink(ctx, link); err != nil {
		return nil, err
	} else if existing != nil {
		following, err := s.followRepo.IsFollowing(ctx, user.PK, existing.PK)
		if err != nil {
			return nil, err
		}
		if following {
			return s.feedRepo.FindByPK(ctx, existing.PK)
		}
	}

	// 新規フォローは最新の記事を見せるため必ずフェッチする
	feedPK, err := s.ingestor.Ingest(ctx, link)
	if err != nil {
		s.logger.Warn("フォロー時の取り込みに失敗しました",
			slog.String("username", username),
			slog.String("link", link),
		)
		return nil, model.NewFetchFailedError(link)
	}

	if err := s.followRepo.Follow(ctx, user.PK, feedPK); err != nil {
		return nil, err
	}

	return s.feedRepo.FindByPK(ctx, feedPK)
}

// Unfollow はユーザーのフォローを解除する。
// フォロー行と、対象フィードの記事に対する当該ユーザーの既読行を
// 同一論理操作で削除する。フィードと記事の行自体は残る。
func (s *Service) Unfollow(ctx context.Context, username, link string) error {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewUserNotFoundError(username)
	}

	feed, err := s.feedRepo.FindByLink(ctx, link)
	if err != nil {
		return err
	}
	if feed == nil {
		return model.NewFeedNotFoundError(link)
	}

	return s.followRepo.Unfollow(ctx, user.PK, feed.PK)
}

// MarkRead は記事をユーザーの既読にする。
// ユーザーが記事の属するフィードをフォローしている場合のみ許可される。
// 既に既読の場合は何もしない（冪等）。
func (s *Service) MarkRead(ctx context.Context, username, postingLink string) error {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewUserNotFoundError(username)
	}

	posting, err := s.postingRepo.FindByLink(ctx, postingLink)
	if err != nil {
		return err
	}
	if posting == nil {
		return model.NewPostingNotFoundError(postingLink)
	}

	following, err := s.followRepo.IsFollowing(ctx, user.PK, posting.FeedID)
	if err != nil {
		return err
	}
	if !following {
		return model.NewNotAllowedError(postingLink)
	}

	return s.postingRepo.MarkRead(ctx, user.PK, posting.PK)
}

// MarkUnread は記事をユーザーの未読に戻す。
// 削除は (user, posting) でスコープされ、他ユーザーの既読状態には影響しない。
func (s *Service) MarkUnread(ctx context.Context, username, postingLink string) error {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewUserNotFoundError(username)
	}

	posting, err := s.postingRepo.FindByLink(ctx, postingLink)
	if err != nil {
		return err
	}
	if posting == nil {
		return model.NewPostingNotFoundError(postingLink)
	}

	return s.postingRepo.MarkUnread(ctx, user.PK, posting.PK)
}

// FilterPostings はユーザーがフォロー中かつactiveなフィードの記事を
// フィルタ条件付きで返す。
func (s *Service) FilterPostings(ctx context.Context, username string, filter model.PostingFilter) ([]model.Posting, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	return s.postingRepo.ListFollowed(ctx, user.PK, filter)
}

// ForceUpdate は非活性化されたフィードも含めて取り込みを再実行する。
// 成功時はフォロー行を挿入し（既存なら何もしない）、UPSERTにより
// フィードは再活性化される。
func (s *Service) ForceUpdate(ctx context.Context, username, link string) error {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewUserNotFoundError(username)
	}

	feedPK, err := s.ingestor.Ingest(ctx, link)
	if err != nil {
		return model.NewUpdateFailedError(link)
	}

	return s.followRepo.Follow(ctx, user.PK, feedPK)
}
