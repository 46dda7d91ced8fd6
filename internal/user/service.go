// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Create は新規ユーザーを作成する。
// ユーザー名が短すぎる場合はバリデーションエラー、
// 重複している場合はUSER_ALREADY_EXISTSを返す。
func (s *Service) Create(ctx context.Context, username string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}

	created, err := s.userRepo.Create(ctx, username)
	if err != nil {
		return nil, err
	}

	return created, nil
}

// List はユーザー一覧をフォロー中フィード付きで返す。
func (s *Service) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
