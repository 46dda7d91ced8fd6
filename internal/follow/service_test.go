package follow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hitoshi/feedcloud/internal/fetch"
	"github.com/hitoshi/feedcloud/internal/model"
)

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	findFunc func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.findFunc(ctx, username)
}

func (m *mockUserRepo) Create(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) List(_ context.Context, _, _ int) ([]*model.User, error) {
	return nil, nil
}

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	findByPKFunc   func(ctx context.Context, pk int64) (*model.Feed, error)
	findByLinkFunc func(ctx context.Context, link string) (*model.Feed, error)
}

func (m *mockFeedRepo) UpsertWithPostings(_ context.Context, _ model.FeedSnapshot, _ []model.PostingSnapshot) (int64, error) {
	return 0, nil
}

func (m *mockFeedRepo) FindByPK(ctx context.Context, pk int64) (*model.Feed, error) {
	if m.findByPKFunc != nil {
		return m.findByPKFunc(ctx, pk)
	}
	return nil, nil
}

func (m *mockFeedRepo) FindByLink(ctx context.Context, link string) (*model.Feed, error) {
	if m.findByLinkFunc != nil {
		return m.findByLinkFunc(ctx, link)
	}
	return nil, nil
}

func (m *mockFeedRepo) ListActive(_ context.Context) ([]model.ScheduledFeed, error) {
	return nil, nil
}

func (m *mockFeedRepo) SetActive(_ context.Context, _ int64, _ bool) error {
	return nil
}

// mockPostingRepo はPostingRepositoryのテスト用モック。
type mockPostingRepo struct {
	findByLinkFunc   func(ctx context.Context, link string) (*model.Posting, error)
	listFollowedFunc func(ctx context.Context, userPK int64, filter model.PostingFilter) ([]model.Posting, error)
	markReadCalls    []int64
	markUnreadCalls  []int64
}

func (m *mockPostingRepo) FindByLink(ctx context.Context, link string) (*model.Posting, error) {
	if m.findByLinkFunc != nil {
		return m.findByLinkFunc(ctx, link)
	}
	return nil, nil
}

func (m *mockPostingRepo) ListFollowed(ctx context.Context, userPK int64, filter model.PostingFilter) ([]model.Posting, error) {
	if m.listFollowedFunc != nil {
		return m.listFollowedFunc(ctx, userPK, filter)
	}
	return nil, nil
}

func (m *mockPostingRepo) MarkRead(_ context.Context, _, postingPK int64) error {
	m.markReadCalls = append(m.markReadCalls, postingPK)
	return nil
}

func (m *mockPostingRepo) MarkUnread(_ context.Context, _, postingPK int64) error {
	m.markUnreadCalls = append(m.markUnreadCalls, postingPK)
	return nil
}

// mockFollowRepo はFollowRepositoryのテスト用モック。
type mockFollowRepo struct {
	following     bool
	followCalls   []int64
	unfollowCalls []int64
}

func (m *mockFollowRepo) Follow(_ context.Context, _, feedPK int64) error {
	m.followCalls = append(m.followCalls, feedPK)
	return nil
}

func (m *mockFollowRepo) Unfollow(_ context.Context, _, feedPK int64) error {
	m.unfollowCalls = append(m.unfollowCalls, feedPK)
	return nil
}

func (m *mockFollowRepo) IsFollowing(_ context.Context, _, _ int64) (bool, error) {
	return m.following, nil
}

// mockIngestor はFeedIngestorのテスト用モック。
type mockIngestor struct {
	pk        int64
	err       error
	callCount int
}

func (m *mockIngestor) Ingest(_ context.Context, _ string) (int64, error) {
	m.callCount++
	return m.pk, m.err
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

// existingUser はテストで共通に使うユーザー。
var existingUser = &model.User{PK: 1, Username: "taro"}

func userRepoWith(user *model.User) *mockUserRepo {
	return &mockUserRepo{
		findFunc: func(_ context.Context, username string) (*model.User, error) {
			if user != nil && username == user.Username {
				return user, nil
			}
			return nil, nil
		},
	}
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- Follow ---

func TestService_Follow_UnknownUser(t *testing.T) {
	s := NewService(userRepoWith(nil), &mockFeedRepo{}, &mockPostingRepo{}, &mockFollowRepo{}, &mockIngestor{}, newTestLogger())

	_, err := s.Follow(context.Background(), "nobody", "https://example.com/feed.xml")
	expectCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_Follow_NewFeedIngestsAndFollows(t *testing.T) {
	ingestor := &mockIngestor{pk: 10}
	followRepo := &mockFollowRepo{}
	feedRepo := &mockFeedRepo{
		findByPKFunc: func(_ context.Context, pk int64) (*model.Feed, error) {
			return &model.Feed{PK: pk, Link: "https://example.com/feed.xml", Active: true,
				Postings: []model.Posting{{PK: 100, Link: "https://example.com/a1"}}}, nil
		},
	}

	s := NewService(userRepoWith(existingUser), feedRepo, &mockPostingRepo{}, followRepo, ingestor, newTestLogger())

	feed, err := s.Follow(context.Background(), "taro", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Follow() がエラーを返した: %v", err)
	}

	if ingestor.callCount != 1 {
		t.Errorf("Ingest 呼び出し回数 = %d, want 1", ingestor.callCount)
	}
	if len(followRepo.followCalls) != 1 || followRepo.followCalls[0] != 10 {
		t.Errorf("Follow 呼び出し = %v, want [10]", followRepo.followCalls)
	}
	if len(feed.Postings) != 1 {
		t.Errorf("記事数 = %d, want 1", len(feed.Postings))
	}
}

func TestService_Follow_AlreadyFollowedSkipsFetch(t *testing.T) {
	ingestor := &mockIngestor{pk: 10}
	followRepo := &mockFollowRepo{following: true}
	feedRepo := &mockFeedRepo{
		findByLinkFunc: func(_ context.Context, link string) (*model.Feed, error) {
			return &model.Feed{PK: 10, Link: link, Active: true}, nil
		},
		findByPKFunc: func(_ context.Context, pk int64) (*model.Feed, error) {
			return &model.Feed{PK: pk, Link: "https://example.com/feed.xml", Active: true}, nil
		},
	}

	s := NewService(userRepoWith(existingUser), feedRepo, &mockPostingRepo{}, followRepo, ingestor, newTestLogger())

	feed, err := s.Follow(context.Background(), "taro", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Follow() がエラーを返した: %v", err)
	}

	// フォロー済みの場合はフェッチも再フォローも行われないこと（冪等）
	if ingestor.callCount != 0 {
		t.Errorf("Ingest 呼び出し回数 = %d, want 0", ingestor.callCount)
	}
	if len(followRepo.followCalls) != 0 {
		t.Errorf("Follow が呼ばれてはならない: %v", followRepo.followCalls)
	}
	if feed.PK != 10 {
		t.Errorf("feed.PK = %d, want 10", feed.PK)
	}
}

func TestService_Follow_FetchFailure(t *testing.T) {
	ingestor := &mockIngestor{err: fetch.ErrFeedUnavailable}
	followRepo := &mockFollowRepo{}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, &mockPostingRepo{}, followRepo, ingestor, newTestLogger())

	_, err := s.Follow(context.Background(), "taro", "https://example.com/broken.xml")
	expectCode(t, err, model.ErrCodeFetchFailed)

	if len(followRepo.followCalls) != 0 {
		t.Error("フェッチ失敗時にフォロー行が挿入されてはならない")
	}
}

// --- Unfollow ---

func TestService_Unfollow_Success(t *testing.T) {
	followRepo := &mockFollowRepo{}
	feedRepo := &mockFeedRepo{
		findByLinkFunc: func(_ context.Context, link string) (*model.Feed, error) {
			return &model.Feed{PK: 10, Link: link}, nil
		},
	}

	s := NewService(userRepoWith(existingUser), feedRepo, &mockPostingRepo{}, followRepo, &mockIngestor{}, newTestLogger())

	if err := s.Unfollow(context.Background(), "taro", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Unfollow() がエラーを返した: %v", err)
	}
	if len(followRepo.unfollowCalls) != 1 || followRepo.unfollowCalls[0] != 10 {
		t.Errorf("Unfollow 呼び出し = %v, want [10]", followRepo.unfollowCalls)
	}
}

func TestService_Unfollow_UnknownFeed(t *testing.T) {
	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, &mockPostingRepo{}, &mockFollowRepo{}, &mockIngestor{}, newTestLogger())

	err := s.Unfollow(context.Background(), "taro", "https://example.com/unknown.xml")
	expectCode(t, err, model.ErrCodeFeedNotFound)
}

// --- MarkRead / MarkUnread ---

func TestService_MarkRead_RequiresFollow(t *testing.T) {
	postingRepo := &mockPostingRepo{
		findByLinkFunc: func(_ context.Context, link string) (*model.Posting, error) {
			return &model.Posting{PK: 100, Link: link, FeedID: 10}, nil
		},
	}
	followRepo := &mockFollowRepo{following: false}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, postingRepo, followRepo, &mockIngestor{}, newTestLogger())

	err := s.MarkRead(context.Background(), "taro", "https://example.com/a1")
	expectCode(t, err, model.ErrCodeNotAllowed)

	if len(postingRepo.markReadCalls) != 0 {
		t.Error("フォローしていないフィードの記事が既読化されてはならない")
	}
}

func TestService_MarkRead_Success(t *testing.T) {
	postingRepo := &mockPostingRepo{
		findByLinkFunc: func(_ context.Context, link string) (*model.Posting, error) {
			return &model.Posting{PK: 100, Link: link, FeedID: 10}, nil
		},
	}
	followRepo := &mockFollowRepo{following: true}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, postingRepo, followRepo, &mockIngestor{}, newTestLogger())

	if err := s.MarkRead(context.Background(), "taro", "https://example.com/a1"); err != nil {
		t.Fatalf("MarkRead() がエラーを返した: %v", err)
	}
	if len(postingRepo.markReadCalls) != 1 || postingRepo.markReadCalls[0] != 100 {
		t.Errorf("MarkRead 呼び出し = %v, want [100]", postingRepo.markReadCalls)
	}
}

func TestService_MarkRead_UnknownPosting(t *testing.T) {
	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, &mockPostingRepo{}, &mockFollowRepo{}, &mockIngestor{}, newTestLogger())

	err := s.MarkRead(context.Background(), "taro", "https://example.com/unknown")
	expectCode(t, err, model.ErrCodePostingNotFound)
}

func TestService_MarkUnread_DoesNotRequireFollow(t *testing.T) {
	postingRepo := &mockPostingRepo{
		findByLinkFunc: func(_ context.Context, link string) (*model.Posting, error) {
			return &model.Posting{PK: 100, Link: link, FeedID: 10}, nil
		},
	}
	// フォロー解除後でも未読化できること
	followRepo := &mockFollowRepo{following: false}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, postingRepo, followRepo, &mockIngestor{}, newTestLogger())

	if err := s.MarkUnread(context.Background(), "taro", "https://example.com/a1"); err != nil {
		t.Fatalf("MarkUnread() がエラーを返した: %v", err)
	}
	if len(postingRepo.markUnreadCalls) != 1 || postingRepo.markUnreadCalls[0] != 100 {
		t.Errorf("MarkUnread 呼び出し = %v, want [100]", postingRepo.markUnreadCalls)
	}
}

// --- FilterPostings ---

func TestService_FilterPostings_PassesFilterThrough(t *testing.T) {
	feedLink := "https://example.com/feed.xml"
	isRead := false
	var gotFilter model.PostingFilter
	var gotUserPK int64

	postingRepo := &mockPostingRepo{
		listFollowedFunc: func(_ context.Context, userPK int64, filter model.PostingFilter) ([]model.Posting, error) {
			gotUserPK = userPK
			gotFilter = filter
			return []model.Posting{{PK: 100}}, nil
		},
	}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, postingRepo, &mockFollowRepo{}, &mockIngestor{}, newTestLogger())

	filter := model.PostingFilter{
		FeedLink: &feedLink,
		IsRead:   &isRead,
		Order:    model.OrderLastUpdateAsc,
		Offset:   5,
		Limit:    20,
	}

	postings, err := s.FilterPostings(context.Background(), "taro", filter)
	if err != nil {
		t.Fatalf("FilterPostings() がエラーを返した: %v", err)
	}

	if gotUserPK != existingUser.PK {
		t.Errorf("userPK = %d, want %d", gotUserPK, existingUser.PK)
	}
	if gotFilter.Order != model.OrderLastUpdateAsc || gotFilter.Offset != 5 || gotFilter.Limit != 20 {
		t.Errorf("filter = %+v", gotFilter)
	}
	if len(postings) != 1 {
		t.Errorf("記事数 = %d, want 1", len(postings))
	}
}

func TestService_FilterPostings_UnknownUser(t *testing.T) {
	s := NewService(userRepoWith(nil), &mockFeedRepo{}, &mockPostingRepo{}, &mockFollowRepo{}, &mockIngestor{}, newTestLogger())

	_, err := s.FilterPostings(context.Background(), "nobody", model.PostingFilter{})
	expectCode(t, err, model.ErrCodeUserNotFound)
}

// --- ForceUpdate ---

func TestService_ForceUpdate_Success(t *testing.T) {
	ingestor := &mockIngestor{pk: 10}
	followRepo := &mockFollowRepo{}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, &mockPostingRepo{}, followRepo, ingestor, newTestLogger())

	if err := s.ForceUpdate(context.Background(), "taro", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("ForceUpdate() がエラーを返した: %v", err)
	}
	if ingestor.callCount != 1 {
		t.Errorf("Ingest 呼び出し回数 = %d, want 1", ingestor.callCount)
	}
	// 成功時はフォロー行が挿入されること（既存なら冪等）
	if len(followRepo.followCalls) != 1 || followRepo.followCalls[0] != 10 {
		t.Errorf("Follow 呼び出し = %v, want [10]", followRepo.followCalls)
	}
}

func TestService_ForceUpdate_FetchFailure(t *testing.T) {
	ingestor := &mockIngestor{err: fetch.ErrFeedUnavailable}

	s := NewService(userRepoWith(existingUser), &mockFeedRepo{}, &mockPostingRepo{}, &mockFollowRepo{}, ingestor, newTestLogger())

	err := s.ForceUpdate(context.Background(), "taro", "https://example.com/broken.xml")
	expectCode(t, err, model.ErrCodeUpdateFailed)
}
