package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/feedcloud/internal/fetch"
	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/security"
)

// mockFetchClient はfetch.Clientのテスト用モック。
type mockFetchClient struct {
	feed     model.FeedSnapshot
	postings []model.PostingSnapshot
	err      error
}

func (m *mockFetchClient) Fetch(_ context.Context, _ string) (model.FeedSnapshot, []model.PostingSnapshot, error) {
	return m.feed, m.postings, m.err
}

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	upsertFunc   func(ctx context.Context, feed model.FeedSnapshot, postings []model.PostingSnapshot) (int64, error)
	upsertCalled bool
}

func (m *mockFeedRepo) UpsertWithPostings(ctx context.Context, feed model.FeedSnapshot, postings []model.PostingSnapshot) (int64, error) {
	m.upsertCalled = true
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, feed, postings)
	}
	return 1, nil
}

func (m *mockFeedRepo) FindByPK(_ context.Context, _ int64) (*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) FindByLink(_ context.Context, _ string) (*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListActive(_ context.Context) ([]model.ScheduledFeed, error) {
	return nil, nil
}

func (m *mockFeedRepo) SetActive(_ context.Context, _ int64, _ bool) error {
	return nil
}

// nopCollector はMetricsCollectorのテスト用no-op実装。
type nopCollector struct{}

func (nopCollector) RecordFetchSuccess()                {}
func (nopCollector) RecordFetchFailure()                {}
func (nopCollector) RecordFetchLatency(_ time.Duration) {}
func (nopCollector) RecordHTTPStatus(_ int)             {}
func (nopCollector) RecordPostingsUpserted(_ int)       {}
func (nopCollector) RecordSweep(_ int)                  {}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

func TestIngestor_Ingest_Success(t *testing.T) {
	fetcher := &mockFetchClient{
		feed: model.FeedSnapshot{
			Link:   "https://example.com/feed.xml",
			Title:  "Test Feed",
			Active: true,
		},
		postings: []model.PostingSnapshot{
			{Link: "https://example.com/a1", Title: "Article 1"},
		},
	}

	var upsertedFeed model.FeedSnapshot
	feedRepo := &mockFeedRepo{
		upsertFunc: func(_ context.Context, feed model.FeedSnapshot, _ []model.PostingSnapshot) (int64, error) {
			upsertedFeed = feed
			return 42, nil
		},
	}

	ingestor := NewIngestor(fetcher, feedRepo, security.NewContentSanitizer(), newTestLogger(), nopCollector{})

	pk, err := ingestor.Ingest(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Ingest() がエラーを返した: %v", err)
	}
	if pk != 42 {
		t.Errorf("pk = %d, want 42", pk)
	}
	if upsertedFeed.Title != "Test Feed" {
		t.Errorf("UPSERTされたタイトル = %q", upsertedFeed.Title)
	}
}

func TestIngestor_Ingest_SanitizesContent(t *testing.T) {
	fetcher := &mockFetchClient{
		feed: model.FeedSnapshot{
			Link:        "https://example.com/feed.xml",
			Title:       `<script>alert("x")</script>Feed`,
			Description: "<b>説明</b>",
			Active:      true,
		},
		postings: []model.PostingSnapshot{
			{
				Link:        "https://example.com/a1",
				Title:       "<i>Article</i>",
				Description: `<iframe src="https://evil.example"></iframe>本文`,
				Author:      "<u>taro</u>",
			},
		},
	}

	var gotFeed model.FeedSnapshot
	var gotPostings []model.PostingSnapshot
	feedRepo := &mockFeedRepo{
		upsertFunc: func(_ context.Context, feed model.FeedSnapshot, postings []model.PostingSnapshot) (int64, error) {
			gotFeed = feed
			gotPostings = postings
			return 1, nil
		},
	}

	ingestor := NewIngestor(fetcher, feedRepo, security.NewContentSanitizer(), newTestLogger(), nopCollector{})

	if _, err := ingestor.Ingest(context.Background(), "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Ingest() がエラーを返した: %v", err)
	}

	if gotFeed.Title != "Feed" {
		t.Errorf("feed.Title = %q, want %q", gotFeed.Title, "Feed")
	}
	if gotFeed.Description != "説明" {
		t.Errorf("feed.Description = %q, want %q", gotFeed.Description, "説明")
	}
	if gotPostings[0].Title != "Article" {
		t.Errorf("posting.Title = %q, want %q", gotPostings[0].Title, "Article")
	}
	if gotPostings[0].Description != "本文" {
		t.Errorf("posting.Description = %q, want %q", gotPostings[0].Description, "本文")
	}
	if gotPostings[0].Author != "taro" {
		t.Errorf("posting.Author = %q, want %q", gotPostings[0].Author, "taro")
	}
}

func TestIngestor_Ingest_FetchFailureDoesNotTouchStore(t *testing.T) {
	fetcher := &mockFetchClient{err: fetch.ErrFeedUnavailable}
	feedRepo := &mockFeedRepo{}

	ingestor := NewIngestor(fetcher, feedRepo, security.NewContentSanitizer(), newTestLogger(), nopCollector{})

	pk, err := ingestor.Ingest(context.Background(), "https://example.com/feed.xml")
	if !errors.Is(err, fetch.ErrFeedUnavailable) {
		t.Errorf("err = %v, want ErrFeedUnavailable", err)
	}
	if pk != 0 {
		t.Errorf("pk = %d, want 0", pk)
	}
	// フェッチ失敗時はストアに触れないこと
	if feedRepo.upsertCalled {
		t.Error("フェッチ失敗時に UpsertWithPostings が呼ばれてはならない")
	}
}

func TestIngestor_Ingest_UpsertFailurePropagates(t *testing.T) {
	fetcher := &mockFetchClient{
		feed: model.FeedSnapshot{Link: "https://example.com/feed.xml", Active: true},
	}
	storeErr := errors.New("db down")
	feedRepo := &mockFeedRepo{
		upsertFunc: func(_ context.Context, _ model.FeedSnapshot, _ []model.PostingSnapshot) (int64, error) {
			return 0, storeErr
		},
	}

	ingestor := NewIngestor(fetcher, feedRepo, security.NewContentSanitizer(), newTestLogger(), nopCollector{})

	if _, err := ingestor.Ingest(context.Background(), "https://example.com/feed.xml"); !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want %v", err, storeErr)
	}
}
