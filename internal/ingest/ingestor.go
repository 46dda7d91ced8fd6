// Package ingest はフェッチ結果のストアへの取り込みを提供する。
package ingest

import (
	"context"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/fetch"
	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/repository"
	"github.com/hitoshi/feedcloud/internal/security"
)

// FeedIngestor はフィード取り込みのインターフェース。
// スケジューラのリフレッシュタスクとフォローサービスの両方から使用される。
type FeedIngestor interface {
	// Ingest は指定リンクのフィードをフェッチし、フィードと記事群を
	// 単一トランザクションでUPSERTしてフィードのpkを返す。
	// フェッチ失敗時はストアに触れずに0とfetch.ErrFeedUnavailableを返す。
	Ingest(ctx context.Context, link string) (int64, error)
}

// Ingestor はFetcherとStoreを合成したFeedIngestorの実装。
// 取り込み前に記事のタイトル・概要・著者からHTMLタグを除去する。
type Ingestor struct {
	fetcher   fetch.Client
	feedRepo  repository.FeedRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewIngestor はIngestorの新しいインスタンスを生成する。
func NewIngestor(
	fetcher fetch.Client,
	feedRepo repository.FeedRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Ingestor {
	return &Ingestor{
		fetcher:   fetcher,
		feedRepo:  feedRepo,
		sanitizer: sanitizer,
		logger:    logger,
		collector: collector,
	}
}

// Ingest は指定リンクのフィードをフェッチしてUPSERTする。
func (i *Ingestor) Ingest(ctx context.Context, link string) (int64, error) {
	feed, postings, err := i.fetcher.Fetch(ctx, link)
	if err != nil {
		return 0, err
	}

	feed.Title = i.sanitizer.Sanitize(feed.Title)
	feed.Description = i.sanitizer.Sanitize(feed.Description)
	for idx := range postings {
		postings[idx].Title = i.sanitizer.Sanitize(postings[idx].Title)
		postings[idx].Description = i.sanitizer.Sanitize(postings[idx].Description)
		postings[idx].Author = i.sanitizer.Sanitize(postings[idx].Author)
	}

	feedPK, err := i.feedRepo.UpsertWithPostings(ctx, feed, postings)
	if err != nil {
		return 0, err
	}

	i.collector.RecordPostingsUpserted(len(postings))
	i.logger.Info("フィードを取り込みました",
		slog.Int64("feed_pk", feedPK),
		slog.String("link", link),
		slog.Int("posting_count", len(postings)),
	)

	return feedPK, nil
}

// compile-time interface check
var _ FeedIngestor = (*Ingestor)(nil)
