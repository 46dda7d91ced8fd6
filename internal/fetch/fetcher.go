// Package fetch はリモートフィードの取得と正規化を提供する。
package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/model"
)

// ErrFeedUnavailable はフィード取得失敗を表す。
// トランスポートエラー、2xx以外のHTTPステータス、パース失敗のいずれも
// この単一のエラーに正規化され、呼び出し側は失敗種別を区別できない。
var ErrFeedUnavailable = errors.New("feed unavailable")

// Client はフィード取得のインターフェース。
type Client interface {
	// Fetch は指定リンクのフィードを取得し、正規化済みスナップショットを返す。
	// 失敗時はErrFeedUnavailableを返す。
	Fetch(ctx context.Context, link string) (model.FeedSnapshot, []model.PostingSnapshot, error)
}

// missingValue は欠損した文字列フィールドのデフォルト値。
const missingValue = "-"

// SSRFValidator はSSRF防止のインターフェース。
// フェッチ前の静的URL検証と、SSRF防止機能付きクライアントの生成を行う。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher は個別フィードのHTTP GETとgofeedによるパースを行う。
// リクエスト前にssrfGuardによるURL検証を行い、HTTPクライアントも
// ssrfGuardが生成するSSRF防止機能付きのものを使用する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	collector   metrics.MetricsCollector
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		collector:   collector,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は指定リンクのフィードを取得し、正規化済みスナップショットを返す。
// フィードのリンクには文書内のself-linkではなく要求したURLをそのまま使う。
func (f *Fetcher) Fetch(ctx context.Context, link string) (model.FeedSnapshot, []model.PostingSnapshot, error) {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(link); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		f.logger.Error("リクエストの作成に失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}

	req.Header.Set("User-Agent", "Feedcloud/1.0 Feed Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	client := f.ssrfGuard.NewSafeClient(f.timeout)
	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}
	defer resp.Body.Close()

	f.collector.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Error("2xx以外のHTTPステータスを受信しました",
			slog.String("link", link),
			slog.Int("http_status", resp.StatusCode),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return model.FeedSnapshot{}, nil, ErrFeedUnavailable
	}

	duration := time.Since(start)
	f.collector.RecordFetchSuccess()
	f.collector.RecordFetchLatency(duration)

	snapshot := convertFeed(link, parsedFeed)
	postings := convertItems(parsedFeed.Items)

	f.logger.Info("フィードフェッチが完了しました",
		slog.String("link", link),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("posting_count", len(postings)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return snapshot, postings, nil
}

// convertFeed はgofeedのフィードをFeedSnapshotに正規化する。
// スナップショットは常にactive=trueで生成される。
func convertFeed(link string, parsed *gofeed.Feed) model.FeedSnapshot {
	category := missingValue
	if len(parsed.Categories) > 0 && parsed.Categories[0] != "" {
		category = parsed.Categories[0]
	}

	return model.FeedSnapshot{
		Link:          link,
		Title:         orMissing(parsed.Title),
		Lang:          orMissing(parsed.Language),
		CopyrightText: orMissing(parsed.Copyright),
		Description:   orMissing(parsed.Description),
		Category:      category,
		Active:        true,
	}
}

// convertItems はgofeedの記事をPostingSnapshotに正規化する。
// published_atはUTCに変換する。公開日時が無い場合は更新日時、
// それも無い場合は現在時刻を代用する。
func convertItems(items []*gofeed.Item) []model.PostingSnapshot {
	postings := make([]model.PostingSnapshot, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		author := missingValue
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		} else if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
			author = item.Authors[0].Name
		}

		publishedAt := time.Now().UTC()
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed.UTC()
		}

		postings = append(postings, model.PostingSnapshot{
			Link:        orMissing(item.Link),
			Title:       orMissing(item.Title),
			Description: orMissing(item.Description),
			Author:      author,
			PublishedAt: publishedAt,
		})
	}

	return postings
}

// orMissing は空文字列をデフォルト値"-"に置き換える。
func orMissing(s string) string {
	if s == "" {
		return missingValue
	}
	return s
}

// compile-time interface check
var _ Client = (*Fetcher)(nil)
