// Package refresh はフィードのバックグラウンドリフレッシュ処理を提供する。
// スケジューラと、フィード単位のリトライ/バックオフ状態機械を含む。
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedcloud/internal/fetch"
	"github.com/hitoshi/feedcloud/internal/ingest"
	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// defaultBackoff は2回目以降の試行前のスリープ時間。
// 1回目は即時、2回目は2分後、3回目は5分後に実行される。
// 3回目の失敗後は追加のスリープなしで終了する。
var defaultBackoff = []time.Duration{2 * time.Minute, 5 * time.Minute}

// Task は1つのフィードのリフレッシュを最大3回試行する状態機械。
// 最初の失敗でフィードを即時非活性化し、リトライ中に次のスイープが
// 同じフィードを再スケジュールするのを防ぐ。いずれかの試行が成功すると
// フィードは再活性化される。
type Task struct {
	id       string
	feed     model.ScheduledFeed
	ingestor ingest.FeedIngestor
	feedRepo repository.FeedRepository
	logger   *slog.Logger
	backoff  []time.Duration
}

// NewTask はTaskの新しいインスタンスを生成する。
// backoffがnilの場合はデフォルトのスケジュール（2分、5分）を使用する。
func NewTask(
	feed model.ScheduledFeed,
	ingestor ingest.FeedIngestor,
	feedRepo repository.FeedRepository,
	logger *slog.Logger,
	backoff []time.Duration,
) *Task {
	if backoff == nil {
		backoff = defaultBackoff
	}
	return &Task{
		id:       uuid.New().String(),
		feed:     feed,
		ingestor: ingestor,
		feedRepo: feedRepo,
		logger:   logger,
		backoff:  backoff,
	}
}

// Run はリフレッシュを試行する。
// フェッチ失敗は全て等価に扱いリトライするが、ストア側のエラーは
// リトライせずそのまま伝播して終了する（活性状態はその時点のまま残る）。
func (t *Task) Run(ctx context.Context) error {
	logger := t.logger.With(
		slog.String("task_id", t.id),
		slog.Int64("feed_pk", t.feed.PK),
		slog.String("feed_link", t.feed.Link),
	)

	for attempt := 0; attempt <= len(t.backoff); attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, t.backoff[attempt-1]); err != nil {
				return err
			}
		}

		feedPK, err := t.ingestor.Ingest(ctx, t.feed.Link)
		if err == nil {
			// UPSERTはactive=trueのスナップショットを書き込むが、
			// 再活性化はここでも明示的に行う
			if err := t.feedRepo.SetActive(ctx, feedPK, true); err != nil {
				return err
			}
			logger.Info("リフレッシュに成功しました",
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		if !errors.Is(err, fetch.ErrFeedUnavailable) {
			logger.Error("ストアの更新に失敗したためタスクを終了します",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			return err
		}

		if attempt == 0 {
			// 最初の失敗で即時非活性化し、リトライ中の再スケジュールを防ぐ
			if err := t.feedRepo.SetActive(ctx, t.feed.PK, false); err != nil {
				return err
			}
		}

		logger.Warn("リフレッシュ試行が失敗しました",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", len(t.backoff)+1),
		)
	}

	logger.Warn("全試行が失敗したためフィードは非活性のままです")
	return nil
}

// sleepContext はコンテキストのキャンセルに反応するスリープを行う。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
