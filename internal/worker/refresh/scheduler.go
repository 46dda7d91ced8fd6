package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/feedcloud/internal/ingest"
	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Scheduler はアクティブフィードの定期リフレッシュを駆動する制御ループ。
// interval間隔でアクティブフィードを列挙し、フィードごとにTaskを
// ゴルーチンとして起動する。Taskの完了は待たないため、複数分の
// バックオフを持つTaskは後続の複数スイープより長生きすることがある。
type Scheduler struct {
	feedRepo  repository.FeedRepository
	ingestor  ingest.FeedIngestor
	logger    *slog.Logger
	collector metrics.MetricsCollector
	interval  time.Duration

	// taskBackoff はTaskに渡すバックオフスケジュール。nilはデフォルト。
	taskBackoff []time.Duration

	// wg はシャットダウン時に実行中Taskの終了を待つために使う。
	wg sync.WaitGroup
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	ingestor ingest.FeedIngestor,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		feedRepo:  feedRepo,
		ingestor:  ingestor,
		logger:    logger,
		collector: collector,
		interval:  interval,
	}
}

// Start はスケジューラのループを開始する。
// コンテキストがキャンセルされるまでブロックし、キャンセル後は
// 実行中の全Taskの終了を待ってから返る。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)

	// 起動直後に1回実行
	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リフレッシュスケジューラを停止しています")
			s.wg.Wait()
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("スイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Sweep はアクティブフィードを1回列挙し、フィードごとにTaskを起動する。
// Taskは起動順に並ぶが以後は独立に進行し、このメソッドは完了を待たない。
func (s *Scheduler) Sweep(ctx context.Context) error {
	feeds, err := s.feedRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	s.collector.RecordSweep(len(feeds))

	if len(feeds) == 0 {
		s.logger.Info("リフレッシュ対象のフィードはありません")
		return nil
	}

	s.logger.Info("スイープを開始します",
		slog.Int("feed_count", len(feeds)),
	)

	for _, feed := range feeds {
		task := NewTask(feed, s.ingestor, s.feedRepo, s.logger, s.taskBackoff)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := task.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("リフレッシュタスクが失敗しました",
					slog.Int64("feed_pk", task.feed.PK),
					slog.String("feed_link", task.feed.Link),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	return nil
}
