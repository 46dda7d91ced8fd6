// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedcloud/internal/config"
	"github.com/hitoshi/feedcloud/internal/database"
	"github.com/hitoshi/feedcloud/internal/fetch"
	"github.com/hitoshi/feedcloud/internal/follow"
	"github.com/hitoshi/feedcloud/internal/handler"
	"github.com/hitoshi/feedcloud/internal/ingest"
	"github.com/hitoshi/feedcloud/internal/logger"
	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/repository"
	"github.com/hitoshi/feedcloud/internal/security"
	"github.com/hitoshi/feedcloud/internal/user"
	"github.com/hitoshi/feedcloud/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) *config.Config {
	logger.SetupDefault(w)
	return config.Load()
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg := Init(w)

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// ingestionPipeline はフェッチから取り込みまでの依存関係一式。
// serveとworkerの両モードで同じ構成を使う。
type ingestionPipeline struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
	ingestor  *ingest.Ingestor
}

// newIngestionPipeline はフェッチ・サニタイズ・UPSERTのパイプラインを構築する。
func newIngestionPipeline(cfg *config.Config, feedRepo repository.FeedRepository) *ingestionPipeline {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := fetch.NewFetcher(
		ssrfGuard, slog.Default(), collector,
		cfg.FetchTimeout, cfg.FetchMaxSize,
	)
	ingestor := ingest.NewIngestor(fetcher, feedRepo, sanitizer, slog.Default(), collector)

	return &ingestionPipeline{
		registry:  registry,
		collector: collector,
		ingestor:  ingestor,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGHUP、SIGINT、SIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベース接続のオープンに失敗しました: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("データベースへの疎通確認に失敗しました: %w", err)
	}

	slog.Info("データベース接続を確立しました")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	feedRepo := repository.NewPostgresFeedRepo(db)
	postingRepo := repository.NewPostgresPostingRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)

	// 3. 取り込みパイプラインの構築
	pipeline := newIngestionPipeline(cfg, feedRepo)

	// 4. ドメインサービスの初期化
	userService := user.NewService(userRepo)
	followService := follow.NewService(
		userRepo, feedRepo, postingRepo, followRepo,
		pipeline.ingestor, slog.Default(),
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		DB:          db,
		RateLimiter: rateLimiter,
		Gatherer:    pipeline.registry,

		UserService:   userService,
		FollowService: followService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("APIサーバーを起動します",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("サーバーのlistenに失敗しました", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("APIサーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗しました: %w", err)
	}

	slog.Info("APIサーバーを停止しました")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、リフレッシュスケジューラを起動する。
// SIGHUP、SIGINT、SIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベース接続のオープンに失敗しました: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("データベースへの疎通確認に失敗しました: %w", err)
	}

	slog.Info("データベース接続を確立しました (worker)")

	// 2. 取り込みパイプラインの構築
	feedRepo := repository.NewPostgresFeedRepo(db)
	pipeline := newIngestionPipeline(cfg, feedRepo)

	// 3. スケジューラの構築
	// スケジューラもパイプラインと同じコレクターに記録する
	scheduler := refresh.NewScheduler(
		feedRepo, pipeline.ingestor, slog.Default(), pipeline.collector, cfg.SchedulerInterval,
	)

	// 4. メトリクスサーバーの起動
	// ワーカーはAPIルーターを持たないため、専用ポートでスクレイプを受け付ける
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.Handler(pipeline.registry),
	}
	go func() {
		slog.Info("メトリクスサーバーを起動します",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("メトリクスサーバーのlistenに失敗しました", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("ワーカーをシャットダウンしています...")
		cancel()
	}()

	slog.Info("ワーカーを起動します",
		slog.Duration("scheduler_interval", cfg.SchedulerInterval),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("メトリクスサーバーのシャットダウンに失敗しました", slog.String("error", err.Error()))
	}

	slog.Info("ワーカーを停止しました")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("データベースマイグレーションを実行します",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}

	slog.Info("データベースマイグレーションが完了しました")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// canaryエンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/v1.0/canary/", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("ヘルスチェックに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヘルスチェックがステータス%dを返しました", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
