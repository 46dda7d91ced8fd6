package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	DB          DBPinger
	RateLimiter *middleware.RateLimiter
	Gatherer    prometheus.Gatherer

	UserService   UserServiceInterface
	FollowService FollowServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → CORS → RateLimit
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	canaryHandler := NewCanaryHandler(deps.DB)
	usersHandler := NewUsersHandler(deps.UserService)
	feedsHandler := NewFeedsHandler(deps.FollowService, deps.Logger)

	r.Route("/v1.0", func(r chi.Router) {
		// 死活監視
		r.Get("/canary/", canaryHandler.Check)

		// ユーザー管理
		r.Route("/users", func(r chi.Router) {
			r.Get("/", usersHandler.List)
			r.Post("/", usersHandler.Create)
		})

		// フィード操作
		r.Route("/feeds", func(r chi.Router) {
			r.Post("/follow", feedsHandler.Follow)
			r.Delete("/unfollow", feedsHandler.Unfollow)
			r.Patch("/postings/read", feedsHandler.MarkRead)
			r.Patch("/postings/unread", feedsHandler.MarkUnread)
			r.Get("/following/postings", feedsHandler.FilterPostings)
			r.Post("/feed/force-update", feedsHandler.ForceUpdate)
		})
	})

	// Prometheusスクレイプエンドポイント
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
