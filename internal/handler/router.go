// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campusclimb/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// X-Forwarded-Forを信頼するプロキシ。空ならRemoteAddrをクライアントIPとする
	TrustedProxies []netip.Prefix

	// ボード
	Board    BoardServiceInterface
	Renderer PageRenderer
	Recorder FilterRecorder
	Config   BoardHandlerConfig

	// GET /metrics のハンドラー。nilの場合はルートを登録しない
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	ClientIP → RequestID → Logging → Recovery → SecurityHeaders → RateLimit
//
// /health と /metrics はレート制限の外に配置する。/api 配下にはCORSを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewClientIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	boardHandler := NewBoardHandler(deps.Board, deps.Renderer, deps.Recorder, deps.Config)

	// --- レート制限対象外のルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- レート制限対象のルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// HTMLボード
		r.Get("/", boardHandler.Page)
		r.Get("/fragment", boardHandler.Fragment)

		// JSON API
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

			r.Get("/opportunities", boardHandler.ListOpportunities)
			r.Post("/reload", boardHandler.Reload)
			// プリフライトはCORSミドルウェアが204で応答する
			r.Options("/*", func(w http.ResponseWriter, r *http.Request) {})
		})
	})

	return r
}
