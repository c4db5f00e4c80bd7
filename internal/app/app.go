package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/campusclimb/internal/board"
	"github.com/hitoshi/campusclimb/internal/config"
	"github.com/hitoshi/campusclimb/internal/handler"
	"github.com/hitoshi/campusclimb/internal/logger"
	"github.com/hitoshi/campusclimb/internal/metrics"
	"github.com/hitoshi/campusclimb/internal/middleware"
	"github.com/hitoshi/campusclimb/internal/security"
	"github.com/hitoshi/campusclimb/internal/source"
	"github.com/hitoshi/campusclimb/internal/view"
	"github.com/hitoshi/campusclimb/internal/worker/refresh"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間の上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("refresh_schedule", cfg.RefreshSchedule),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd == CommandCheck {
		return runCheck(ctx, cfg, slog.Default())
	}
	return runServe(ctx, cfg)
}

// server はserveモードで起動する構成要素をまとめたもの。
type server struct {
	httpServer  *http.Server
	scheduler   *refresh.Scheduler
	rateLimiter *middleware.RateLimiter
}

// newSource は設定から上流APIのクライアントを構築する。
func newSource(cfg *config.Config, logger *slog.Logger) (*source.HTTPSource, error) {
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	if cfg.UpstreamSSRFGuard {
		guard := security.NewSSRFGuard()
		if err := guard.ValidateURL(cfg.UpstreamURL); err != nil {
			return nil, fmt.Errorf("upstream url rejected: %w", err)
		}
		httpClient = guard.NewSafeClient(cfg.UpstreamTimeout)
	}
	return source.NewHTTPSource(httpClient, logger, cfg.UpstreamURL, cfg.UpstreamMaxSize), nil
}

// newServer は設定から全依存関係をワイヤリングする。
func newServer(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	// 1. 上流クライアント
	src, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. ボード
	b := board.New(src, logger,
		board.WithSanitizer(security.NewContentSanitizer()),
		board.WithRecorder(collector),
	)

	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	// 4. 定期更新
	scheduler, err := refresh.NewScheduler(b, logger, cfg.RefreshSchedule, cfg.UpstreamTimeout)
	if err != nil {
		return nil, err
	}

	// 5. ルーターの構築
	// configのRateLimitGeneralはreq/min単位
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TrustedProxies:    cfg.TrustedProxies,
		Board:             b,
		Renderer:          renderer,
		Recorder:          collector,
		Config: handler.BoardHandlerConfig{
			Title:         cfg.PageTitle,
			Types:         cfg.OpportunityTypes,
			ReloadTimeout: cfg.UpstreamTimeout,
		},
		MetricsHandler: metrics.Handler(reg),
	})

	return &server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second + cfg.UpstreamTimeout,
			IdleTimeout:  60 * time.Second,
		},
		scheduler:   scheduler,
		rateLimiter: rateLimiter,
	}, nil
}

// runServe はボードサーバーモードで起動する。
// 起動直後に初回読み込みを行い、以降は定期更新に従って読み込み直す。
// ctxが終了するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(cfg, slog.Default(), reg)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	if err := srv.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresh scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("board server starting",
			slog.String("addr", srv.httpServer.Addr),
		)
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down board server...")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("server listen error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	srv.scheduler.Stop(shutdownCtx)

	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if serveErr != nil {
		return serveErr
	}

	slog.Info("board server stopped gracefully")
	return nil
}

// runCheck は上流APIから1回だけ読み込み、件数を種別ごとにログへ出力する。
// 読み込みに失敗した場合はエラーを返す。
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout)
	defer cancel()

	b := board.New(src, logger, board.WithSanitizer(security.NewContentSanitizer()))
	if err := b.Load(ctx); err != nil {
		return fmt.Errorf("upstream check failed: %w", err)
	}

	counts := make(map[string]int)
	opportunities := b.Opportunities()
	for _, o := range opportunities {
		counts[o.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	attrs := make([]any, 0, len(types))
	for _, t := range types {
		name := t
		if name == "" {
			name = "(none)"
		}
		attrs = append(attrs, slog.Int(name, counts[t]))
	}

	logger.Info("upstream check succeeded",
		slog.String("upstream_url", cfg.UpstreamURL),
		slog.Int("total", len(opportunities)),
		slog.Group("types", attrs...),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
