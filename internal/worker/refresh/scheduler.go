// Package refresh はボードの定期再読み込みを提供する。
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Loader は再読み込みの実行インターフェース。
type Loader interface {
	Load(ctx context.Context) error
}

// Scheduler はcron式に従ってボードを再読み込みする。
// 前回の読み込みが終わっていない場合、その回はスキップする。
type Scheduler struct {
	cron    *cron.Cron
	loader  Loader
	logger  *slog.Logger
	spec    string
	timeout time.Duration

	wg sync.WaitGroup
}

// NewScheduler はSchedulerを生成する。
// specが空の場合は定期実行を行わず、Startでの初回読み込みのみを行う。
// timeoutは1回の読み込みの上限で、0以下の場合は上限なし。
func NewScheduler(loader Loader, logger *slog.Logger, spec string, timeout time.Duration) (*Scheduler, error) {
	if spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
		}
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loader:  loader,
		logger:  logger,
		spec:    spec,
		timeout: timeout,
	}, nil
}

// Start はジョブを登録してスケジューラを起動する。
// 最初の周期を待たずに表示できるよう、起動直後に1回読み込みを行う（非ブロッキング）。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec != "" {
		if _, err := s.cron.AddFunc(s.spec, func() {
			s.RunOnce(ctx)
		}); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
		s.cron.Start()
		s.logger.Info("定期更新を開始しました", slog.String("schedule", s.spec))
	} else {
		s.logger.Info("定期更新は無効です")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()

	return nil
}

// Stop はスケジューラを停止し、実行中の読み込みの終了を待つ。
// ctxが先に終了した場合はその時点で戻る。
func (s *Scheduler) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("定期更新を停止しました")
	case <-ctx.Done():
		s.logger.Warn("定期更新の停止待ちを打ち切りました", slog.String("error", ctx.Err().Error()))
	}
}

// RunOnce は1回分の読み込みを実行する。
// 失敗はボード側で表示状態に反映されるため、ここではログのみ記録する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.loader.Load(ctx); err != nil {
		s.logger.Error("定期更新に失敗しました",
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return err
	}

	s.logger.Info("定期更新が完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// cronLogger はcron.Loggerをslogに接続する。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
