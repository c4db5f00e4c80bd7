package refresh

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- モック定義 ---

// mockLoader はLoaderのテスト用モック。
type mockLoader struct {
	calls  atomic.Int32
	loadFn func(ctx context.Context) error
}

func (m *mockLoader) Load(ctx context.Context) error {
	m.calls.Add(1)
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil
}

// syncBuffer は並行書き込みに対応したログ出力先。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(&mockLoader{}, newTestLogger(&syncBuffer{}), "every five minutes", 0)
	if err == nil {
		t.Fatal("不正なcron式はエラーになるべき")
	}
}

func TestNewScheduler_AcceptsSpecs(t *testing.T) {
	specs := []string{"", "@every 5m", "*/10 * * * *", "@hourly"}
	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			if _, err := NewScheduler(&mockLoader{}, newTestLogger(&syncBuffer{}), spec, 0); err != nil {
				t.Errorf("NewScheduler(%q) error = %v", spec, err)
			}
		})
	}
}

func TestScheduler_StartRunsInitialLoad(t *testing.T) {
	loader := &mockLoader{}
	var logs syncBuffer
	s, err := NewScheduler(loader, newTestLogger(&logs), "", 0)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop(context.Background())

	if got := loader.calls.Load(); got != 1 {
		t.Errorf("Load calls = %d, want 1", got)
	}
	if !strings.Contains(logs.String(), "定期更新は無効です") {
		t.Error("disabled schedule should be logged")
	}
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	loader := &mockLoader{}
	s, err := NewScheduler(loader, newTestLogger(&syncBuffer{}), "@every 1s", 0)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(context.Background())

	// 初回読み込み + 少なくとも1回の定期実行
	waitFor(t, 3*time.Second, func() bool { return loader.calls.Load() >= 2 })
}

func TestScheduler_RunOnce_AppliesTimeout(t *testing.T) {
	loader := &mockLoader{
		loadFn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	s, err := NewScheduler(loader, newTestLogger(&syncBuffer{}), "", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	start := time.Now()
	err = s.RunOnce(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunOnce() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("RunOnce should return once the timeout elapses")
	}
}

func TestScheduler_RunOnce_LogsFailure(t *testing.T) {
	var logs syncBuffer
	loader := &mockLoader{
		loadFn: func(ctx context.Context) error { return errors.New("upstream unavailable") },
	}
	s, err := NewScheduler(loader, newTestLogger(&logs), "", 0)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() should return the load error")
	}
	if !strings.Contains(logs.String(), "upstream unavailable") {
		t.Errorf("log should contain the error, got %s", logs.String())
	}
}

func TestScheduler_StopWaitsForRunningLoad(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	loader := &mockLoader{
		loadFn: func(ctx context.Context) error {
			<-release
			finished.Store(true)
			return nil
		},
	}
	s, err := NewScheduler(loader, newTestLogger(&syncBuffer{}), "", 0)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	s.Stop(context.Background())
	if !finished.Load() {
		t.Error("Stop should wait for the running load")
	}
}

func TestScheduler_StopHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	loader := &mockLoader{
		loadFn: func(ctx context.Context) error {
			<-release
			return nil
		},
	}
	var logs syncBuffer
	s, err := NewScheduler(loader, newTestLogger(&logs), "", 0)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Stop(ctx)

	if !strings.Contains(logs.String(), "打ち切りました") {
		t.Error("Stop should give up when the context ends")
	}
}
