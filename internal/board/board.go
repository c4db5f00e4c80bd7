// Package board は募集情報ボードの状態管理を提供する。
// 上流から読み込んだ全件と、絞り込み条件から導出した表示対象を保持し、
// 表示内容（Presentation）を生成する。
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campusclimb/internal/model"
	"github.com/hitoshi/campusclimb/internal/source"
)

// State はボードの観測可能な状態。
type State string

const (
	// StateLoading は読み込み中。最初の読み込み前もこの状態。
	StateLoading State = "loading"
	// StateLoaded は読み込み完了。絞り込み条件の変更ではこの状態に留まる。
	StateLoaded State = "loaded"
	// StateErrored は読み込み失敗。
	StateErrored State = "errored"
)

// Source は募集情報一覧を提供するデータソース。
type Source interface {
	ListOpportunities(ctx context.Context) ([]model.Opportunity, error)
}

// LoadRecorder は読み込み結果のメトリクス記録のインターフェース。
type LoadRecorder interface {
	RecordLoadSuccess(count int)
	RecordLoadFailure(reason string)
	RecordUpstreamStatus(statusCode int)
	RecordLoadLatency(duration time.Duration)
}

// Board は募集情報ボード。閲覧セッションごとに1つ生成する。
// HTTPハンドラーと定期更新から並行に呼ばれるため、内部でロックを取る。
type Board struct {
	source    Source
	sanitizer TextSanitizer
	recorder  LoadRecorder
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	state    State
	inflight int
	all      []model.Opportunity
	filtered []model.Opportunity
	criteria model.FilterCriteria
	errMsg   string
	loadedAt time.Time

	// issued は最後に発行した読み込み世代、applied は最後に反映した世代。
	// applied より古い世代の結果は破棄する。
	issued  uint64
	applied uint64
}

// Option はBoardの任意設定。
type Option func(*Board)

// WithSanitizer は表示文字列のサニタイザを設定する。
func WithSanitizer(s TextSanitizer) Option {
	return func(b *Board) { b.sanitizer = s }
}

// WithRecorder はメトリクス記録先を設定する。
func WithRecorder(r LoadRecorder) Option {
	return func(b *Board) { b.recorder = r }
}

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

type loadIDKey struct{}

// ContextWithLoadID は読み込みのログに使うIDをコンテキストに設定する。
// HTTPリクエストから起動した読み込みをリクエストログと突き合わせるために使う。
func ContextWithLoadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, loadIDKey{}, id)
}

// LoadIDFromContext はコンテキストに設定された読み込みIDを返す。未設定なら空文字列。
func LoadIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(loadIDKey{}).(string)
	return id
}

// New はBoardを生成する。初期状態はStateLoading。
func New(src Source, logger *slog.Logger, opts ...Option) *Board {
	b := &Board{
		source:    src,
		sanitizer: passthrough{},
		recorder:  nopRecorder{},
		logger:    logger,
		now:       time.Now,
		state:     StateLoading,
		all:       []model.Opportunity{},
		filtered:  []model.Opportunity{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load はデータソースから全件を読み込み直す。
//
// 成功時は全件を置き換え、絞り込み条件をリセットして表示対象を全件とする。
// 失敗時は全件・表示対象を空にし、固定のエラーメッセージを表示する状態にする。
// いずれの場合も読み込み中インジケーターは呼び出し前に表示、呼び出し後に非表示となる。
// 並行して複数の読み込みが走った場合、後から発行された読み込みの結果が優先される。
func (b *Board) Load(ctx context.Context) error {
	loadID := LoadIDFromContext(ctx)
	if loadID == "" {
		loadID = uuid.NewString()
	}

	b.mu.Lock()
	b.issued++
	gen := b.issued
	b.inflight++
	b.state = StateLoading
	b.mu.Unlock()

	start := b.now()
	list, err := b.source.ListOpportunities(ctx)
	duration := b.now().Sub(start)

	b.recorder.RecordLoadLatency(duration)
	if code := source.StatusCode(err); code != 0 {
		b.recorder.RecordUpstreamStatus(code)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.inflight--

	if gen < b.applied {
		b.logger.Info("古い読み込み結果を破棄しました",
			slog.String("load_id", loadID),
			slog.Uint64("generation", gen),
			slog.Uint64("applied_generation", b.applied),
		)
		return nil
	}
	b.applied = gen

	if err != nil {
		b.all = []model.Opportunity{}
		b.filtered = []model.Opportunity{}
		b.state = StateErrored
		b.errMsg = model.LoadFailedMessage
		// 全件を失ったため、次の読み込み中は初回と同様に該当なし表示を出さない
		b.loadedAt = time.Time{}
		b.recorder.RecordLoadFailure(source.Reason(err))
		b.logger.Error("募集情報の読み込みに失敗しました",
			slog.String("load_id", loadID),
			slog.String("reason", source.Reason(err)),
			slog.Int("http_status", source.StatusCode(err)),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return fmt.Errorf("load opportunities: %w", err)
	}

	b.all = list
	b.criteria = model.FilterCriteria{}
	b.filtered = Filter(list, b.criteria)
	b.state = StateLoaded
	b.errMsg = ""
	b.loadedAt = b.now()
	b.recorder.RecordLoadSuccess(len(list))

	b.logger.Info("募集情報を読み込みました",
		slog.String("load_id", loadID),
		slog.Int("count", len(list)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// ApplyFilter は全件から表示対象を再計算し、その結果を返す。
// エラーは発生しない。読み込み失敗後も空の全件に対して動作する。
func (b *Board) ApplyFilter(criteria model.FilterCriteria) []model.Opportunity {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.applyFilterLocked(criteria)
	return cloneOpportunities(b.filtered)
}

// Render は現在の表示対象から表示内容を生成する。
func (b *Board) Render() Presentation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.renderLocked()
}

// Query は絞り込み条件の適用と表示内容の生成を1回のロックで行う。
// 並行リクエストの間で条件が入れ替わらないようにするために使う。
func (b *Board) Query(criteria model.FilterCriteria) Presentation {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.applyFilterLocked(criteria)
	return b.renderLocked()
}

// ShowError はエラーメッセージのみの表示内容を返す。ボードの状態は変更しない。
func (b *Board) ShowError(message string) Presentation {
	return ErrorPresentation(message)
}

// State は現在の状態を返す。
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Loading は読み込み中インジケーターを表示すべきかを返す。
func (b *Board) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inflight > 0
}

// Opportunities は全件のコピーを返す。
func (b *Board) Opportunities() []model.Opportunity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneOpportunities(b.all)
}

// Filtered は表示対象のコピーを返す。
func (b *Board) Filtered() []model.Opportunity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneOpportunities(b.filtered)
}

func (b *Board) applyFilterLocked(criteria model.FilterCriteria) {
	b.criteria = criteria
	b.filtered = Filter(b.all, criteria)
}

// renderLocked は表示内容を生成する。呼び出し側でロックを保持すること。
func (b *Board) renderLocked() Presentation {
	if b.state == StateErrored {
		p := ErrorPresentation(b.errMsg)
		p.Loading = b.inflight > 0
		p.Criteria = b.criteria
		return p
	}

	p := Presentation{
		State:    b.state,
		Loading:  b.inflight > 0,
		Cards:    RenderCards(b.filtered, b.sanitizer),
		Total:    len(b.all),
		Matched:  len(b.filtered),
		Criteria: b.criteria,
		LoadedAt: b.loadedAt,
	}

	// 初回読み込みが終わるまでは該当なし表示を出さない
	if b.state == StateLoading && b.loadedAt.IsZero() {
		return p
	}
	p.Empty = len(p.Cards) == 0
	return p
}

func cloneOpportunities(src []model.Opportunity) []model.Opportunity {
	dst := make([]model.Opportunity, len(src))
	copy(dst, src)
	return dst
}

type nopRecorder struct{}

func (nopRecorder) RecordLoadSuccess(int) {}
func (nopRecorder) RecordLoadFailure(string) {}
func (nopRecorder) RecordUpstreamStatus(int) {}
func (nopRecorder) RecordLoadLatency(time.Duration) {}
