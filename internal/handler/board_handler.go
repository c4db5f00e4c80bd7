package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/campusclimb/internal/board"
	"github.com/hitoshi/campusclimb/internal/middleware"
	"github.com/hitoshi/campusclimb/internal/model"
	"github.com/hitoshi/campusclimb/internal/view"
)

const (
	// maxCriterionLength は絞り込み条件1項目あたりの最大文字数。
	maxCriterionLength = 200
	// defaultReloadTimeout はReloadTimeout未設定時の読み込みの上限。
	defaultReloadTimeout = 10 * time.Second
)

// BoardServiceInterface はボードハンドラーが必要とするボードの操作。
type BoardServiceInterface interface {
	// Load はデータソースから全件を読み込み直す。
	Load(ctx context.Context) error
	// Query は絞り込み条件を適用し、その結果の表示内容を返す。
	Query(criteria model.FilterCriteria) board.Presentation
	// Render は現在の表示内容を返す。
	Render() board.Presentation
}

// PageRenderer はHTML描画のインターフェース。
type PageRenderer interface {
	RenderPage(w io.Writer, data view.PageData) error
	RenderList(w io.Writer, data view.PageData) error
}

// FilterRecorder は表示リクエストのメトリクス記録のインターフェース。
type FilterRecorder interface {
	RecordFilterRequest(filtered bool)
}

// BoardHandlerConfig はボードハンドラーの表示設定。
type BoardHandlerConfig struct {
	Title string
	Types []string
	// ReloadTimeout は POST /api/reload での読み込みの上限。0以下なら10秒。
	ReloadTimeout time.Duration
}

// BoardHandler は募集情報ボードのHTTPハンドラー。
type BoardHandler struct {
	board    BoardServiceInterface
	renderer PageRenderer
	recorder FilterRecorder
	config   BoardHandlerConfig
}

// NewBoardHandler はBoardHandlerを生成する。recorderはnilでもよい。
func NewBoardHandler(b BoardServiceInterface, renderer PageRenderer, recorder FilterRecorder, config BoardHandlerConfig) *BoardHandler {
	return &BoardHandler{
		board:    b,
		renderer: renderer,
		recorder: recorder,
		config:   config,
	}
}

// Page はボードのHTMLページを返す。
// GET /?type=xxx&q=yyy
func (h *BoardHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderHTML(w, r, h.renderer.RenderPage)
}

// Fragment は一覧表示領域のみのHTMLを返す。
// GET /fragment?type=xxx&q=yyy
func (h *BoardHandler) Fragment(w http.ResponseWriter, r *http.Request) {
	h.renderHTML(w, r, h.renderer.RenderList)
}

// ListOpportunities は表示内容をJSONで返す。
// GET /api/opportunities?type=xxx&q=yyy
func (h *BoardHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	criteria, apiErr := criteriaFromRequest(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, h.query(criteria))
}

// Reload は上流からの再読み込みを行い、読み込み後の表示内容を返す。
// POST /api/reload
// 読み込みはリクエストのキャンセルから切り離し、ReloadTimeoutで上限を設ける。
// 読み込みIDにはリクエストIDを使う。
func (h *BoardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	timeout := h.config.ReloadTimeout
	if timeout <= 0 {
		timeout = defaultReloadTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
	defer cancel()
	ctx = board.ContextWithLoadID(ctx, middleware.RequestIDFromContext(r.Context()))

	if err := h.board.Load(ctx); err != nil {
		// 詳細はボード側でログ済み。クライアントには固定メッセージのみ返す
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewLoadFailedError())
		return
	}

	writeJSON(w, http.StatusOK, h.board.Render())
}

// renderHTML は絞り込み条件を適用した表示内容をHTMLとして書き出す。
// テンプレートの実行に失敗した場合に部分的な出力を返さないよう、バッファに描画してから書き込む。
func (h *BoardHandler) renderHTML(w http.ResponseWriter, r *http.Request, render func(io.Writer, view.PageData) error) {
	criteria, apiErr := criteriaFromRequest(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	data := view.PageData{
		Title:        h.config.Title,
		Types:        h.config.Types,
		Presentation: h.query(criteria),
	}

	var buf bytes.Buffer
	if err := render(&buf, data); err != nil {
		slog.Error("failed to render page",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *BoardHandler) query(criteria model.FilterCriteria) board.Presentation {
	if h.recorder != nil {
		h.recorder.RecordFilterRequest(!criteria.IsZero())
	}
	return h.board.Query(criteria)
}

// criteriaFromRequest はクエリパラメータtype、qから絞り込み条件を組み立てる。
// 前後の空白は取り除く。長すぎる値は不正なリクエストとして扱う。
func criteriaFromRequest(r *http.Request) (model.FilterCriteria, *model.APIError) {
	q := r.URL.Query()
	criteria := model.FilterCriteria{
		TypeFilter: strings.TrimSpace(q.Get("type")),
		SearchText: strings.TrimSpace(q.Get("q")),
	}

	if utf8.RuneCountInString(criteria.TypeFilter) > maxCriterionLength {
		return model.FilterCriteria{}, model.NewInvalidRequestError("type is too long")
	}
	if utf8.RuneCountInString(criteria.SearchText) > maxCriterionLength {
		return model.FilterCriteria{}, model.NewInvalidRequestError("q is too long")
	}

	return criteria, nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
