// Package source は募集情報の上流REST APIへのアクセスを提供する。
// 上流は {"opportunities": [...]} 形式のJSONを返す冪等な読み取りエンドポイント。
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campusclimb/internal/model"
)

const (
	// userAgent は上流APIへのリクエストに付与するUser-Agent。
	userAgent = "CampusClimb/1.0 Opportunity Board"
	// defaultMaxBodySize はレスポンスボディの既定の最大サイズ（5MiB）。
	defaultMaxBodySize = 5 << 20
)

// TransportError は上流に到達できない、またはレスポンスを解釈できない場合のエラー。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError は上流が成功以外のステータスを返した場合のエラー。
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// StatusCode はエラーに対応するHTTPステータスを返す。
// ステータスを受け取る前に失敗した場合は0を返す。
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Reason はメトリクスやログ向けにエラーの種別を返す。
func Reason(err error) string {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return "http_status"
	}
	var te *TransportError
	if errors.As(err, &te) {
		return "transport"
	}
	return "unknown"
}

// HTTPSource は上流APIから募集情報一覧を取得するクライアント。
type HTTPSource struct {
	httpClient  *http.Client
	logger      *slog.Logger
	endpoint    string
	maxBodySize int64
}

// NewHTTPSource はHTTPSourceの新しいインスタンスを生成する。
// maxBodySizeが0以下の場合は既定値を使用する。
func NewHTTPSource(httpClient *http.Client, logger *slog.Logger, endpoint string, maxBodySize int64) *HTTPSource {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &HTTPSource{
		httpClient:  httpClient,
		logger:      logger,
		endpoint:    endpoint,
		maxBodySize: maxBodySize,
	}
}

// ListOpportunities は上流APIから募集情報一覧を取得する。
// opportunities フィールドが存在しない場合は空リストを返す。
// 通信失敗・ボディ読み取り失敗・JSON不正は *TransportError、
// 2xx以外のステータスは *HTTPStatusError を返す。
func (s *HTTPSource) ListOpportunities(ctx context.Context) ([]model.Opportunity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("endpoint", s.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("上流APIがエラーステータスを返しました",
			slog.String("endpoint", s.endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		// 部分的なレスポンスは破棄する
		io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBodySize))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		s.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", s.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, &TransportError{Op: "read body", Err: err}
	}

	var list model.OpportunityList
	if err := json.Unmarshal(body, &list); err != nil {
		s.logger.Error("上流APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", s.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, &TransportError{Op: "decode body", Err: err}
	}

	if list.Opportunities == nil {
		return []model.Opportunity{}, nil
	}
	return list.Opportunities, nil
}
