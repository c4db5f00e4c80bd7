// Package view はボードの表示内容をHTMLとして描画する。
// 描画は毎回全体を生成し直し、部分的な更新は行わない。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hitoshi/campusclimb/internal/board"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultTitle はページタイトルの既定値。
const DefaultTitle = "CampusClimb Opportunities"

// PageData はページ描画に必要なデータ。
type PageData struct {
	Title        string
	Types        []string
	Presentation board.Presentation
}

// Renderer はテンプレートを保持し、ページと一覧部分を描画する。
// 生成後は読み取り専用のため並行利用できる。
type Renderer struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{now: time.Now}

	tmpl, err := template.New("view").Funcs(template.FuncMap{
		"eqFold":  strings.EqualFold,
		"relTime": r.relTime,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	r.tmpl = tmpl
	return r, nil
}

// RenderPage はページ全体を描画する。
func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = DefaultTitle
	}
	return r.tmpl.ExecuteTemplate(w, "page", data)
}

// RenderList は一覧表示領域のみを描画する。
func (r *Renderer) RenderList(w io.Writer, data PageData) error {
	return r.tmpl.ExecuteTemplate(w, "list", data)
}

// relTime は最終読み込み時刻を「3 minutes ago」形式で返す。
func (r *Renderer) relTime(t time.Time) string {
	return humanize.RelTime(t, r.now(), "ago", "from now")
}
