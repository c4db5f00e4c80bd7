package board

import (
	"strings"
	"time"
	"unicode"

	"github.com/hitoshi/campusclimb/internal/model"
)

// カードの既定表示
const (
	DefaultTypeLabel   = "opportunity"
	DefaultTitle       = "Untitled Opportunity"
	DefaultCompany     = "Company not specified"
	DefaultDescription = "No description available"

	ApplyLabel       = "Apply Now"
	UnavailableLabel = "Application Link Unavailable"
)

// Card は募集情報1件の表示単位。
type Card struct {
	Type        string      `json:"type"`
	TypeClass   string      `json:"type_class"`
	Title       string      `json:"title"`
	Company     string      `json:"company"`
	Description string      `json:"description"`
	Location    string      `json:"location,omitempty"`
	Deadline    string      `json:"deadline,omitempty"`
	Apply       ApplyAction `json:"apply"`
}

// ApplyAction は応募ボタンの表示内容。
// Enabledがfalseの場合は無効化されたプレースホルダーとして表示する。
type ApplyAction struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Label   string `json:"label"`
}

// Presentation は一覧表示領域全体の表示内容。
// 描画のたびに丸ごと生成し直す。
//
// 表示は次のいずれか1つになる:
//   - Errorが空でない: エラー表示（カードなし）
//   - Emptyがtrue: 該当なし表示（カードなし）
//   - それ以外: Cardsを順に表示
//
// Loadingは読み込み中インジケーターの表示有無で、上記と独立している。
type Presentation struct {
	State    State                `json:"state"`
	Loading  bool                 `json:"loading"`
	Empty    bool                 `json:"empty"`
	Error    string               `json:"error,omitempty"`
	Cards    []Card               `json:"cards"`
	Total    int                  `json:"total"`
	Matched  int                  `json:"matched"`
	Criteria model.FilterCriteria `json:"criteria"`
	LoadedAt time.Time            `json:"loaded_at,omitzero"`
}

// TextSanitizer はカードに載せる文字列の整形を行う。
type TextSanitizer interface {
	PlainText(raw string) string
	SafeLink(raw string) (string, bool)
}

// passthrough はサニタイザ未指定時に使う無変換の実装。
type passthrough struct{}

func (passthrough) PlainText(raw string) string { return strings.TrimSpace(raw) }

func (passthrough) SafeLink(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// ErrorPresentation はエラーメッセージ1件のみを表示する内容を返す。
// 状態は保持しない。
func ErrorPresentation(message string) Presentation {
	return Presentation{
		State: StateErrored,
		Error: message,
		Cards: []Card{},
	}
}

// RenderCards は絞り込み済みの募集情報からカード一覧を生成する純粋関数。
func RenderCards(filtered []model.Opportunity, s TextSanitizer) []Card {
	if s == nil {
		s = passthrough{}
	}
	cards := make([]Card, 0, len(filtered))
	for _, o := range filtered {
		cards = append(cards, NewCard(o, s))
	}
	return cards
}

// NewCard は募集情報1件をカードに変換する。
// 未設定の項目には既定の表示を用い、場所と締切は未設定なら省略する。
// 応募URLが安全なhttp(s)リンクでない場合は応募ボタンを無効化する。
func NewCard(o model.Opportunity, s TextSanitizer) Card {
	typeLabel := orDefault(s.PlainText(o.Type), DefaultTypeLabel)

	card := Card{
		Type:        typeLabel,
		TypeClass:   typeClass(typeLabel),
		Title:       orDefault(s.PlainText(o.Title), DefaultTitle),
		Company:     orDefault(s.PlainText(o.Company), DefaultCompany),
		Description: orDefault(s.PlainText(o.Description), DefaultDescription),
		Location:    s.PlainText(o.Location),
		Deadline:    s.PlainText(o.Deadline),
		Apply:       ApplyAction{Label: UnavailableLabel},
	}

	if link, ok := s.SafeLink(o.ApplyURL); ok {
		card.Apply = ApplyAction{Enabled: true, URL: link, Label: ApplyLabel}
	}

	return card
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// typeClass はバッジのCSSクラス名を返す。
// 小文字化し、英数字以外はハイフンに置き換える。
func typeClass(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
