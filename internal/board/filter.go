package board

import (
	"strings"

	"github.com/hitoshi/campusclimb/internal/model"
)

// Filter は全件から絞り込み条件に一致する募集情報を抽出する。
// 元の並び順を保持し、入力スライスは変更しない。結果は常に非nil。
//
// 条件:
//   - TypeFilterが空、またはtypeが大文字小文字を区別せず一致する
//   - SearchTextが空、またはSearchableTextが大文字小文字を区別せず部分一致する
func Filter(all []model.Opportunity, criteria model.FilterCriteria) []model.Opportunity {
	search := strings.ToLower(criteria.SearchText)

	filtered := make([]model.Opportunity, 0, len(all))
	for _, o := range all {
		if !Matches(o, criteria.TypeFilter, search) {
			continue
		}
		filtered = append(filtered, o)
	}
	return filtered
}

// Matches は1件の募集情報が条件に一致するかを返す。
// lowerSearchは小文字化済みの検索文字列を渡す。
func Matches(o model.Opportunity, typeFilter, lowerSearch string) bool {
	if typeFilter != "" && !strings.EqualFold(o.Type, typeFilter) {
		return false
	}
	if lowerSearch != "" && !strings.Contains(strings.ToLower(o.SearchableText()), lowerSearch) {
		return false
	}
	return true
}
