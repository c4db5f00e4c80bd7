// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Opportunity はインターンシップやカンファレンスなどの募集情報1件を表す。
// 上流APIから受け取った値をそのまま保持し、読み込み後は変更しない。
// 各フィールドは任意項目で、未設定の場合は空文字列となる。
type Opportunity struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Deadline    string `json:"deadline"`
	ApplyURL    string `json:"apply_url"`
}

// opportunityWire は上流APIのレコード形式。
// 上流はスプレッドシートのため、セルの値が数値や真偽値で届く場合がある。
type opportunityWire struct {
	Type        json.RawMessage `json:"type"`
	Title       json.RawMessage `json:"title"`
	Company     json.RawMessage `json:"company"`
	Description json.RawMessage `json:"description"`
	Location    json.RawMessage `json:"location"`
	Deadline    json.RawMessage `json:"deadline"`
	ApplyURL    json.RawMessage `json:"apply_url"`
}

// UnmarshalJSON は文字列以外のスカラー値をテキスト表現として取り込む。
// null や未設定のフィールドは空文字列になる。
func (o *Opportunity) UnmarshalJSON(data []byte) error {
	var w opportunityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	fields := []struct {
		raw json.RawMessage
		dst *string
	}{
		{w.Type, &o.Type},
		{w.Title, &o.Title},
		{w.Company, &o.Company},
		{w.Description, &o.Description},
		{w.Location, &o.Location},
		{w.Deadline, &o.Deadline},
		{w.ApplyURL, &o.ApplyURL},
	}
	for _, f := range fields {
		s, err := rawText(f.raw)
		if err != nil {
			return err
		}
		*f.dst = s
	}
	return nil
}

// rawText はJSONスカラー値を文字列に変換する。
func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", fmt.Errorf("unsupported value for text field: %s", raw)
	}
	return string(raw), nil
}

// SearchableText はフリーテキスト検索の対象となる文字列を返す。
// title、company、description、typeを半角スペースで連結する。
func (o Opportunity) SearchableText() string {
	return strings.Join([]string{o.Title, o.Company, o.Description, o.Type}, " ")
}

// FilterCriteria はユーザー入力から得られる絞り込み条件。
// いずれのフィールドも空文字列の場合は制限なしを意味する。
type FilterCriteria struct {
	TypeFilter string `json:"type"`
	SearchText string `json:"q"`
}

// IsZero は絞り込み条件が何も指定されていないかを返す。
func (c FilterCriteria) IsZero() bool {
	return c.TypeFilter == "" && c.SearchText == ""
}

// OpportunityList は上流APIのレスポンスボディ。
// opportunities フィールドが存在しない場合は空リストとして扱う。
type OpportunityList struct {
	Opportunities []Opportunity `json:"opportunities"`
}
