package board

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/campusclimb/internal/model"
)

func TestFilter(t *testing.T) {
	all := fixtureOpportunities()

	tests := []struct {
		name       string
		criteria   model.FilterCriteria
		wantTitles []string
	}{
		{
			name:     "条件なしは全件",
			criteria: model.FilterCriteria{},
			wantTitles: []string{
				"Software Engineering Intern",
				"Annual Tech Summit 2024",
				"Marketing Assistant",
				"Data Science Symposium",
			},
		},
		{
			name:       "typeは大文字小文字を区別しない",
			criteria:   model.FilterCriteria{TypeFilter: "internship"},
			wantTitles: []string{"Software Engineering Intern", "Marketing Assistant"},
		},
		{
			name:       "type大文字",
			criteria:   model.FilterCriteria{TypeFilter: "CONFERENCE"},
			wantTitles: []string{"Annual Tech Summit 2024", "Data Science Symposium"},
		},
		{
			name:       "検索は説明文にも部分一致",
			criteria:   model.FilterCriteria{SearchText: "data"},
			wantTitles: []string{"Data Science Symposium"},
		},
		{
			name:       "検索は会社名に一致",
			criteria:   model.FilterCriteria{SearchText: "innovation"},
			wantTitles: []string{"Annual Tech Summit 2024"},
		},
		{
			name:       "検索はtypeにも一致",
			criteria:   model.FilterCriteria{SearchText: "intern"},
			wantTitles: []string{"Software Engineering Intern", "Marketing Assistant"},
		},
		{
			name:       "typeと検索のAND",
			criteria:   model.FilterCriteria{TypeFilter: "Internship", SearchText: "marketing"},
			wantTitles: []string{"Marketing Assistant"},
		},
		{
			name:       "未知のtype",
			criteria:   model.FilterCriteria{TypeFilter: "Hackathon"},
			wantTitles: []string{},
		},
		{
			name:       "一致なし",
			criteria:   model.FilterCriteria{SearchText: "zzz"},
			wantTitles: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(all, tt.criteria)
			titles := make([]string, 0, len(got))
			for _, o := range got {
				titles = append(titles, o.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
				t.Errorf("Filter(%+v) mismatch (-want +got):\n%s", tt.criteria, diff)
			}
		})
	}
}

// TestFilter_SubsetOfInput は結果が常に入力の部分集合で、述語を満たす要素と完全に一致することを検証する。
func TestFilter_SubsetOfInput(t *testing.T) {
	all := append(fixtureOpportunities(),
		model.Opportunity{},
		model.Opportunity{Title: "Untyped data role"},
		model.Opportunity{Type: "internship", Description: "lowercase type"},
	)

	criteriaList := []model.FilterCriteria{
		{},
		{TypeFilter: "Internship"},
		{SearchText: "DATA"},
		{TypeFilter: "conference", SearchText: "summit"},
		{SearchText: " "},
	}

	for _, c := range criteriaList {
		got := Filter(all, c)

		var want []model.Opportunity
		for _, o := range all {
			typeOK := c.TypeFilter == "" || strings.EqualFold(o.Type, c.TypeFilter)
			searchOK := c.SearchText == "" ||
				strings.Contains(strings.ToLower(o.Title+" "+o.Company+" "+o.Description+" "+o.Type), strings.ToLower(c.SearchText))
			if typeOK && searchOK {
				want = append(want, o)
			}
		}
		if want == nil {
			want = []model.Opportunity{}
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Filter(%+v) mismatch (-want +got):\n%s", c, diff)
		}
	}
}

func TestFilter_Idempotent(t *testing.T) {
	all := fixtureOpportunities()
	c := model.FilterCriteria{TypeFilter: "conference", SearchText: "data"}

	once := Filter(all, c)
	twice := Filter(once, c)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Filter is not idempotent (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(once, Filter(all, c)); diff != "" {
		t.Errorf("Filter is not deterministic:\n%s", diff)
	}
}

// TestFilter_UntypedRecordExcludedByTypeFilter はtype未設定の募集情報がtype指定時に除外されることを検証する。
func TestFilter_UntypedRecordExcludedByTypeFilter(t *testing.T) {
	all := []model.Opportunity{{Title: "No type"}, {Type: "Internship", Title: "Typed"}}

	got := Filter(all, model.FilterCriteria{TypeFilter: "Internship"})
	if len(got) != 1 || got[0].Title != "Typed" {
		t.Errorf("Filter = %+v", got)
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	all := fixtureOpportunities()
	before := fixtureOpportunities()

	Filter(all, model.FilterCriteria{TypeFilter: "Internship"})
	if diff := cmp.Diff(before, all); diff != "" {
		t.Errorf("input was mutated:\n%s", diff)
	}
}

func TestFilter_NilInput(t *testing.T) {
	got := Filter(nil, model.FilterCriteria{SearchText: "x"})
	if got == nil || len(got) != 0 {
		t.Errorf("Filter(nil) = %#v, want empty non-nil slice", got)
	}
}
