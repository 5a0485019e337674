package mixer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
	"feedmixer/internal/rule"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func item(id, title string, hoursAfter int) model.FeedItem {
	return model.NewFeedItem(id, title, "body of "+id, "https://example.com/"+id, base.Add(time.Duration(hoursAfter)*time.Hour))
}

func feed(t *testing.T, id string, items ...model.FeedItem) model.Feed {
	t.Helper()
	f, err := model.NewFeed(id, id, "https://example.com/"+id+".xml")
	if err != nil {
		t.Fatalf("NewFeed: %v", err)
	}
	for _, it := range items {
		f.AddItem(it)
	}
	return f
}

type ruleDef struct {
	id       string
	typ      model.RuleType
	priority int
	conds    []model.RuleCondition
	trans    []model.RuleTransformation
}

func mixerWith(t *testing.T, feeds []model.Feed, defs ...ruleDef) model.Mixer {
	t.Helper()
	m := model.NewMixer("mixer-1", "test")
	for _, f := range feeds {
		m.AddFeed(f)
	}
	for _, s := range defs {
		r, err := model.NewRule(s.id, s.id, s.typ, s.priority)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		for _, c := range s.conds {
			r.AddCondition(c)
		}
		for _, tr := range s.trans {
			r.AddTransformation(tr)
		}
		m.AddRule(r)
	}
	return m
}

func ids(items []model.FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func opts() Options {
	return Options{Registry: rule.NewRegistry(), Logic: rule.LogicAll}
}

func TestMixWithoutRulesConcatenatesFeeds(t *testing.T) {
	dup := item("dup", "same", 0)
	m := mixerWith(t, []model.Feed{
		feed(t, "a", item("a1", "one", 2), dup),
		feed(t, "b", item("b1", "two", 1), dup),
	})

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if diff := cmp.Diff([]string{"a1", "dup", "b1", "dup"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("a", got[0].FeedSourceID); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}

func TestMixEmpty(t *testing.T) {
	got, err := Mix(model.NewMixer("", "empty"), opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no items, got %d", len(got))
	}
}

func TestMixFilterKeepsMatchesUnchanged(t *testing.T) {
	keep := item("k", "Go release", 0)
	if err := keep.SetExtension("score", 7); err != nil {
		t.Fatalf("SetExtension: %v", err)
	}
	m := mixerWith(t, []model.Feed{feed(t, "a", keep, item("d", "Python release", 1))},
		ruleDef{
			id:    "only-go",
			typ:   model.RuleFilter,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpContains, "go")},
			trans: []model.RuleTransformation{{Field: "title", Type: model.TransformReplace, Value: "ignored"}},
		},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}

	want := feed(t, "a", keep).Items()[0].Fields()
	if diff := cmp.Diff(want, got[0].Fields()); diff != "" {
		t.Errorf("filtered item changed (-want +got):\n%s", diff)
	}
}

func TestMixTransformOnlyMatching(t *testing.T) {
	m := mixerWith(t, []model.Feed{feed(t, "a", item("1", "go news", 0), item("2", "other", 1))},
		ruleDef{
			id:    "shout",
			typ:   model.RuleTransform,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpContains, "go")},
			trans: []model.RuleTransformation{
				{Field: "title", Type: model.TransformCustom, CustomFunction: "uppercase"},
			},
		},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	titles := []string{got[0].Title, got[1].Title}
	if diff := cmp.Diff([]string{"GO NEWS", "other"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestMixTag(t *testing.T) {
	m := mixerWith(t, []model.Feed{feed(t, "a", item("1", "go news", 0), item("2", "other", 1))},
		ruleDef{
			id:    "tag-go",
			typ:   model.RuleTag,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpContains, "go")},
			trans: []model.RuleTransformation{
				{Field: "tags", Type: model.TransformAppend, Value: "golang"},
				{Field: "tags", Type: model.TransformReplace, Value: []any{"golang", "lang"}},
			},
		},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if diff := cmp.Diff([]string{"golang", "lang"}, got[0].Tags()); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if len(got[1].Tags()) != 0 {
		t.Errorf("non-matching item got tags %v", got[1].Tags())
	}
}

func TestMixSortByPublishedDate(t *testing.T) {
	items := []model.FeedItem{item("1", "a", 3), item("2", "b", 1), item("3", "c", 5), item("4", "d", 1)}
	noDate := model.NewFeedItem("nodate", "e", "", "", time.Time{})

	tests := []struct {
		name string
		op   model.ComparisonOperator
		want []string
	}{
		{name: "descending", op: model.OpGreaterThan, want: []string{"3", "1", "2", "4", "nodate"}},
		{name: "ascending", op: model.OpLessThan, want: []string{"2", "4", "1", "3", "nodate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mixerWith(t, []model.Feed{feed(t, "a", append([]model.FeedItem{noDate}, items...)...)},
				ruleDef{
					id:    "by-date",
					typ:   model.RuleSort,
					conds: []model.RuleCondition{model.NewCondition(model.FieldPublishedDate, tt.op, nil)},
				},
			)

			got, err := Mix(m, opts())
			if err != nil {
				t.Fatalf("Mix: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}

			dated := got[:len(got)-1]
			for i := 1; i < len(dated); i++ {
				prev, cur := dated[i-1].PublishedDate, dated[i].PublishedDate
				if tt.op == model.OpGreaterThan && cur.After(prev) {
					t.Errorf("item %d is newer than its predecessor", i)
				}
				if tt.op == model.OpLessThan && cur.Before(prev) {
					t.Errorf("item %d is older than its predecessor", i)
				}
			}
		})
	}
}

func TestMixSortMixedKeyTypes(t *testing.T) {
	a, b := item("1", "a", 0), item("2", "b", 0)
	if err := a.SetExtension("rank", 1); err != nil {
		t.Fatalf("SetExtension: %v", err)
	}
	if err := b.SetExtension("rank", "high"); err != nil {
		t.Fatalf("SetExtension: %v", err)
	}
	m := mixerWith(t, []model.Feed{feed(t, "a", a, b)},
		ruleDef{id: "by-rank", typ: model.RuleSort, conds: []model.RuleCondition{model.NewCondition("rank", model.OpLessThan, nil)}},
	)

	_, err := Mix(m, opts())
	if !mixerrs.Is(err, mixerrs.KindType) {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestMixGroupByFeedSource(t *testing.T) {
	m := mixerWith(t, []model.Feed{
		feed(t, "a", item("a1", "x", 0), item("a2", "x", 4)),
		feed(t, "b", item("b1", "x", 2)),
		feed(t, "c", item("c1", "x", 3), item("c2", "x", 1)),
	},
		ruleDef{id: "newest", typ: model.RuleSort, priority: 10,
			conds: []model.RuleCondition{model.NewCondition(model.FieldPublishedDate, model.OpGreaterThan, nil)}},
		ruleDef{id: "by-source", typ: model.RuleGroup, priority: 5,
			conds: []model.RuleCondition{model.NewCondition(model.FieldFeedSourceID, model.OpEquals, nil)}},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	// Sorted newest first: a2 c1 b1 c2 a1, then grouped by first occurrence.
	if diff := cmp.Diff([]string{"a2", "a1", "c1", "c2", "b1"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMixGroupKeepsKindsApart(t *testing.T) {
	at := base.Add(time.Second)
	keys := []struct {
		id  string
		key any
	}{
		{"a", 1},
		{"b", "x"},
		{"c", "1"},
		{"d", 1.0},
		{"e", []string{"p", "q"}},
		{"f", "p,q"},
		{"g", []any{"p", "q"}},
		{"h", at},
		{"i", at.Add(time.Millisecond)},
		{"j", at},
	}
	var items []model.FeedItem
	for i, k := range keys {
		it := item(k.id, "x", i)
		if err := it.SetExtension("k", k.key); err != nil {
			t.Fatalf("SetExtension: %v", err)
		}
		items = append(items, it)
	}
	m := mixerWith(t, []model.Feed{feed(t, "a", items...)},
		ruleDef{id: "by-k", typ: model.RuleGroup,
			conds: []model.RuleCondition{model.NewCondition("k", model.OpEquals, nil)}},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	// 1 and 1.0 are one number; lists match lists; times match at full precision.
	want := []string{"a", "d", "b", "c", "e", "g", "f", "h", "j", "i"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMixGroupPreservesIntraGroupOrder(t *testing.T) {
	topics := []struct{ id, topic string }{
		{"1", "go"}, {"2", "rust"}, {"3", "go"}, {"4", ""}, {"5", "rust"}, {"6", "go"},
	}
	var items []model.FeedItem
	for i, tp := range topics {
		it := item(tp.id, "x", i)
		if tp.topic != "" {
			if err := it.SetExtension("topic", tp.topic); err != nil {
				t.Fatalf("SetExtension: %v", err)
			}
		}
		items = append(items, it)
	}
	m := mixerWith(t, []model.Feed{feed(t, "a", items...)},
		ruleDef{id: "by-topic", typ: model.RuleGroup,
			conds: []model.RuleCondition{model.NewCondition("topic", model.OpEquals, nil)}},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "3", "6", "2", "5", "4"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMixPriorityOrder(t *testing.T) {
	m := mixerWith(t, []model.Feed{feed(t, "a", item("x", "spam offer", 0), item("y", "news", 1))},
		// Added first but runs second.
		ruleDef{id: "b", typ: model.RuleTransform, priority: 1,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpContains, "spam")},
			trans: []model.RuleTransformation{{Field: "title", Type: model.TransformReplace, Value: "rewritten"}}},
		ruleDef{id: "a", typ: model.RuleFilter, priority: 10,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpNotContains, "spam")}},
	)

	got, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if diff := cmp.Diff([]string{"y"}, ids(got)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("news", got[0].Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderRulesStableOnTies(t *testing.T) {
	rules := []model.Rule{
		{ID: "low", Priority: 1},
		{ID: "first-high", Priority: 5},
		{ID: "mid", Priority: 3},
		{ID: "second-high", Priority: 5},
	}
	got := OrderRules(rules)

	gotIDs := make([]string, len(got))
	for i, r := range got {
		gotIDs[i] = r.ID
	}
	if diff := cmp.Diff([]string{"first-high", "second-high", "mid", "low"}, gotIDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMixIdempotent(t *testing.T) {
	m := mixerWith(t, []model.Feed{
		feed(t, "a", item("1", "go", 2), item("2", "rust", 0)),
		feed(t, "b", item("3", "go tips", 1)),
	},
		ruleDef{id: "tag", typ: model.RuleTag, priority: 3,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpRegex, `^go`)},
			trans: []model.RuleTransformation{{Field: "tags", Type: model.TransformAppend, Value: "go"}}},
		ruleDef{id: "sort", typ: model.RuleSort, priority: 2,
			conds: []model.RuleCondition{model.NewCondition(model.FieldPublishedDate, model.OpLessThan, nil)}},
		ruleDef{id: "group", typ: model.RuleGroup, priority: 1,
			conds: []model.RuleCondition{model.NewCondition(model.FieldTags, model.OpEquals, nil)}},
	)

	first, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("first Mix: %v", err)
	}
	second, err := Mix(m, opts())
	if err != nil {
		t.Fatalf("second Mix: %v", err)
	}

	fields := func(items []model.FeedItem) []map[string]any {
		out := make([]map[string]any, len(items))
		for i, it := range items {
			out[i] = it.Fields()
		}
		return out
	}
	if diff := cmp.Diff(fields(first), fields(second)); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}

	// Feed snapshots are unchanged by the run.
	for _, f := range m.Feeds() {
		for _, it := range f.Items() {
			if len(it.Tags()) != 0 {
				t.Errorf("feed item %s was tagged in place", it.ID)
			}
		}
	}
}

func TestMixStructuralErrorAborts(t *testing.T) {
	m := mixerWith(t, []model.Feed{feed(t, "a", item("1", "go", 0))},
		ruleDef{id: "bad-regex", typ: model.RuleFilter,
			conds: []model.RuleCondition{model.NewCondition("title", model.OpRegex, "(")}},
	)

	got, err := Mix(m, opts())
	if !mixerrs.Is(err, mixerrs.KindInvalidPattern) {
		t.Fatalf("expected invalid pattern error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no partial output, got %d items", len(got))
	}
}
