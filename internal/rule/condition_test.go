package rule

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

var day = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newItem(t *testing.T, fields map[string]any) model.FeedItem {
	t.Helper()
	item := model.FeedItem{ID: "item-1"}
	for k, v := range fields {
		var err error
		if item, err = item.WithField(k, v); err != nil {
			t.Fatalf("WithField(%q): %v", k, err)
		}
	}
	return item
}

func TestEvaluateMissingFieldNeverMatches(t *testing.T) {
	ops := []model.ComparisonOperator{
		model.OpEquals, model.OpNotEquals, model.OpContains, model.OpNotContains,
		model.OpGreaterThan, model.OpLessThan, model.OpRegex,
	}
	empty := model.FeedItem{ID: "empty"}

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			got, err := Evaluate(model.NewCondition("title", op, "x"), empty)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got {
				t.Error("condition on a missing field must not match")
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		cond   model.RuleCondition
		want   bool
	}{
		{
			name:   "contains is case insensitive",
			fields: map[string]any{"title": "Big Sale Today"},
			cond:   model.NewCondition("title", model.OpContains, "sale"),
			want:   true,
		},
		{
			name:   "contains no match",
			fields: map[string]any{"title": "News"},
			cond:   model.NewCondition("title", model.OpContains, "sale"),
			want:   false,
		},
		{
			name:   "not contains",
			fields: map[string]any{"title": "News"},
			cond:   model.NewCondition("title", model.OpNotContains, "sale"),
			want:   true,
		},
		{
			name:   "contains tag",
			fields: map[string]any{"tags": []string{"go", "news"}},
			cond:   model.NewCondition("tags", model.OpContains, "go"),
			want:   true,
		},
		{
			name:   "tags match exactly",
			fields: map[string]any{"tags": []string{"go"}},
			cond:   model.NewCondition("tags", model.OpContains, "Go"),
			want:   false,
		},
		{
			name:   "equals string",
			fields: map[string]any{"author": "alice"},
			cond:   model.NewCondition("author", model.OpEquals, "alice"),
			want:   true,
		},
		{
			name:   "equals is case sensitive",
			fields: map[string]any{"author": "alice"},
			cond:   model.NewCondition("author", model.OpEquals, "Alice"),
			want:   false,
		},
		{
			name:   "equals string against number is a non-match",
			fields: map[string]any{"score": "5"},
			cond:   model.NewCondition("score", model.OpEquals, 5),
			want:   false,
		},
		{
			name:   "numbers of different types compare as one kind",
			fields: map[string]any{"score": 5},
			cond:   model.NewCondition("score", model.OpEquals, 5.0),
			want:   true,
		},
		{
			name:   "not equals",
			fields: map[string]any{"author": "alice"},
			cond:   model.NewCondition("author", model.OpNotEquals, "bob"),
			want:   true,
		},
		{
			name:   "greater than number",
			fields: map[string]any{"score": 10},
			cond:   model.NewCondition("score", model.OpGreaterThan, 3),
			want:   true,
		},
		{
			name:   "less than number",
			fields: map[string]any{"score": 10},
			cond:   model.NewCondition("score", model.OpLessThan, 3),
			want:   false,
		},
		{
			name:   "date after RFC 3339 operand",
			fields: map[string]any{"published_date": day},
			cond:   model.NewCondition("published_date", model.OpGreaterThan, "2024-01-01T00:00:00Z"),
			want:   true,
		},
		{
			name:   "date before time operand",
			fields: map[string]any{"published_date": day},
			cond:   model.NewCondition("published_date", model.OpLessThan, day.Add(time.Hour)),
			want:   true,
		},
		{
			name:   "regex searches",
			fields: map[string]any{"link": "https://example.com/posts/42"},
			cond:   model.NewCondition("link", model.OpRegex, `posts/\d+`),
			want:   true,
		},
		{
			name:   "regex is case sensitive without flag",
			fields: map[string]any{"title": "Golang"},
			cond:   model.NewCondition("title", model.OpRegex, `^go`),
			want:   false,
		},
		{
			name:   "regex on published date uses RFC 3339",
			fields: map[string]any{"published_date": day},
			cond:   model.NewCondition("published_date", model.OpRegex, `^2024-03`),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.cond, newItem(t, tt.fields))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		cond   model.RuleCondition
		want   mixerrs.Kind
	}{
		{
			name:   "contains on a number",
			fields: map[string]any{"score": 3},
			cond:   model.NewCondition("score", model.OpContains, "3"),
			want:   mixerrs.KindType,
		},
		{
			name:   "contains number in text",
			fields: map[string]any{"title": "3 things"},
			cond:   model.NewCondition("title", model.OpContains, 3),
			want:   mixerrs.KindType,
		},
		{
			name:   "greater than across kinds",
			fields: map[string]any{"title": "abc"},
			cond:   model.NewCondition("title", model.OpGreaterThan, 1),
			want:   mixerrs.KindType,
		},
		{
			name:   "date against unparsable string",
			fields: map[string]any{"published_date": day},
			cond:   model.NewCondition("published_date", model.OpLessThan, "yesterday"),
			want:   mixerrs.KindType,
		},
		{
			name:   "invalid regex",
			fields: map[string]any{"title": "abc"},
			cond:   model.NewCondition("title", model.OpRegex, `(`),
			want:   mixerrs.KindInvalidPattern,
		},
		{
			name:   "regex operand not a string",
			fields: map[string]any{"title": "abc"},
			cond:   model.NewCondition("title", model.OpRegex, 7),
			want:   mixerrs.KindInvalidPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.cond, newItem(t, tt.fields))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if diff := cmp.Diff(tt.want, mixerrs.KindOf(err)); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateErrorDetails(t *testing.T) {
	item := newItem(t, map[string]any{"score": 3})
	_, err := Evaluate(model.NewCondition("score", model.OpContains, "3"), item)

	e, ok := err.(*mixerrs.Error)
	if !ok {
		t.Fatalf("expected *mixerrs.Error, got %T", err)
	}
	want := []mixerrs.Detail{
		{Field: "field", Error: "score"},
		{Field: "operator", Error: "contains"},
	}
	if diff := cmp.Diff(want, e.Details); diff != "" {
		t.Errorf("details mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLogicMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LogicMode
		wantErr bool
	}{
		{in: "", want: LogicAll},
		{in: "all", want: LogicAll},
		{in: "chain", want: LogicChain},
		{in: "any", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogicMode(tt.in)
			if tt.wantErr {
				if !mixerrs.Is(err, mixerrs.KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLogicMode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
