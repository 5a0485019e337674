package rule

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		tr     model.RuleTransformation
		want   map[string]any
	}{
		{
			name:   "append concatenates string forms",
			fields: map[string]any{"category": "a"},
			tr:     model.RuleTransformation{Field: "category", Type: model.TransformAppend, Value: "x"},
			want:   map[string]any{"category": "ax"},
		},
		{
			name:   "append creates a missing field",
			fields: map[string]any{},
			tr:     model.RuleTransformation{Field: "category", Type: model.TransformAppend, Value: "x"},
			want:   map[string]any{"category": "x"},
		},
		{
			// Tags are a set, so APPEND adds an element instead of
			// concatenating text: {tags:"a"} + "x" is [a x], not "ax".
			name:   "append to tags adds an element",
			fields: map[string]any{"tags": "a"},
			tr:     model.RuleTransformation{Field: "tags", Type: model.TransformAppend, Value: "x"},
			want:   map[string]any{"tags": []string{"a", "x"}},
		},
		{
			name:   "append to missing tags creates them",
			fields: map[string]any{},
			tr:     model.RuleTransformation{Field: "tags", Type: model.TransformAppend, Value: "x"},
			want:   map[string]any{"tags": []string{"x"}},
		},
		{
			name:   "append number to text",
			fields: map[string]any{"title": "Top "},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformAppend, Value: 10},
			want:   map[string]any{"title": "Top 10"},
		},
		{
			name:   "prepend on missing field is a no-op",
			fields: map[string]any{},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformPrepend, Value: "["},
			want:   map[string]any{},
		},
		{
			name:   "prepend",
			fields: map[string]any{"title": "News"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformPrepend, Value: "[Go] "},
			want:   map[string]any{"title": "[Go] News"},
		},
		{
			name:   "prepend to tags puts the element first",
			fields: map[string]any{"tags": []string{"b"}},
			tr:     model.RuleTransformation{Field: "tags", Type: model.TransformPrepend, Value: "a"},
			want:   map[string]any{"tags": []string{"a", "b"}},
		},
		{
			name:   "replace existing",
			fields: map[string]any{"author": "alice"},
			tr:     model.RuleTransformation{Field: "author", Type: model.TransformReplace, Value: "bob"},
			want:   map[string]any{"author": "bob"},
		},
		{
			name:   "replace on missing field is a no-op",
			fields: map[string]any{},
			tr:     model.RuleTransformation{Field: "author", Type: model.TransformReplace, Value: "bob"},
			want:   map[string]any{},
		},
		{
			name:   "remove",
			fields: map[string]any{"author": "alice", "title": "t"},
			tr:     model.RuleTransformation{Field: "author", Type: model.TransformRemove},
			want:   map[string]any{"title": "t"},
		},
		{
			name:   "remove missing is a no-op",
			fields: map[string]any{"title": "t"},
			tr:     model.RuleTransformation{Field: "author", Type: model.TransformRemove},
			want:   map[string]any{"title": "t"},
		},
		{
			name:   "custom function",
			fields: map[string]any{"title": "  Loud NEWS  "},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom, CustomFunction: "trim"},
			want:   map[string]any{"title": "Loud NEWS"},
		},
		{
			name:   "custom on missing field is a no-op",
			fields: map[string]any{},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom, CustomFunction: "trim"},
			want:   map[string]any{},
		},
		{
			name:   "custom without a function is a no-op",
			fields: map[string]any{"title": "x"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom},
			want:   map[string]any{"title": "x"},
		},
		{
			name:   "strip html",
			fields: map[string]any{"content": "<p>Hello <b>world</b></p>"},
			tr:     model.RuleTransformation{Field: "content", Type: model.TransformCustom, CustomFunction: "strip_html"},
			want:   map[string]any{"content": "Hello world"},
		},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.tr, newItem(t, tt.fields), reg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := newItem(t, tt.want).Fields()
			if diff := cmp.Diff(want, got.Fields()); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	item := newItem(t, map[string]any{"title": "News", "tags": []string{"a"}})
	before := item.Fields()

	reg := NewRegistry()
	for _, tr := range []model.RuleTransformation{
		{Field: "title", Type: model.TransformAppend, Value: "!"},
		{Field: "tags", Type: model.TransformAppend, Value: "b"},
		{Field: "title", Type: model.TransformRemove},
	} {
		if _, err := Apply(tr, item, reg); err != nil {
			t.Fatalf("Apply(%v): %v", tr, err)
		}
	}

	if diff := cmp.Diff(before, item.Fields()); diff != "" {
		t.Errorf("input item changed (-before +after):\n%s", diff)
	}
}

func TestApplyErrors(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("explode", func(any) (any, error) { return nil, errors.New("boom") }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("panic", func(any) (any, error) { panic("bad") }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name   string
		fields map[string]any
		tr     model.RuleTransformation
		want   mixerrs.Kind
	}{
		{
			name:   "custom function fails",
			fields: map[string]any{"title": "x"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom, CustomFunction: "explode"},
			want:   mixerrs.KindTransformFailure,
		},
		{
			name:   "custom function panics",
			fields: map[string]any{"title": "x"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom, CustomFunction: "panic"},
			want:   mixerrs.KindTransformFailure,
		},
		{
			name:   "built-in on a number",
			fields: map[string]any{"score": 3},
			tr:     model.RuleTransformation{Field: "score", Type: model.TransformCustom, CustomFunction: "lowercase"},
			want:   mixerrs.KindTransformFailure,
		},
		{
			name:   "unknown custom function",
			fields: map[string]any{"title": "x"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformCustom, CustomFunction: "nope"},
			want:   mixerrs.KindValidation,
		},
		{
			name:   "replace title with a number",
			fields: map[string]any{"title": "x"},
			tr:     model.RuleTransformation{Field: "title", Type: model.TransformReplace, Value: 42},
			want:   mixerrs.KindType,
		},
		{
			name:   "append breaks published date",
			fields: map[string]any{"published_date": day},
			tr:     model.RuleTransformation{Field: "published_date", Type: model.TransformAppend, Value: "!"},
			want:   mixerrs.KindType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.tr, newItem(t, tt.fields), reg)
			if diff := cmp.Diff(tt.want, mixerrs.KindOf(err)); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
