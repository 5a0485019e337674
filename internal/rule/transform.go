package rule

import (
	"errors"
	"fmt"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

// Apply returns item with t applied. The argument is never modified.
// Custom functions are resolved through reg.
func Apply(t model.RuleTransformation, item model.FeedItem, reg *Registry) (model.FeedItem, error) {
	var fn Func
	if t.Type == model.TransformCustom && t.CustomFunction != "" {
		var ok bool
		if fn, ok = reg.Lookup(t.CustomFunction); !ok {
			return item, transformErr(t, mixerrs.KindValidation, fmt.Errorf("unknown custom function %q", t.CustomFunction))
		}
	}
	return apply(t, fn, item)
}

func apply(t model.RuleTransformation, fn Func, item model.FeedItem) (model.FeedItem, error) {
	old, present := item.Field(t.Field)
	if !present && t.Type != model.TransformAppend && t.Type != model.TransformCustom {
		return item, nil
	}

	var (
		out = item
		err error
	)
	switch t.Type {
	case model.TransformReplace:
		out, err = item.WithField(t.Field, t.Value)
	case model.TransformAppend:
		switch {
		case t.Field == model.FieldTags:
			out, err = item.WithField(t.Field, append(item.Tags(), tagValues(t.Value)...))
		case present:
			out, err = item.WithField(t.Field, StringForm(old)+StringForm(t.Value))
		default:
			out, err = item.WithField(t.Field, t.Value)
		}
	case model.TransformPrepend:
		if t.Field == model.FieldTags {
			out, err = item.WithField(t.Field, append(tagValues(t.Value), item.Tags()...))
		} else {
			out, err = item.WithField(t.Field, StringForm(t.Value)+StringForm(old))
		}
	case model.TransformRemove:
		out, err = item.WithoutField(t.Field)
	case model.TransformCustom:
		if !present || fn == nil {
			return item, nil
		}
		var v any
		if v, err = call(fn, old); err != nil {
			return item, transformErr(t, mixerrs.KindTransformFailure, err)
		}
		out, err = item.WithField(t.Field, v)
	default:
		return item, transformErr(t, mixerrs.KindValidation, errors.New("unknown transformation type"))
	}

	if err != nil {
		return item, transformErr(t, mixerrs.KindOf(err), err)
	}
	return out, nil
}

// call runs fn, turning a panic into an error.
func call(fn Func, v any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("custom function panicked: %v", r)
		}
	}()
	return fn(v)
}

// tagValues turns a transformation payload into tags. Anything that is not a
// string or list of strings becomes a single tag in its string form.
func tagValues(v any) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	if ss, ok := toStrings(v); ok {
		return ss
	}
	return []string{StringForm(v)}
}

func transformErr(t model.RuleTransformation, kind mixerrs.Kind, err error) error {
	var e *mixerrs.Error
	if errors.As(err, &e) {
		err = e.Err
	}
	return mixerrs.E(err, kind,
		mixerrs.Detail{Field: "field", Error: t.Field},
		mixerrs.Detail{Field: "transformation", Error: string(t.Type)},
	)
}
