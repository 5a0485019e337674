package rule

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	mixerrs "feedmixer/internal/errors"
)

// StringForm renders a field value the way APPEND, PREPEND and REGEX see it.
func StringForm(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case []string:
		return strings.Join(v, ",")
	case nil:
		return ""
	}
	if ss, ok := toStrings(v); ok {
		return strings.Join(ss, ",")
	}
	return fmt.Sprint(v)
}

// Compare orders two values of a mutually ordered kind: numbers, strings, or
// timestamps (an RFC 3339 string may stand in for a timestamp).
func Compare(a, b any) (int, error) {
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			return cmp.Compare(x, y), nil
		}
		return 0, orderErr(a, b)
	}

	switch x := a.(type) {
	case time.Time:
		y, err := asTime(b)
		if err != nil {
			return 0, orderErr(a, b)
		}
		return x.Compare(y), nil
	case string:
		if y, ok := b.(time.Time); ok {
			xt, err := asTime(x)
			if err != nil {
				return 0, orderErr(a, b)
			}
			return xt.Compare(y), nil
		}
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	}
	return 0, orderErr(a, b)
}

func equal(a, b any) bool {
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}

	switch x := a.(type) {
	case time.Time:
		y, err := asTime(b)
		return err == nil && x.Equal(y)
	case []string:
		y, ok := toStrings(b)
		return ok && slices.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}

// SameKey reports whether a and b are the same grouping key. Unlike the
// equals operator it never coerces across kinds: numbers match numbers,
// timestamps match timestamps at full precision, lists match lists.
func SameKey(a, b any) bool {
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	if _, ok := numeric(b); ok {
		return false
	}

	if x, ok := a.(time.Time); ok {
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	if _, ok := b.(time.Time); ok {
		return false
	}

	if _, isStr := a.(string); !isStr {
		if x, ok := toStrings(a); ok {
			y, ok := toStrings(b)
			return ok && slices.Equal(x, y)
		}
	}
	if _, isStr := b.(string); !isStr {
		if _, ok := toStrings(b); ok {
			return false
		}
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.DeepEqual(a, b)
}

// contains tests membership of operand in a string-like or list-like value.
// Text is matched case-insensitively, list elements exactly.
func contains(field, operand any) (bool, error) {
	switch v := field.(type) {
	case string:
		s, ok := operand.(string)
		if !ok {
			return false, mixerrs.E(fmt.Sprintf("cannot search text for %T", operand), mixerrs.KindType)
		}
		return strings.Contains(strings.ToLower(v), strings.ToLower(s)), nil
	case []string:
		return slices.ContainsFunc(v, func(e string) bool { return equal(e, operand) }), nil
	case []any:
		return slices.ContainsFunc(v, func(e any) bool { return equal(e, operand) }), nil
	}
	return false, mixerrs.E(fmt.Sprintf("cannot search inside %T", field), mixerrs.KindType)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	}
	return time.Time{}, fmt.Errorf("not a timestamp: %T", v)
}

// toStrings accepts []string or a []any holding only strings, which is what
// JSON decoding yields for a list operand.
func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func orderErr(a, b any) error {
	return mixerrs.E(fmt.Sprintf("cannot order %T against %T", a, b), mixerrs.KindType)
}
