// Package rule evaluates rule conditions, applies rule transformations and
// validates rules before they take part in mixing.
package rule

import (
	"errors"
	"fmt"
	"regexp"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

// LogicMode selects how a rule combines its conditions.
type LogicMode string

const (
	// LogicAll requires every condition to hold. The per-condition logic is
	// ignored.
	LogicAll LogicMode = "all"
	// LogicChain folds conditions left to right, joining condition i to
	// condition i+1 with condition i's logic operator.
	LogicChain LogicMode = "chain"
)

// ParseLogicMode converts a configuration value into a LogicMode.
func ParseLogicMode(s string) (LogicMode, error) {
	switch m := LogicMode(s); m {
	case LogicAll, LogicChain:
		return m, nil
	case "":
		return LogicAll, nil
	}
	return "", mixerrs.E(fmt.Sprintf("unknown condition logic %q", s), mixerrs.KindValidation,
		mixerrs.Detail{Field: "condition_logic", Error: "must be all or chain"})
}

// Evaluate tests c against item. A regex operand is compiled on every call;
// use Compile to validate and precompile patterns once.
func Evaluate(c model.RuleCondition, item model.FeedItem) (bool, error) {
	var re *regexp.Regexp
	if c.Operator == model.OpRegex {
		var err error
		if re, err = compilePattern(c); err != nil {
			return false, err
		}
	}
	return evaluate(c, re, item)
}

func evaluate(c model.RuleCondition, re *regexp.Regexp, item model.FeedItem) (bool, error) {
	v, ok := item.Field(c.Field)
	if !ok {
		return false, nil
	}

	var (
		matched bool
		err     error
	)
	switch c.Operator {
	case model.OpEquals:
		matched = equal(v, c.Value)
	case model.OpNotEquals:
		matched = !equal(v, c.Value)
	case model.OpContains:
		matched, err = contains(v, c.Value)
	case model.OpNotContains:
		matched, err = contains(v, c.Value)
		matched = !matched
	case model.OpGreaterThan, model.OpLessThan:
		var n int
		n, err = Compare(v, c.Value)
		if c.Operator == model.OpGreaterThan {
			matched = n > 0
		} else {
			matched = n < 0
		}
	case model.OpRegex:
		matched = re.MatchString(StringForm(v))
	default:
		return false, conditionErr(c, mixerrs.KindValidation, errors.New("unknown operator"))
	}

	if err != nil {
		return false, conditionErr(c, mixerrs.KindOf(err), err)
	}
	return matched, nil
}

func compilePattern(c model.RuleCondition) (*regexp.Regexp, error) {
	pattern, ok := c.Value.(string)
	if !ok {
		return nil, conditionErr(c, mixerrs.KindInvalidPattern, fmt.Errorf("pattern must be a string, got %T", c.Value))
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, conditionErr(c, mixerrs.KindInvalidPattern, fmt.Errorf("invalid regex: %w", err))
	}
	return re, nil
}

func conditionErr(c model.RuleCondition, kind mixerrs.Kind, err error) error {
	var e *mixerrs.Error
	if errors.As(err, &e) {
		err = e.Err
	}
	return mixerrs.E(err, kind,
		mixerrs.Detail{Field: "field", Error: c.Field},
		mixerrs.Detail{Field: "operator", Error: string(c.Operator)},
	)
}
