package rule

import (
	"errors"
	"fmt"
	"regexp"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

type condition struct {
	model.RuleCondition
	re *regexp.Regexp
}

type transformation struct {
	model.RuleTransformation
	fn Func
}

// Compiled is a validated rule ready to run against items. It is immutable and
// safe for concurrent use.
type Compiled struct {
	rule  model.Rule
	logic LogicMode
	conds []condition
	trans []transformation
	tags  []string
}

// Compile validates r and resolves everything it references: regex patterns
// are compiled, custom functions looked up in reg, the sort or group key and
// the tags of a tag rule checked. Errors carry the rule id.
func Compile(r model.Rule, reg *Registry, logic LogicMode) (*Compiled, error) {
	if logic == "" {
		logic = LogicAll
	}
	if logic != LogicAll && logic != LogicChain {
		return nil, ruleErr(r, mixerrs.E(fmt.Sprintf("unknown condition logic %q", logic), mixerrs.KindValidation))
	}
	if !r.Type.Valid() {
		return nil, ruleErr(r, mixerrs.E(fmt.Sprintf("unknown rule type %q", r.Type), mixerrs.KindValidation,
			mixerrs.Detail{Field: "rule_type", Error: string(r.Type)}))
	}

	c := &Compiled{rule: r, logic: logic}

	for _, rc := range r.Conditions() {
		if err := checkCondition(rc); err != nil {
			return nil, ruleErr(r, err)
		}
		cond := condition{RuleCondition: rc}
		if rc.Operator == model.OpRegex {
			re, err := compilePattern(rc)
			if err != nil {
				return nil, ruleErr(r, err)
			}
			cond.re = re
		}
		c.conds = append(c.conds, cond)
	}

	for _, rt := range r.Transformations() {
		if err := checkTransformation(rt); err != nil {
			return nil, ruleErr(r, err)
		}
		tr := transformation{RuleTransformation: rt}
		if rt.Type == model.TransformCustom && rt.CustomFunction != "" {
			fn, ok := reg.Lookup(rt.CustomFunction)
			if !ok {
				return nil, ruleErr(r, transformErr(rt, mixerrs.KindValidation,
					fmt.Errorf("unknown custom function %q", rt.CustomFunction)))
			}
			tr.fn = fn
		}
		c.trans = append(c.trans, tr)
	}

	switch r.Type {
	case model.RuleSort, model.RuleGroup:
		if len(c.conds) == 0 {
			return nil, ruleErr(r, mixerrs.E(fmt.Sprintf("%s rule needs a condition naming its key field", r.Type),
				mixerrs.KindValidation, mixerrs.Detail{Field: "conditions", Error: "required"}))
		}
		if r.Type == model.RuleSort && c.conds[0].Field == model.FieldTags {
			return nil, ruleErr(r, mixerrs.E("tags are a set and cannot be a sort key", mixerrs.KindValidation,
				mixerrs.Detail{Field: "field", Error: model.FieldTags}))
		}
	case model.RuleTag:
		for _, tr := range c.trans {
			if tr.Field != model.FieldTags {
				continue
			}
			if tr.Type != model.TransformReplace && tr.Type != model.TransformAppend {
				continue
			}
			tags, ok := tagPayload(tr.Value)
			if !ok {
				return nil, ruleErr(r, transformErr(tr.RuleTransformation, mixerrs.KindType,
					fmt.Errorf("tag value must be a string or list of strings, got %T", tr.Value)))
			}
			c.tags = append(c.tags, tags...)
		}
		if len(c.tags) == 0 {
			return nil, ruleErr(r, mixerrs.E("tag rule needs a replace or append transformation on tags",
				mixerrs.KindValidation, mixerrs.Detail{Field: "transformations", Error: "required"}))
		}
	}

	return c, nil
}

// Rule returns the rule this was compiled from.
func (c *Compiled) Rule() model.Rule {
	return c.rule
}

// Matches reports whether item satisfies the rule's conditions. A rule
// without conditions matches everything.
func (c *Compiled) Matches(item model.FeedItem) (bool, error) {
	if len(c.conds) == 0 {
		return true, nil
	}

	if c.logic == LogicAll {
		for _, cond := range c.conds {
			ok, err := evaluate(cond.RuleCondition, cond.re, item)
			if err != nil {
				return false, ruleErr(c.rule, err)
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	result, err := evaluate(c.conds[0].RuleCondition, c.conds[0].re, item)
	if err != nil {
		return false, ruleErr(c.rule, err)
	}
	for i := 1; i < len(c.conds); i++ {
		join := c.conds[i-1].Logic
		if (join == model.LogicOr && result) || (join != model.LogicOr && !result) {
			continue
		}
		cond := c.conds[i]
		if result, err = evaluate(cond.RuleCondition, cond.re, item); err != nil {
			return false, ruleErr(c.rule, err)
		}
	}
	return result, nil
}

// Apply folds the rule's transformations over item in declared order.
func (c *Compiled) Apply(item model.FeedItem) (model.FeedItem, error) {
	out := item
	for _, tr := range c.trans {
		var err error
		if out, err = apply(tr.RuleTransformation, tr.fn, out); err != nil {
			return item, ruleErr(c.rule, err)
		}
	}
	return out, nil
}

// Tags is the set of tags a tag rule adds to matching items.
func (c *Compiled) Tags() []string {
	return append([]string(nil), c.tags...)
}

// Key is the field a sort or group rule orders by, and whether a sort runs
// in descending order.
func (c *Compiled) Key() (field string, descending bool) {
	if len(c.conds) == 0 {
		return "", false
	}
	first := c.conds[0]
	return first.Field, first.Operator == model.OpGreaterThan
}

func checkCondition(c model.RuleCondition) error {
	switch {
	case c.Field == "":
		return conditionErr(c, mixerrs.KindValidation, errors.New("condition field is required"))
	case !c.Operator.Valid():
		return conditionErr(c, mixerrs.KindValidation, fmt.Errorf("unknown operator %q", c.Operator))
	case c.Logic != "" && !c.Logic.Valid():
		return conditionErr(c, mixerrs.KindValidation, fmt.Errorf("unknown logic %q", c.Logic))
	}
	return nil
}

func checkTransformation(t model.RuleTransformation) error {
	switch {
	case t.Field == "":
		return transformErr(t, mixerrs.KindValidation, errors.New("transformation field is required"))
	case !t.Type.Valid():
		return transformErr(t, mixerrs.KindValidation, fmt.Errorf("unknown transformation type %q", t.Type))
	case t.Field == model.FieldID:
		return transformErr(t, mixerrs.KindValidation, errors.New("field id is read-only"))
	}
	return nil
}

func tagPayload(v any) ([]string, bool) {
	if s, ok := v.(string); ok {
		return []string{s}, true
	}
	return toStrings(v)
}

// ruleErr attaches the rule id to an engine error, keeping its kind.
func ruleErr(r model.Rule, err error) error {
	var e *mixerrs.Error
	if !errors.As(err, &e) {
		return mixerrs.E(err, mixerrs.Detail{Field: "rule_id", Error: r.ID})
	}
	for _, d := range e.Details {
		if d.Field == "rule_id" {
			return err
		}
	}
	details := append([]mixerrs.Detail{{Field: "rule_id", Error: r.ID}}, e.Details...)
	return mixerrs.E(e.Err, e.Kind, details)
}
