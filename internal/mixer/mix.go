// Package mixer combines the items of a mixer's feeds and folds its rules over
// them to produce one ordered output sequence.
package mixer

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
	"feedmixer/internal/rule"
)

// Options controls how rules are compiled for a mixing run.
type Options struct {
	Registry *rule.Registry
	Logic    rule.LogicMode
}

// stage applies one compiled rule to the whole working set.
type stage func(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error)

var stages = map[model.RuleType]stage{
	model.RuleFilter:    filterStage,
	model.RuleTransform: transformStage,
	model.RuleTag:       tagStage,
	model.RuleSort:      sortStage,
	model.RuleGroup:     groupStage,
}

// Mix returns the items of every feed of m, in feed order, folded through m's
// rules by descending priority. Rules with equal priority run in the order
// they were added. Every rule is compiled before any item is touched, and the
// first error aborts the run.
func Mix(m model.Mixer, opts Options) ([]model.FeedItem, error) {
	rules := OrderRules(m.Rules())

	compiled := make([]*rule.Compiled, 0, len(rules))
	for _, r := range rules {
		c, err := rule.Compile(r, opts.Registry, opts.Logic)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.ID, err)
		}
		compiled = append(compiled, c)
	}

	items := Flatten(m.Feeds())
	for _, c := range compiled {
		run, ok := stages[c.Rule().Type]
		if !ok {
			return nil, mixerrs.E(fmt.Sprintf("no stage for rule type %q", c.Rule().Type), mixerrs.KindValidation,
				mixerrs.Detail{Field: "rule_id", Error: c.Rule().ID})
		}
		var err error
		if items, err = run(c, items); err != nil {
			return nil, fmt.Errorf("apply rule %s: %w", c.Rule().ID, err)
		}
	}
	return items, nil
}

// OrderRules returns rules sorted by descending priority, stable on ties.
func OrderRules(rules []model.Rule) []model.Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b model.Rule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}

// Flatten concatenates the items of feeds in order without deduplication.
func Flatten(feeds []model.Feed) []model.FeedItem {
	var items []model.FeedItem
	for _, f := range feeds {
		items = append(items, f.Items()...)
	}
	return items
}

func filterStage(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error) {
	out := make([]model.FeedItem, 0, len(items))
	for _, it := range items {
		ok, err := c.Matches(it)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func transformStage(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error) {
	out := make([]model.FeedItem, len(items))
	for i, it := range items {
		ok, err := c.Matches(it)
		if err != nil {
			return nil, err
		}
		if !ok {
			out[i] = it
			continue
		}
		if out[i], err = c.Apply(it); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func tagStage(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error) {
	tags := c.Tags()
	out := make([]model.FeedItem, len(items))
	for i, it := range items {
		ok, err := c.Matches(it)
		if err != nil {
			return nil, err
		}
		if ok {
			for _, tag := range tags {
				it.AddTag(tag)
			}
		}
		out[i] = it
	}
	return out, nil
}

type keyed struct {
	item model.FeedItem
	key  any
}

// sortStage orders by the key field. Items without the key keep their
// relative order after all others. Keys must be mutually ordered: numbers,
// strings or timestamps. A list-valued key, such as a list extension, fails
// the run with a type error; Compile rejects sorting on tags up front.
func sortStage(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error) {
	field, desc := c.Key()

	present := make([]keyed, 0, len(items))
	var absent []model.FeedItem
	for _, it := range items {
		if v, ok := it.Field(field); ok {
			present = append(present, keyed{item: it, key: v})
		} else {
			absent = append(absent, it)
		}
	}

	var cmpErr error
	slices.SortStableFunc(present, func(a, b keyed) int {
		n, err := rule.Compare(a.key, b.key)
		if err != nil {
			if cmpErr == nil {
				cmpErr = err
			}
			return 0
		}
		if desc {
			return -n
		}
		return n
	})
	if cmpErr != nil {
		var e *mixerrs.Error
		if errors.As(cmpErr, &e) {
			cmpErr = e.Err
		}
		first := c.Rule().Conditions()[0]
		return nil, mixerrs.E(cmpErr, mixerrs.KindType,
			mixerrs.Detail{Field: "rule_id", Error: c.Rule().ID},
			mixerrs.Detail{Field: "field", Error: field},
			mixerrs.Detail{Field: "operator", Error: string(first.Operator)},
		)
	}

	out := make([]model.FeedItem, 0, len(items))
	for _, k := range present {
		out = append(out, k.item)
	}
	return append(out, absent...), nil
}

type group struct {
	key   any
	items []model.FeedItem
}

// groupStage clusters items sharing a key value. Groups appear in order of
// first occurrence; items without the key form one more group. Keys are
// compared with rule.SameKey, so 1 and "1" are different groups.
func groupStage(c *rule.Compiled, items []model.FeedItem) ([]model.FeedItem, error) {
	field, _ := c.Key()

	var groups []*group
	var absent *group
	for _, it := range items {
		v, ok := it.Field(field)
		if !ok {
			if absent == nil {
				absent = &group{}
				groups = append(groups, absent)
			}
			absent.items = append(absent.items, it)
			continue
		}
		i := slices.IndexFunc(groups, func(g *group) bool {
			return g != absent && rule.SameKey(g.key, v)
		})
		if i < 0 {
			groups = append(groups, &group{key: v})
			i = len(groups) - 1
		}
		groups[i].items = append(groups[i].items, it)
	}

	out := make([]model.FeedItem, 0, len(items))
	for _, g := range groups {
		out = append(out, g.items...)
	}
	return out, nil
}
