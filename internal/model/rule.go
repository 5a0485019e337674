package model

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	mixerrs "feedmixer/internal/errors"
)

// RuleType determines how a rule takes part in mixing.
type RuleType string

// Supported rule types.
const (
	RuleFilter    RuleType = "filter"
	RuleTransform RuleType = "transform"
	RuleTag       RuleType = "tag"
	RuleSort      RuleType = "sort"
	RuleGroup     RuleType = "group"
)

// ComparisonOperator is the test a condition applies to a field.
type ComparisonOperator string

// Supported comparison operators.
const (
	OpEquals      ComparisonOperator = "equals"
	OpNotEquals   ComparisonOperator = "not_equals"
	OpContains    ComparisonOperator = "contains"
	OpNotContains ComparisonOperator = "not_contains"
	OpGreaterThan ComparisonOperator = "greater_than"
	OpLessThan    ComparisonOperator = "less_than"
	OpRegex       ComparisonOperator = "regex"
)

// LogicOperator joins a condition to the one after it.
type LogicOperator string

// Supported logic operators.
const (
	LogicAnd LogicOperator = "and"
	LogicOr  LogicOperator = "or"
)

// TransformationType is the mutation a transformation applies to a field.
type TransformationType string

// Supported transformation types.
const (
	TransformReplace TransformationType = "replace"
	TransformAppend  TransformationType = "append"
	TransformPrepend TransformationType = "prepend"
	TransformRemove  TransformationType = "remove"
	TransformCustom  TransformationType = "custom"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleFilter, RuleTransform, RuleTag, RuleSort, RuleGroup:
		return true
	}
	return false
}

func (o ComparisonOperator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan, OpLessThan, OpRegex:
		return true
	}
	return false
}

func (l LogicOperator) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

func (t TransformationType) Valid() bool {
	switch t {
	case TransformReplace, TransformAppend, TransformPrepend, TransformRemove, TransformCustom:
		return true
	}
	return false
}

// RuleCondition is a single predicate over one item field.
type RuleCondition struct {
	Field    string
	Operator ComparisonOperator
	Value    any
	Logic    LogicOperator
}

// NewCondition builds a condition joined to its successor with AND.
func NewCondition(field string, op ComparisonOperator, value any) RuleCondition {
	return RuleCondition{Field: field, Operator: op, Value: value, Logic: LogicAnd}
}

// Or returns a copy of c joined to its successor with OR.
func (c RuleCondition) Or() RuleCondition {
	c.Logic = LogicOr
	return c
}

// RuleTransformation is a single field-level mutation.
//
// CustomFunction names a function registered ahead of time; it is only
// consulted when Type is TransformCustom.
type RuleTransformation struct {
	Field          string
	Type           TransformationType
	Value          any
	CustomFunction string
}

// Rule is a typed, prioritized bundle of conditions and transformations.
type Rule struct {
	ID          string
	MixerID     string
	Name        string
	Type        RuleType
	Description string
	Priority    int

	conditions      []RuleCondition
	transformations []RuleTransformation
}

// NewRule validates the type and returns an empty rule. An empty id is generated.
func NewRule(id, name string, typ RuleType, priority int) (Rule, error) {
	if !typ.Valid() {
		return Rule{}, mixerrs.E(fmt.Sprintf("unknown rule type %q", typ), mixerrs.KindValidation,
			mixerrs.Detail{Field: "rule_type", Error: "must be one of filter, transform, tag, sort, group"})
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Rule{ID: id, Name: name, Type: typ, Priority: priority}, nil
}

// AddCondition appends a condition. A condition without logic joins with AND.
func (r *Rule) AddCondition(c RuleCondition) {
	if c.Logic == "" {
		c.Logic = LogicAnd
	}
	r.conditions = append(slices.Clip(r.conditions), c)
}

// AddTransformation appends a transformation.
func (r *Rule) AddTransformation(t RuleTransformation) {
	r.transformations = append(slices.Clip(r.transformations), t)
}

// Conditions returns a copy of the rule's conditions in declared order.
func (r Rule) Conditions() []RuleCondition {
	return slices.Clone(r.conditions)
}

// Transformations returns a copy of the rule's transformations in declared order.
func (r Rule) Transformations() []RuleTransformation {
	return slices.Clone(r.transformations)
}
