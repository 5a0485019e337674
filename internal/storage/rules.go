package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"feedmixer/internal/model"
)

type ruleRow struct {
	ID              string `db:"id"`
	MixerID         string `db:"mixer_id"`
	Name            string `db:"name"`
	RuleType        string `db:"rule_type"`
	Description     string `db:"description"`
	Priority        int    `db:"priority"`
	Conditions      string `db:"conditions"`
	Transformations string `db:"transformations"`
	CreatedAt       string `db:"created_at"`
}

// conditionDoc and transformationDoc are the JSON shapes stored in the rules table.
type conditionDoc struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Logic    string `json:"logic,omitempty"`
}

type transformationDoc struct {
	Field          string `json:"field"`
	Type           string `json:"type"`
	Value          any    `json:"value,omitempty"`
	CustomFunction string `json:"custom_function,omitempty"`
}

const ruleColumns = "id, mixer_id, name, rule_type, description, priority, conditions, transformations, created_at"

func newRuleRow(r model.Rule, now string) (ruleRow, error) {
	conds := make([]conditionDoc, 0, len(r.Conditions()))
	for _, c := range r.Conditions() {
		conds = append(conds, conditionDoc{
			Field:    c.Field,
			Operator: string(c.Operator),
			Value:    c.Value,
			Logic:    string(c.Logic),
		})
	}
	trans := make([]transformationDoc, 0, len(r.Transformations()))
	for _, t := range r.Transformations() {
		trans = append(trans, transformationDoc{
			Field:          t.Field,
			Type:           string(t.Type),
			Value:          t.Value,
			CustomFunction: t.CustomFunction,
		})
	}

	condJSON, err := json.Marshal(conds)
	if err != nil {
		return ruleRow{}, fmt.Errorf("encode conditions: %w", err)
	}
	transJSON, err := json.Marshal(trans)
	if err != nil {
		return ruleRow{}, fmt.Errorf("encode transformations: %w", err)
	}

	return ruleRow{
		ID:              r.ID,
		MixerID:         r.MixerID,
		Name:            r.Name,
		RuleType:        string(r.Type),
		Description:     r.Description,
		Priority:        r.Priority,
		Conditions:      string(condJSON),
		Transformations: string(transJSON),
		CreatedAt:       now,
	}, nil
}

func (row ruleRow) toModel() (model.Rule, error) {
	r := model.Rule{
		ID:          row.ID,
		MixerID:     row.MixerID,
		Name:        row.Name,
		Type:        model.RuleType(row.RuleType),
		Description: row.Description,
		Priority:    row.Priority,
	}

	var conds []conditionDoc
	if err := json.Unmarshal([]byte(row.Conditions), &conds); err != nil {
		return model.Rule{}, fmt.Errorf("decode conditions of rule %s: %w", row.ID, err)
	}
	for _, c := range conds {
		r.AddCondition(model.RuleCondition{
			Field:    c.Field,
			Operator: model.ComparisonOperator(c.Operator),
			Value:    c.Value,
			Logic:    model.LogicOperator(c.Logic),
		})
	}

	var trans []transformationDoc
	if err := json.Unmarshal([]byte(row.Transformations), &trans); err != nil {
		return model.Rule{}, fmt.Errorf("decode transformations of rule %s: %w", row.ID, err)
	}
	for _, t := range trans {
		r.AddTransformation(model.RuleTransformation{
			Field:          t.Field,
			Type:           model.TransformationType(t.Type),
			Value:          t.Value,
			CustomFunction: t.CustomFunction,
		})
	}
	return r, nil
}

// CreateRule inserts a rule for r.MixerID and populates its ID.
func (s *SQLite) CreateRule(ctx context.Context, r *model.Rule) error {
	if _, err := s.GetMixer(ctx, r.MixerID); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	row, err := newRuleRow(*r, s.timestamp())
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT INTO rules (`+ruleColumns+`)
		 VALUES (:id, :mixer_id, :name, :rule_type, :description, :priority, :conditions, :transformations, :created_at)`,
		row,
	); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// GetRule returns a rule by id.
func (s *SQLite) GetRule(ctx context.Context, id string) (model.Rule, error) {
	var row ruleRow
	err := s.db.GetContext(ctx, &row, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rule{}, notFound("rule", id)
	}
	if err != nil {
		return model.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return row.toModel()
}

// ListRules returns a mixer's rules in the order they were created.
func (s *SQLite) ListRules(ctx context.Context, mixerID string) ([]model.Rule, error) {
	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+ruleColumns+` FROM rules WHERE mixer_id = ? ORDER BY rowid`, mixerID,
	); err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}

	rules := make([]model.Rule, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// UpdateRule replaces every stored attribute of r except its mixer.
func (s *SQLite) UpdateRule(ctx context.Context, r model.Rule) error {
	row, err := newRuleRow(r, "")
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE rules SET name = :name, rule_type = :rule_type, description = :description,
		   priority = :priority, conditions = :conditions, transformations = :transformations
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return expectRow(res, "rule", r.ID)
}

// DeleteRule removes a rule by id.
func (s *SQLite) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return expectRow(res, "rule", id)
}
