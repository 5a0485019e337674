package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

type (
	conditionDTO struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
		Logic    string `json:"logic,omitempty"`
	}

	transformationDTO struct {
		Field          string `json:"field"`
		Type           string `json:"type"`
		Value          any    `json:"value,omitempty"`
		CustomFunction string `json:"custom_function,omitempty"`
	}

	ruleResp struct {
		ID              string              `json:"id"`
		MixerID         string              `json:"mixer_id"`
		Name            string              `json:"name"`
		RuleType        string              `json:"rule_type"`
		Description     string              `json:"description"`
		Priority        int                 `json:"priority"`
		Conditions      []conditionDTO      `json:"conditions"`
		Transformations []transformationDTO `json:"transformations"`
	}
)

func newRuleResp(r model.Rule) ruleResp {
	resp := ruleResp{
		ID:              r.ID,
		MixerID:         r.MixerID,
		Name:            r.Name,
		RuleType:        string(r.Type),
		Description:     r.Description,
		Priority:        r.Priority,
		Conditions:      []conditionDTO{},
		Transformations: []transformationDTO{},
	}
	for _, c := range r.Conditions() {
		resp.Conditions = append(resp.Conditions, conditionDTO{
			Field:    c.Field,
			Operator: string(c.Operator),
			Value:    c.Value,
			Logic:    string(c.Logic),
		})
	}
	for _, t := range r.Transformations() {
		resp.Transformations = append(resp.Transformations, transformationDTO{
			Field:          t.Field,
			Type:           string(t.Type),
			Value:          t.Value,
			CustomFunction: t.CustomFunction,
		})
	}
	return resp
}

// ruleReq is the body of rule create and update requests. Semantic checks
// happen when the rule is compiled.
type ruleReq struct {
	Name            string              `json:"name"`
	RuleType        string              `json:"rule_type"`
	Description     string              `json:"description"`
	Priority        int                 `json:"priority"`
	Conditions      []conditionDTO      `json:"conditions"`
	Transformations []transformationDTO `json:"transformations"`
}

func (r ruleReq) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return mixerrs.E("rule name is required", mixerrs.KindValidation,
			mixerrs.Detail{Field: "name", Error: "required"})
	}
	return nil
}

func (r ruleReq) toModel(id, mixerID string) (model.Rule, error) {
	rl, err := model.NewRule(id, r.Name, model.RuleType(r.RuleType), r.Priority)
	if err != nil {
		return model.Rule{}, err
	}
	rl.MixerID = mixerID
	rl.Description = r.Description
	for _, c := range r.Conditions {
		rl.AddCondition(model.RuleCondition{
			Field:    c.Field,
			Operator: model.ComparisonOperator(c.Operator),
			Value:    c.Value,
			Logic:    model.LogicOperator(c.Logic),
		})
	}
	for _, t := range r.Transformations {
		rl.AddTransformation(model.RuleTransformation{
			Field:          t.Field,
			Type:           model.TransformationType(t.Type),
			Value:          t.Value,
			CustomFunction: t.CustomFunction,
		})
	}
	return rl, nil
}

func (s *Server) postRule(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	mixerID := mux.Vars(r)["id"]

	req, err := decodeValid[ruleReq](r)
	if err != nil {
		return err
	}
	rl, err := req.toModel("", mixerID)
	if err != nil {
		return err
	}
	if err := s.mixer.Validate(rl); err != nil {
		return err
	}
	if err := s.store.CreateRule(ctx, &rl); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, newRuleResp(rl))
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	mixerID := mux.Vars(r)["id"]

	if _, err := s.store.GetMixer(ctx, mixerID); err != nil {
		return err
	}
	rules, err := s.store.ListRules(ctx, mixerID)
	if err != nil {
		return err
	}

	resps := make([]ruleResp, 0, len(rules))
	for _, rl := range rules {
		resps = append(resps, newRuleResp(rl))
	}
	return writeJSON(w, http.StatusOK, resps)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) error {
	rl, err := s.store.GetRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newRuleResp(rl))
}

// putRule replaces a rule. The rule stays attached to its mixer.
func (s *Server) putRule(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	existing, err := s.store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	req, err := decodeValid[ruleReq](r)
	if err != nil {
		return err
	}
	rl, err := req.toModel(id, existing.MixerID)
	if err != nil {
		return err
	}
	if err := s.mixer.Validate(rl); err != nil {
		return err
	}
	if err := s.store.UpdateRule(ctx, rl); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newRuleResp(rl))
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
