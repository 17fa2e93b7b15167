package statsig

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SecondaryExposure records that a gate was evaluated as a sub-condition of
// another evaluation.
type SecondaryExposure struct {
	Gate      string `json:"gate"`
	GateValue string `json:"gateValue"`
	RuleID    string `json:"ruleID"`
}

// evalResult is the outcome of one local evaluation. When FetchFromServer
// is set the check could not be reproduced locally and every other field is
// meaningless.
type evalResult struct {
	Pass               bool
	FetchFromServer    bool
	ID                 string
	RuleID             string
	Group              string
	GroupName          string
	ConfigValue        json.RawMessage
	SecondaryExposures []SecondaryExposure
}

// evaluator interprets the rule catalog. It is fully synchronous and holds
// no locks; each call resolves specs against whatever snapshot the store
// currently points at.
type evaluator struct {
	store *store
}

func newEvaluator(store *store) *evaluator {
	return &evaluator{store: store}
}

func (e *evaluator) checkGate(user User, name string) *evalResult {
	if gate, ok := e.store.getGate(name); ok {
		return e.evalSpec(user, gate)
	}
	return defaultResult()
}

func (e *evaluator) getConfig(user User, name string) *evalResult {
	if config, ok := e.store.getDynamicConfig(name); ok {
		return e.evalSpec(user, config)
	}
	return defaultResult()
}

// defaultResult is the outcome for a name the catalog does not contain,
// indistinguishable in its exposure from a spec where no rule matched.
func defaultResult() *evalResult {
	return &evalResult{ID: "default", RuleID: "default", Group: "default", GroupName: "default"}
}

func (e *evaluator) evalSpec(user User, spec configSpec) *evalResult {
	if !spec.Enabled {
		return &evalResult{
			ID:          "disabled",
			RuleID:      "disabled",
			Group:       "default",
			GroupName:   "default",
			ConfigValue: spec.configValue(spec.DefaultValue),
		}
	}

	var exposures []SecondaryExposure
	for _, rule := range spec.Rules {
		r := e.evalRule(user, rule)
		if r.FetchFromServer {
			// The server re-evaluates from scratch and emits its own
			// exposures; anything accumulated so far is dropped.
			return &evalResult{FetchFromServer: true}
		}
		exposures = append(exposures, r.SecondaryExposures...)
		if !r.Pass {
			continue
		}
		if !spec.isFeatureGate() && !spec.isDynamicConfig() {
			return &evalResult{FetchFromServer: true}
		}
		if evalPassPercent(user, rule, spec) {
			return &evalResult{
				Pass:               true,
				ID:                 rule.ID,
				RuleID:             rule.ID,
				Group:              rule.Name,
				GroupName:          rule.GroupName,
				ConfigValue:        spec.configValue(rule.ReturnValue),
				SecondaryExposures: exposures,
			}
		}
		return &evalResult{
			ID:                 rule.ID,
			RuleID:             "default",
			Group:              "default",
			GroupName:          "default",
			ConfigValue:        spec.configValue(spec.DefaultValue),
			SecondaryExposures: exposures,
		}
	}

	return &evalResult{
		ID:                 "default",
		RuleID:             "default",
		Group:              "default",
		GroupName:          "default",
		ConfigValue:        spec.configValue(spec.DefaultValue),
		SecondaryExposures: exposures,
	}
}

// evalRule evaluates every condition of the rule without short-circuiting,
// so secondary exposures are collected even after a failing condition.
func (e *evaluator) evalRule(user User, rule configRule) *evalResult {
	result := &evalResult{Pass: true}
	for _, cond := range rule.Conditions {
		r := e.evalCondition(user, cond)
		if !r.Pass {
			result.Pass = false
		}
		if r.FetchFromServer {
			result.FetchFromServer = true
		}
		result.SecondaryExposures = append(result.SecondaryExposures, r.SecondaryExposures...)
	}
	return result
}

func evalPassPercent(user User, rule configRule, spec configSpec) bool {
	ruleSalt := rule.Salt
	if ruleSalt == "" {
		ruleSalt = rule.ID
	}
	hash := getHash(spec.Salt + "." + ruleSalt + "." + user.unitID(rule.IDType))
	return float64(hash%10000) < rule.PassPercentage*100
}

func (e *evaluator) evalCondition(user User, cond configCondition) *evalResult {
	var value interface{}
	switch strings.ToLower(cond.Type) {
	case "public":
		return &evalResult{Pass: true}
	case "pass_gate", "fail_gate":
		return e.evalGateCondition(user, cond)
	case "ip_based", "ua_based":
		return &evalResult{FetchFromServer: true}
	case "user_field":
		value = user.getField(cond.Field)
	case "environment_field":
		value = user.Environment.getField(cond.Field)
	case "current_time":
		value = time.Now().Unix()
	case "user_bucket":
		salt := toString(cond.AdditionalValues["salt"])
		value = int64(getHash(salt+"."+user.unitID(cond.IDType)) % 1000)
	case "unit_id":
		value = user.unitID(cond.IDType)
	default:
		return &evalResult{FetchFromServer: true}
	}

	pass := false
	op := strings.ToLower(cond.Operator)
	switch op {
	case "gt":
		pass = compareNumbers(value, cond.TargetValue, func(x, y float64) bool { return x > y })
	case "gte":
		pass = compareNumbers(value, cond.TargetValue, func(x, y float64) bool { return x >= y })
	case "lt":
		pass = compareNumbers(value, cond.TargetValue, func(x, y float64) bool { return x < y })
	case "lte":
		pass = compareNumbers(value, cond.TargetValue, func(x, y float64) bool { return x <= y })

	case "version_gt":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c > 0 })
	case "version_gte":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c >= 0 })
	case "version_lt":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c < 0 })
	case "version_lte":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c <= 0 })
	case "version_eq":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c == 0 })
	case "version_neq":
		pass = compareVersions(value, cond.TargetValue, func(c int) bool { return c != 0 })

	case "any":
		pass = matchAny(cond.TargetValue, value, true)
	case "none":
		pass = !matchAny(cond.TargetValue, value, true)
	case "any_case_sensitive":
		pass = matchAny(cond.TargetValue, value, false)
	case "none_case_sensitive":
		pass = !matchAny(cond.TargetValue, value, false)

	case "eq", "neq":
		equal := false
		if target, ok := cond.TargetValue.(string); ok {
			equal = target == toString(value)
		} else {
			// String-typed user fields cannot hold nil, so a missing
			// target matches both nil and the empty string.
			equal = value == nil || toString(value) == ""
		}
		if op == "eq" {
			pass = equal
		} else {
			pass = !equal
		}

	case "before":
		pass = toEpochSeconds(value) < toEpochSeconds(cond.TargetValue)
	case "after":
		pass = toEpochSeconds(value) > toEpochSeconds(cond.TargetValue)
	case "on":
		t1 := time.Unix(toEpochSeconds(value), 0).UTC()
		t2 := time.Unix(toEpochSeconds(cond.TargetValue), 0).UTC()
		y1, m1, d1 := t1.Date()
		y2, m2, d2 := t2.Date()
		pass = y1 == y2 && m1 == m2 && d1 == d2

	default:
		// str_starts_with_any, str_ends_with_any, str_contains_any,
		// str_contains_none, str_matches, in_segment_list,
		// not_in_segment_list, and anything unrecognized.
		return &evalResult{FetchFromServer: true}
	}
	return &evalResult{Pass: pass}
}

// evalGateCondition recursively evaluates the referenced gate and appends a
// synthesized exposure for it after the sub-result's own exposures. A
// reference to a gate that does not exist is a clean fail, not a fallback.
func (e *evaluator) evalGateCondition(user User, cond configCondition) *evalResult {
	name, ok := cond.TargetValue.(string)
	if !ok {
		return new(evalResult)
	}
	sub := e.checkGate(user, name)
	if sub.FetchFromServer {
		return &evalResult{FetchFromServer: true}
	}
	exposures := append(sub.SecondaryExposures, SecondaryExposure{
		Gate:      name,
		GateValue: strconv.FormatBool(sub.Pass),
		RuleID:    sub.ID,
	})
	pass := sub.Pass
	if strings.ToLower(cond.Type) == "fail_gate" {
		pass = !pass
	}
	return &evalResult{Pass: pass, SecondaryExposures: exposures}
}
