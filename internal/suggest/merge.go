package suggest

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ignite/churn-radar/internal/scoring"
)

type replyRule struct {
	Field     scoring.Field    `json:"field"`
	Operator  scoring.Operator `json:"operator"`
	Threshold *float64         `json:"threshold"`
	Weight    *float64         `json:"weight"`
}

type reply struct {
	Rules     []replyRule `json:"rules"`
	Rationale string      `json:"rationale"`
}

// extractJSON returns the JSON object in text: the first ```json fenced
// block if present, otherwise the span from the first '{' to the last '}'.
func extractJSON(text string) (string, bool) {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), true
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func parseReply(text string) (*reply, error) {
	body, ok := extractJSON(text)
	if !ok {
		return nil, ErrNoRules
	}
	var r reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode suggestion: %w", err)
	}
	if len(r.Rules) == 0 {
		return nil, ErrNoRules
	}
	return &r, nil
}

// checkReply fails the whole suggestion on the first reply rule that cannot
// be merged as given. No rule is dropped.
func checkReply(r *reply, allowWeights bool) error {
	for i, rr := range r.Rules {
		if !slices.Contains(scoring.Fields, rr.Field) {
			return &scoring.RuleSetError{Index: i, Field: string(rr.Field), Reason: "unknown field"}
		}
		if rr.Threshold != nil && (math.IsNaN(*rr.Threshold) || math.IsInf(*rr.Threshold, 0)) {
			return &scoring.RuleSetError{Index: i, Field: string(rr.Field), Reason: "threshold is not a finite number"}
		}
		if allowWeights && rr.Operator != "" {
			if _, ok := rr.Operator.Canonical(); !ok {
				return &scoring.RuleSetError{Index: i, Field: string(rr.Field), Reason: fmt.Sprintf("unknown operator %q", rr.Operator)}
			}
		}
	}
	return nil
}

// merge overlays a reply on the default rule set. Each default rule takes
// the threshold of the first reply rule on the same field. Operators and
// weights are taken only when allowWeights is set; a missing threshold or
// weight keeps the default.
func merge(r *reply, allowWeights bool) (scoring.RuleSet, []scoring.Field, error) {
	if err := checkReply(r, allowWeights); err != nil {
		return nil, nil, err
	}
	byField := make(map[scoring.Field]replyRule, len(r.Rules))
	for _, rr := range r.Rules {
		if _, seen := byField[rr.Field]; !seen {
			byField[rr.Field] = rr
		}
	}

	out := scoring.DefaultRuleSet()
	var adopted []scoring.Field
	for i, def := range out {
		rr, ok := byField[def.Field]
		if !ok || rr.Threshold == nil {
			continue
		}
		out[i].Threshold = *rr.Threshold
		if allowWeights {
			if op, ok := rr.Operator.Canonical(); ok {
				out[i].Operator = op
			}
			if rr.Weight != nil {
				out[i].Weight = *rr.Weight
			}
		}
		adopted = append(adopted, def.Field)
	}
	if err := out.Validate(); err != nil {
		return nil, nil, err
	}
	return out, adopted, nil
}
