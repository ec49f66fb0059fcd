package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var errNoRules = errors.New("missing rules list")

// ruleSetDocument is the object form of a rule set file.
type ruleSetDocument struct {
	Rules RuleSet `json:"rules" yaml:"rules"`
}

// ParseRuleSet decodes a rule set from JSON or YAML. Either a bare list of
// rules or an object with a "rules" list is accepted. Operator aliases such
// as ">=" are canonicalized. The result is validated.
func ParseRuleSet(data []byte) (RuleSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &RuleSetError{Index: -1, Reason: "empty document"}
	}

	var rs RuleSet
	var err error
	switch trimmed[0] {
	case '[':
		err = json.Unmarshal(trimmed, &rs)
	case '{':
		var doc ruleSetDocument
		if err = json.Unmarshal(trimmed, &doc); err == nil && doc.Rules == nil {
			err = errNoRules
		}
		rs = doc.Rules
	default:
		rs, err = parseYAML(trimmed)
	}
	if err != nil {
		return nil, &RuleSetError{Index: -1, Reason: fmt.Sprintf("decode: %v", err)}
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs.Canonical(), nil
}

func parseYAML(data []byte) (RuleSet, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var rs RuleSet
	if node.Content[0].Kind == yaml.SequenceNode {
		err := node.Decode(&rs)
		return rs, err
	}
	var doc ruleSetDocument
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Rules == nil {
		return nil, errNoRules
	}
	return doc.Rules, nil
}

// MarshalYAML renders a rule set as a YAML document with a "rules" key.
func MarshalYAML(rs RuleSet) ([]byte, error) {
	return yaml.Marshal(ruleSetDocument{Rules: rs})
}
