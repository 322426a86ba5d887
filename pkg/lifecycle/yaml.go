package lifecycle

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ParseRules decodes a declarative transition-table document. The format
// nests kind, from-state and action, which makes duplicate (from, action)
// pairs unrepresentable within one document:
//
//	article:
//	  draft:
//	    submit-for-review: moderation
//	  moderation:
//	    publish: published
//	    revert-to-draft: draft
//
// Rules are returned in a stable order sorted by kind, from-state and
// action. Duplicate mapping keys are rejected by the YAML decoder.
func ParseRules(data []byte) ([]Rule, error) {
	doc := map[string]map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse transition rules: %w", err)
	}

	var rules []Rule
	for kind, states := range doc {
		for from, actions := range states {
			for action, to := range actions {
				if kind == "" || from == "" || action == "" || to == "" {
					return nil, ErrInvalidRule
				}
				rules = append(rules, Rule{
					Kind:   Kind(kind),
					From:   State(from),
					Action: Action(action),
					To:     State(to),
				})
			}
		}
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Kind != rules[j].Kind {
			return rules[i].Kind < rules[j].Kind
		}
		if rules[i].From != rules[j].From {
			return rules[i].From < rules[j].From
		}
		return rules[i].Action < rules[j].Action
	})
	return rules, nil
}
