// Package classify assigns spending categories to transactions.
//
// The first pass is a static table of keyword rules evaluated in a defined
// priority order, so tie-breaks are deterministic. An optional second pass
// submits still-ambiguous transactions to an external model; its absence or
// failure never affects the import path.
package classify

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// FallbackCategory is assigned when no keyword rule matches.
const FallbackCategory = "Others"

// Rule maps a set of keywords to a category. Lower priority wins when
// multiple rules match.
type Rule struct {
	Category string   `yaml:"category"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

// RuleTable is an ordered list of keyword rules.
type RuleTable struct {
	rules []Rule
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules loads the embedded rule table.
func DefaultRules() *RuleTable {
	table, err := ParseRules(rulesYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here
		// is a build defect.
		panic(fmt.Sprintf("classify: embedded rules invalid: %v", err))
	}
	return table
}

// ParseRules decodes a YAML rule table and sorts it by ascending priority.
func ParseRules(data []byte) (*RuleTable, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("decode rules: no rules defined")
	}
	for i, rule := range file.Rules {
		if rule.Category == "" {
			return nil, fmt.Errorf("decode rules: rule %d has no category", i)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("decode rules: rule %q has no keywords", rule.Category)
		}
	}
	rules := make([]Rule, len(file.Rules))
	copy(rules, file.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return &RuleTable{rules: rules}, nil
}

// Classify returns the category of the first rule whose keyword appears in
// the description or merchant (case-insensitive), or FallbackCategory.
func (t *RuleTable) Classify(description, merchant string) string {
	desc := strings.ToLower(description)
	merch := strings.ToLower(merchant)

	for _, rule := range t.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(desc, keyword) || strings.Contains(merch, keyword) {
				return rule.Category
			}
		}
	}
	return FallbackCategory
}

// Len reports the number of rules in the table.
func (t *RuleTable) Len() int {
	return len(t.rules)
}
