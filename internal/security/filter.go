package security

import (
	"fmt"
	"strings"
)

// Filter screens incoming queries against the rule table before any provider
// call is made.
type Filter struct {
	rules *RuleSet
}

// FilterResult is the outcome of a single query check.
type FilterResult struct {
	Safe bool `json:"safe"`
	// Categories lists the triggered category names. Order follows the rule
	// table; each category appears at most once.
	Categories []string `json:"categories,omitempty"`
	Warning    string   `json:"warning,omitempty"`
}

// NewFilter builds a filter over the given rule set (nil means defaults).
func NewFilter(rules *RuleSet) *Filter {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &Filter{rules: rules}
}

// Check scans the query for suspicious substrings. A single hit in any
// category rejects the whole query; an empty or whitespace query passes.
// False positives are accepted: this is a high-recall, low-precision gate.
func (f *Filter) Check(query string) FilterResult {
	lowered := strings.ToLower(query)
	if strings.TrimSpace(lowered) == "" {
		return FilterResult{Safe: true}
	}

	var triggered []string
	for _, cat := range f.rules.Categories {
		for _, pattern := range cat.Patterns {
			if pattern == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(pattern)) {
				triggered = append(triggered, cat.Name)
				break
			}
		}
	}

	if len(triggered) == 0 {
		return FilterResult{Safe: true}
	}
	return FilterResult{
		Safe:       false,
		Categories: triggered,
		Warning:    fmt.Sprintf("偵測到可疑的查詢模式: %s", strings.Join(triggered, ", ")),
	}
}

// RefusalMessage is the fixed text returned in place of a model answer when
// the filter rejects a query.
func (f *Filter) RefusalMessage() string {
	return f.rules.RefusalMessage
}
