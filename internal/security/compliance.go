package security

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Checker inspects generated answers after the fact. Its findings are
// advisory: they annotate the response but never block it.
type Checker struct {
	rules *RuleSet
}

// ComplianceResult reports whether an answer looks grounded and on-policy.
type ComplianceResult struct {
	Compliant bool     `json:"compliant"`
	Issues    []string `json:"issues,omitempty"`
}

// NewChecker builds a checker over the given rule set (nil means defaults).
func NewChecker(rules *RuleSet) *Checker {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &Checker{rules: rules}
}

// Review applies two independent checks: a long answer with no grounding
// chunks and no refusal keyword is suspected of drawing on out-of-store
// knowledge, and any self-referential forbidden phrase is flagged by name.
func (c *Checker) Review(answer string, hasChunks bool) ComplianceResult {
	lowered := strings.ToLower(answer)
	var issues []string

	if !hasChunks && utf8.RuneCountInString(answer) > c.rules.UngroundedLengthLimit {
		refused := false
		for _, kw := range c.rules.RefusalKeywords {
			if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
				refused = true
				break
			}
		}
		if !refused {
			issues = append(issues, "回應可能使用了知識庫以外的資訊")
		}
	}

	for _, phrase := range c.rules.ForbiddenPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			issues = append(issues, fmt.Sprintf("回應包含不當用語: %q", phrase))
		}
	}

	return ComplianceResult{Compliant: len(issues) == 0, Issues: issues}
}
