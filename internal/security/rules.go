package security

import (
	"encoding/json"
	"fmt"
	"os"
)

// Category is one named group of literal substrings representing a class of
// prompt-injection attempt. Patterns are bilingual; matching is
// case-insensitive containment.
type Category struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
}

// RuleSet bundles the filter categories with the compliance-checker tuning
// so the whole table can be versioned as configuration data instead of code.
type RuleSet struct {
	Categories       []Category `json:"categories"`
	ForbiddenPhrases []string   `json:"forbidden_phrases"`
	RefusalKeywords  []string   `json:"refusal_keywords"`
	// UngroundedLengthLimit is the rune count above which an answer with no
	// grounding chunks is flagged. Tuned by trial, not a hard contract.
	UngroundedLengthLimit int    `json:"ungrounded_length_limit"`
	RefusalMessage        string `json:"refusal_message"`
}

// DefaultRuleSet returns the built-in rule table.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Categories: []Category{
			{
				Name: "jailbreak",
				Patterns: []string{
					"ignore previous instructions",
					"ignore the previous instructions",
					"ignore above instructions",
					"ignore all instructions",
					"forget your instructions",
					"disregard your instructions",
					"忽略之前的指令",
					"忽略上述指令",
					"忽略以上指令",
					"忘記你的指令",
					"無視之前的指示",
				},
			},
			{
				Name: "roleplay",
				Patterns: []string{
					"pretend you are",
					"pretend to be",
					"act as if you",
					"roleplay as",
					"you are now a",
					"假裝你是",
					"扮演一個",
					"角色扮演",
					"現在你是",
				},
			},
			{
				Name: "rule_override",
				Patterns: []string{
					"change your rules",
					"override your rules",
					"your new rules",
					"update your instructions",
					"rewrite your rules",
					"修改你的規則",
					"更改你的規則",
					"新的規則是",
					"改寫你的指令",
				},
			},
			{
				Name: "dan_mode",
				Patterns: []string{
					"dan mode",
					"do anything now",
					"developer mode",
					"jailbroken mode",
					"開發者模式",
					"開發人員模式",
					"百無禁忌模式",
				},
			},
			{
				Name: "bypass",
				Patterns: []string{
					"bypass your restrictions",
					"bypass the filter",
					"without any restrictions",
					"without limitations",
					"no restrictions apply",
					"繞過限制",
					"繞過你的限制",
					"突破限制",
					"不受限制地",
				},
			},
			{
				Name: "urgency",
				Patterns: []string{
					"this is an emergency",
					"matter of life and death",
					"you must answer immediately",
					"i will be fired if",
					"這是緊急情況",
					"人命關天",
					"你必須立刻回答",
					"救救我",
				},
			},
			{
				Name: "authority",
				Patterns: []string{
					"i am your developer",
					"i am your creator",
					"i am the administrator",
					"i have special authorization",
					"my boss ordered",
					"我是你的開發者",
					"我是管理員",
					"我是你的創造者",
					"我有特殊授權",
				},
			},
			{
				Name: "hypothetical",
				Patterns: []string{
					"hypothetically",
					"hypothetical",
					"just a thought experiment",
					"for testing purposes",
					"purely fictional scenario",
					"假設",
					"假想情境",
					"僅供測試",
					"純屬虛構的情境",
				},
			},
		},
		ForbiddenPhrases: []string{
			"as an ai",
			"as a language model",
			"based on my knowledge",
			"based on my training",
			"i think",
			"i believe",
			"i recommend",
			"in my opinion",
			"根據我的知識",
			"根據我的訓練",
			"作為一個ai",
			"身為ai",
			"我認為",
			"我覺得",
			"我建議",
		},
		RefusalKeywords: []string{
			"cannot find",
			"could not find",
			"no relevant information",
			"not in the knowledge base",
			"無法找到",
			"找不到",
			"沒有相關資料",
			"知識庫中沒有",
			"查無相關",
		},
		UngroundedLengthLimit: 100,
		RefusalMessage: "抱歉,您的查詢包含不被允許的內容,系統無法處理。" +
			"請重新輸入與法規相關的問題。",
	}
}

// LoadRuleSet reads a rule table from a JSON file. Fields left empty in the
// file fall back to the built-in defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set %s: %w", path, err)
	}
	rules := DefaultRuleSet()
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}
	if len(rules.Categories) == 0 {
		return nil, fmt.Errorf("rule set %s defines no categories", path)
	}
	if rules.UngroundedLengthLimit <= 0 {
		rules.UngroundedLengthLimit = DefaultRuleSet().UngroundedLengthLimit
	}
	if rules.RefusalMessage == "" {
		rules.RefusalMessage = DefaultRuleSet().RefusalMessage
	}
	return rules, nil
}
