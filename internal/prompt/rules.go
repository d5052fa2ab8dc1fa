package prompt

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/frahmantamala/medichat/internal/policy"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yml
var defaultPatterns []byte

// intentPrecedence is the order intents are tested in; the first match wins.
var intentPrecedence = []Classification{ClassificationUpdate, ClassificationDelete, ClassificationCreate}

type rulesFile struct {
	Intents map[Classification][]string `yaml:"intents"`
	Banned  struct {
		Common []string                 `yaml:"common"`
		Roles  map[policy.Role][]string `yaml:"roles"`
	} `yaml:"banned"`
}

// Rules are the compiled intent and banned-phrasing patterns.
type Rules struct {
	intents      map[Classification][]*regexp.Regexp
	bannedCommon []*regexp.Regexp
	bannedByRole map[policy.Role][]*regexp.Regexp
}

// DefaultRules compiles the rule file shipped with the binary.
func DefaultRules() (*Rules, error) {
	return LoadRules(defaultPatterns)
}

// LoadRules parses and compiles a YAML rule file.
func LoadRules(data []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt rules: %w", err)
	}

	rules := &Rules{
		intents:      make(map[Classification][]*regexp.Regexp),
		bannedByRole: make(map[policy.Role][]*regexp.Regexp),
	}

	for class, patterns := range file.Intents {
		if !class.isIntent() {
			return nil, fmt.Errorf("unknown intent %q in prompt rules", class)
		}
		compiled, err := compileAll(patterns)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", class, err)
		}
		rules.intents[class] = compiled
	}

	common, err := compileAll(file.Banned.Common)
	if err != nil {
		return nil, fmt.Errorf("common banned patterns: %w", err)
	}
	rules.bannedCommon = common

	for role, patterns := range file.Banned.Roles {
		compiled, err := compileAll(patterns)
		if err != nil {
			return nil, fmt.Errorf("banned patterns for %s: %w", role, err)
		}
		rules.bannedByRole[role] = compiled
	}

	return rules, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Intent returns the first intent whose patterns match text, or view.
func (r *Rules) Intent(text string) Classification {
	for _, class := range intentPrecedence {
		for _, re := range r.intents[class] {
			if re.MatchString(text) {
				return class
			}
		}
	}
	return ClassificationView
}

// Banned reports whether text matches a prohibited pattern for the given role.
func (r *Rules) Banned(text string, role policy.Role) bool {
	for _, re := range r.bannedCommon {
		if re.MatchString(text) {
			return true
		}
	}
	for _, re := range r.bannedByRole[role] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
