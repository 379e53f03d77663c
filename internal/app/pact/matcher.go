package pact

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	matchType      = "type"
	matchTypeRegex = "regex"
)

// Matcher replaces exact equality for a part of a body template.
type Matcher interface {
	// Example is the value the mock provider sends in place of the matcher.
	Example() interface{}
	matchingRule() MatchingRule
}

// MatchingRule is a pact specification v2 matching rule.
type MatchingRule struct {
	Match string `json:"match,omitempty"`
	Regex string `json:"regex,omitempty"`
	Min   *int   `json:"min,omitempty"`
}

func (r MatchingRule) isRegex() bool {
	return r.Match == matchTypeRegex || (r.Match == "" && r.Regex != "")
}

func (r MatchingRule) isType() bool {
	return r.Match == matchType || (r.Match == "" && r.Regex == "" && r.Min != nil)
}

// MatchingRules are keyed by JSONPath, e.g. "$.body.version".
type MatchingRules map[string]MatchingRule

func (r MatchingRules) lookup(path string) (MatchingRule, bool) {
	if rule, ok := r[path]; ok {
		return rule, true
	}
	if wildcard := wildcardPath(path); wildcard != path {
		rule, ok := r[wildcard]
		return rule, ok
	}
	return MatchingRule{}, false
}

func (r MatchingRules) lookupHeader(name string) (MatchingRule, bool) {
	for path, rule := range r {
		if strings.EqualFold(path, headerPath(name)) {
			return rule, true
		}
	}
	return MatchingRule{}, false
}

func (r MatchingRules) sortedPaths() []string {
	paths := make([]string, 0, len(r))
	for path := range r {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (r MatchingRules) merge(other MatchingRules) {
	for path, rule := range other {
		r[path] = rule
	}
}

func (r MatchingRules) validate() error {
	for _, path := range r.sortedPaths() {
		rule := r[path]
		if rule.isRegex() {
			if _, err := regexp.Compile(rule.Regex); err != nil {
				return schemaErrorf("invalid regex for %s", path)
			}
		}
		if rule.Min != nil && *rule.Min < 0 {
			return schemaErrorf("negative min for %s", path)
		}
	}
	return nil
}

type term struct {
	pattern string
	example string
}

// Term matches when the regex matches the actual string value.
func Term(pattern, example string) Matcher {
	return term{pattern: pattern, example: example}
}

func (t term) Example() interface{} {
	return t.example
}

func (t term) matchingRule() MatchingRule {
	return MatchingRule{Match: matchTypeRegex, Regex: t.pattern}
}

type like struct {
	example interface{}
}

// Like matches any value with the same structural type as the example, recursively.
func Like(example interface{}) Matcher {
	return like{example: example}
}

func (l like) Example() interface{} {
	return l.example
}

func (l like) matchingRule() MatchingRule {
	return MatchingRule{Match: matchType}
}

type eachLike struct {
	example interface{}
	min     int
}

// EachLike matches an array of at least min elements, each type-like the example.
func EachLike(example interface{}, min int) Matcher {
	if min < 1 {
		min = 1
	}
	return eachLike{example: example, min: min}
}

func (e eachLike) Example() interface{} {
	items := make([]interface{}, e.min)
	for i := range items {
		items[i] = e.example
	}
	return items
}

func (e eachLike) matchingRule() MatchingRule {
	min := e.min
	return MatchingRule{Match: matchType, Min: &min}
}

// CompileBody turns a body template into its example document plus the matching rules it implies.
func CompileBody(template interface{}) (interface{}, MatchingRules, error) {
	rules := MatchingRules{}
	example, err := compile(bodyRoot, template, rules)
	if err != nil {
		return nil, nil, err
	}
	normalized, err := normalize(example)
	if err != nil {
		return nil, nil, err
	}
	return normalized, rules, nil
}

// CompileString resolves a path or header template, registering a regex rule at rulePath for a Term.
func CompileString(rulePath string, template interface{}, rules MatchingRules) (string, error) {
	switch t := template.(type) {
	case string:
		return t, nil
	case term:
		if err := t.validate(rulePath); err != nil {
			return "", err
		}
		rules[rulePath] = t.matchingRule()
		return t.example, nil
	}
	return "", schemaErrorf("%s must be a string or a Term, got %T", rulePath, template)
}

func (t term) validate(path string) error {
	re, err := regexp.Compile(t.pattern)
	if err != nil {
		return schemaErrorf("invalid regex %q at %s", t.pattern, path)
	}
	if !re.MatchString(t.example) {
		return schemaErrorf("example %q does not match regex %q at %s", t.example, t.pattern, path)
	}
	return nil
}

func compile(path string, template interface{}, rules MatchingRules) (interface{}, error) {
	switch t := template.(type) {
	case term:
		if err := t.validate(path); err != nil {
			return nil, err
		}
		rules[path] = t.matchingRule()
		return t.example, nil
	case like:
		rules[path] = t.matchingRule()
		return compile(path, t.example, rules)
	case eachLike:
		rules[path] = t.matchingRule()
		element, err := compile(path+"[*]", t.example, rules)
		if err != nil {
			return nil, err
		}
		return eachLike{example: element, min: t.min}.Example(), nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for key, value := range t {
			compiled, err := compile(childPath(path, key), value, rules)
			if err != nil {
				return nil, err
			}
			out[key] = compiled
		}
		return out, nil
	case map[string]string:
		out := make(map[string]interface{}, len(t))
		for key, value := range t {
			out[key] = value
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, value := range t {
			compiled, err := compile(indexPath(path, i), value, rules)
			if err != nil {
				return nil, err
			}
			out[i] = compiled
		}
		return out, nil
	}
	return template, nil
}

// normalize gives literals the same shape a decoded JSON document has.
func normalize(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode body template")
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unable to normalize body template")
	}
	return out, nil
}
