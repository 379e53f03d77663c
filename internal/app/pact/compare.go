package pact

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

const (
	MismatchMethod = "method"
	MismatchPath   = "path"
	MismatchQuery  = "query"
	MismatchStatus = "status"
	MismatchHeader = "header"
	MismatchBody   = "body"
)

// Mismatch is a field level difference between a contract and an actual message.
type Mismatch struct {
	Kind     string      `json:"kind"`
	Path     string      `json:"path,omitempty"`
	Expected interface{} `json:"expected,omitempty"`
	Actual   interface{} `json:"actual,omitempty"`
	Message  string      `json:"message"`
}

func (m Mismatch) String() string {
	if m.Path == "" {
		return fmt.Sprintf("%s: %s", m.Kind, m.Message)
	}
	return fmt.Sprintf("%s %s: %s", m.Kind, m.Path, m.Message)
}

// ActualRequest is a request received by the mock provider.
type ActualRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

// ActualResponse is a response returned by the live provider.
type ActualResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// MatchRequest compares a received request with the request an interaction expects.
// Unexpected keys in the request body are mismatches.
func MatchRequest(expected Request, actual ActualRequest) []Mismatch {
	var mismatches []Mismatch
	if !strings.EqualFold(expected.Method, actual.Method) {
		mismatches = append(mismatches, Mismatch{
			Kind:     MismatchMethod,
			Expected: strings.ToUpper(expected.Method),
			Actual:   actual.Method,
			Message:  fmt.Sprintf("expected method %s but was %s", strings.ToUpper(expected.Method), actual.Method),
		})
	}
	if !matchPath(expected, actual.Path) {
		mismatches = append(mismatches, Mismatch{
			Kind:     MismatchPath,
			Path:     pathRoot,
			Expected: expected.Path,
			Actual:   actual.Path,
			Message:  fmt.Sprintf("expected path %s but was %s", expected.Path, actual.Path),
		})
	}
	mismatches = append(mismatches, matchQuery(expected.QueryValues(), actual.Query, expected.MatchingRules)...)
	mismatches = append(mismatches, MatchHeaders(expected.Headers, actual.Headers, expected.MatchingRules)...)
	mismatches = append(mismatches, matchBodyBytes(expected.Body, actual.Body, actual.Headers, expected.MatchingRules, false)...)
	return mismatches
}

// MatchResponse compares a provider response with the response an interaction expects.
// Extra keys in the response body are allowed.
func MatchResponse(expected Response, actual ActualResponse) []Mismatch {
	var mismatches []Mismatch
	if expected.Status != actual.Status {
		mismatches = append(mismatches, Mismatch{
			Kind:     MismatchStatus,
			Expected: expected.Status,
			Actual:   actual.Status,
			Message:  fmt.Sprintf("expected status %d but was %d", expected.Status, actual.Status),
		})
	}
	mismatches = append(mismatches, MatchHeaders(expected.Headers, actual.Headers, expected.MatchingRules)...)
	mismatches = append(mismatches, matchBodyBytes(expected.Body, actual.Body, actual.Headers, expected.MatchingRules, true)...)
	return mismatches
}

func matchPath(expected Request, actual string) bool {
	if rule, ok := expected.MatchingRules[pathRoot]; ok && rule.isRegex() {
		re, err := regexp.Compile(rule.Regex)
		return err == nil && re.MatchString(actual)
	}
	return expected.Path == actual
}

func matchQuery(expected, actual url.Values, rules MatchingRules) []Mismatch {
	var mismatches []Mismatch
	for _, key := range sortedKeys(expected) {
		values, ok := actual[key]
		if !ok {
			mismatches = append(mismatches, Mismatch{
				Kind:     MismatchQuery,
				Path:     childPath(queryRoot, key),
				Expected: expected[key],
				Message:  fmt.Sprintf("expected query parameter %s", key),
			})
			continue
		}
		if rule, ok := rules.lookup(childPath(queryRoot, key)); ok && rule.isRegex() {
			for _, value := range values {
				if m, failed := matchRegex(childPath(queryRoot, key), MismatchQuery, rule.Regex, value); failed {
					mismatches = append(mismatches, m)
				}
			}
			continue
		}
		if !reflect.DeepEqual(expected[key], values) {
			mismatches = append(mismatches, Mismatch{
				Kind:     MismatchQuery,
				Path:     childPath(queryRoot, key),
				Expected: expected[key],
				Actual:   values,
				Message:  fmt.Sprintf("expected query parameter %s=%v but was %v", key, expected[key], values),
			})
		}
	}
	for _, key := range sortedKeys(actual) {
		if _, ok := expected[key]; !ok {
			mismatches = append(mismatches, Mismatch{
				Kind:    MismatchQuery,
				Path:    childPath(queryRoot, key),
				Actual:  actual[key],
				Message: fmt.Sprintf("unexpected query parameter %s", key),
			})
		}
	}
	return mismatches
}

// MatchHeaders checks every expected header, Content-Type is compared by media type and parameters.
func MatchHeaders(expected map[string]string, actual http.Header, rules MatchingRules) []Mismatch {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []Mismatch
	for _, name := range names {
		want := expected[name]
		values := actual.Values(name)
		if len(values) == 0 {
			mismatches = append(mismatches, Mismatch{
				Kind:     MismatchHeader,
				Path:     headerPath(name),
				Expected: want,
				Message:  fmt.Sprintf("expected header %s", name),
			})
			continue
		}
		got := strings.Join(values, ", ")

		if rule, ok := rules.lookupHeader(name); ok && rule.isRegex() {
			if m, failed := matchRegex(headerPath(name), MismatchHeader, rule.Regex, got); failed {
				mismatches = append(mismatches, m)
			}
			continue
		}

		var equal bool
		if strings.EqualFold(name, "Content-Type") {
			equal = contentTypeMatches(want, got)
		} else {
			equal = normalizeHeaderValue(want) == normalizeHeaderValue(got)
		}
		if !equal {
			mismatches = append(mismatches, Mismatch{
				Kind:     MismatchHeader,
				Path:     headerPath(name),
				Expected: want,
				Actual:   got,
				Message:  fmt.Sprintf("expected header %s '%s' but was '%s'", name, want, got),
			})
		}
	}
	return mismatches
}

func contentTypeMatches(expected, actual string) bool {
	expectedType, expectedParams, err := mime.ParseMediaType(expected)
	if err != nil {
		return normalizeHeaderValue(expected) == normalizeHeaderValue(actual)
	}
	actualType, actualParams, err := mime.ParseMediaType(actual)
	if err != nil || expectedType != actualType {
		return false
	}
	for key, value := range expectedParams {
		if !strings.EqualFold(actualParams[key], value) {
			return false
		}
	}
	return true
}

func normalizeHeaderValue(value string) string {
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return strings.Join(parts, ",")
}

func matchBodyBytes(expected interface{}, data []byte, header http.Header, rules MatchingRules, allowUnexpectedKeys bool) []Mismatch {
	if expected == nil {
		return nil
	}
	actual, err := DecodeBody(data, header)
	if err != nil {
		return []Mismatch{{
			Kind:     MismatchBody,
			Path:     bodyRoot,
			Expected: expected,
			Actual:   string(data),
			Message:  err.Error(),
		}}
	}
	return MatchBody(expected, actual, rules, allowUnexpectedKeys)
}

// MatchBody applies the matching rules to an actual body document.
// Regex rules are resolved with JSONPath, everything else by walking the expected example.
func MatchBody(expected, actual interface{}, rules MatchingRules, allowUnexpectedKeys bool) []Mismatch {
	m := &bodyMatcher{rules: rules, allowUnexpectedKeys: allowUnexpectedKeys}
	m.match(bodyRoot, expected, actual, false)
	m.matchRegexRules(map[string]interface{}{"body": actual})
	return m.mismatches
}

type bodyMatcher struct {
	rules               MatchingRules
	allowUnexpectedKeys bool
	mismatches          []Mismatch
}

func (m *bodyMatcher) add(path, message string, expected, actual interface{}) {
	m.mismatches = append(m.mismatches, Mismatch{
		Kind:     MismatchBody,
		Path:     path,
		Expected: expected,
		Actual:   actual,
		Message:  message,
	})
}

func (m *bodyMatcher) match(path string, expected, actual interface{}, typed bool) {
	rule, hasRule := m.rules.lookup(path)
	if hasRule && rule.isRegex() {
		return
	}
	if hasRule && rule.isType() {
		typed = true
	}

	switch e := expected.(type) {
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok {
			m.add(path, fmt.Sprintf("expected %s but was %s", kindOf(expected), kindOf(actual)), expected, actual)
			return
		}
		for _, key := range sortedMapKeys(e) {
			value, present := a[key]
			if !present {
				m.add(childPath(path, key), fmt.Sprintf("expected key '%s'", key), e[key], nil)
				continue
			}
			m.match(childPath(path, key), e[key], value, typed)
		}
		if !m.allowUnexpectedKeys {
			for _, key := range sortedMapKeys(a) {
				if _, ok := e[key]; !ok {
					m.add(childPath(path, key), fmt.Sprintf("unexpected key '%s'", key), nil, a[key])
				}
			}
		}
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok {
			m.add(path, fmt.Sprintf("expected %s but was %s", kindOf(expected), kindOf(actual)), expected, actual)
			return
		}
		if hasRule && rule.Min != nil {
			if len(a) < *rule.Min {
				m.add(path, fmt.Sprintf("expected at least %d elements but was %d", *rule.Min, len(a)), *rule.Min, len(a))
			}
			if len(e) == 0 {
				return
			}
			for i, value := range a {
				m.match(indexPath(path, i), e[0], value, true)
			}
			return
		}
		if len(e) != len(a) {
			m.add(path, fmt.Sprintf("expected %d elements but was %d", len(e), len(a)), len(e), len(a))
			return
		}
		for i := range e {
			m.match(indexPath(path, i), e[i], a[i], typed)
		}
	default:
		if typed {
			if kindOf(expected) != kindOf(actual) {
				m.add(path, fmt.Sprintf("expected %s but was %s", kindOf(expected), kindOf(actual)), expected, actual)
			}
			return
		}
		if !reflect.DeepEqual(expected, actual) {
			m.add(path, fmt.Sprintf("expected %v but was %v", expected, actual), expected, actual)
		}
	}
}

// matchRegexRules leaves missing values to the structural walk.
func (m *bodyMatcher) matchRegexRules(document map[string]interface{}) {
	for _, path := range m.rules.sortedPaths() {
		rule := m.rules[path]
		if !rule.isRegex() || !strings.HasPrefix(path, bodyRoot) {
			continue
		}
		value, err := jsonpath.Get(path, document)
		if err != nil {
			continue
		}
		values := []interface{}{value}
		if strings.Contains(path, "[*]") {
			matched, ok := value.([]interface{})
			if !ok {
				continue
			}
			values = matched
		}
		for _, v := range values {
			if mismatch, failed := matchRegex(path, MismatchBody, rule.Regex, v); failed {
				m.mismatches = append(m.mismatches, mismatch)
			}
		}
	}
}

func matchRegex(path, kind, pattern string, value interface{}) (Mismatch, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Mismatch{Kind: kind, Path: path, Expected: pattern, Message: fmt.Sprintf("invalid regex %q", pattern)}, true
	}
	text, ok := value.(string)
	if !ok {
		return Mismatch{
			Kind:     kind,
			Path:     path,
			Expected: pattern,
			Actual:   value,
			Message:  fmt.Sprintf("expected a value matching %q but was %s", pattern, kindOf(value)),
		}, true
	}
	if !re.MatchString(text) {
		return Mismatch{
			Kind:     kind,
			Path:     path,
			Expected: pattern,
			Actual:   text,
			Message:  fmt.Sprintf("'%s' does not match %q", text, pattern),
		}, true
	}
	return Mismatch{}, false
}

func kindOf(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
