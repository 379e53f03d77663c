package mockserver

import (
	"regexp"
	"sync"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
)

type pathMatcher interface {
	match(val string) bool
}

type stringPathMatcher struct {
	val string
}

func (m *stringPathMatcher) match(val string) bool {
	return val == m.val
}

type regexPathMatcher struct {
	val *regexp.Regexp
}

func (m *regexPathMatcher) match(val string) bool {
	return m.val.MatchString(val)
}

// interaction is a registered expectation together with the requests it has received.
type interaction struct {
	mu           sync.RWMutex
	pathMatcher  pathMatcher
	definition   pact.Interaction
	RequestCount int
	LastRequest  pact.ActualRequest
}

func newInteraction(definition pact.Interaction) (*interaction, error) {
	var matcher pathMatcher = &stringPathMatcher{val: definition.Request.Path}
	if rule, ok := definition.Request.MatchingRules["$.path"]; ok && rule.Regex != "" {
		regex, err := regexp.Compile(rule.Regex)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to compile path regex for '%s'", definition.Description)
		}
		matcher = &regexPathMatcher{val: regex}
	}
	return &interaction{
		pathMatcher: matcher,
		definition:  definition,
	}, nil
}

func (i *interaction) Match(path, method string) bool {
	return method == i.definition.Request.Method && i.pathMatcher.match(path)
}

func (i *interaction) Description() string {
	return i.definition.Description
}

func (i *interaction) StoreRequest(request pact.ActualRequest) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.RequestCount++
	i.LastRequest = request
}

func (i *interaction) requestCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.RequestCount
}

func (i *interaction) HasRequests(count int) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.RequestCount >= count
}
