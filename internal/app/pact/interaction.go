package pact

import (
	"net/http"
	"net/url"
	"strings"
)

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

type Request struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Query         string            `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          interface{}       `json:"body,omitempty"`
	MatchingRules MatchingRules     `json:"matchingRules,omitempty"`
}

// QueryValues parses the v2 query string of the request.
func (r Request) QueryValues() url.Values {
	values, err := url.ParseQuery(r.Query)
	if err != nil {
		return url.Values{}
	}
	return values
}

// URL resolves the request against a provider base URL.
func (r Request) URL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/") + r.Path
	if r.Query != "" {
		u += "?" + r.Query
	}
	return u
}

type Response struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          interface{}       `json:"body,omitempty"`
	MatchingRules MatchingRules     `json:"matchingRules,omitempty"`
}

type Interaction struct {
	Description   string   `json:"description"`
	ProviderState string   `json:"providerState,omitempty"`
	Request       Request  `json:"request"`
	Response      Response `json:"response"`
}

// ID identifies the interaction inside its contract.
func (i Interaction) ID() string {
	return i.ProviderState + "/" + i.Description
}

func (i Interaction) validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return schemaErrorf("interaction has no description")
	}
	if !validMethods[strings.ToUpper(i.Request.Method)] {
		return schemaErrorf("interaction '%s' has invalid method %q", i.Description, i.Request.Method)
	}
	if !strings.HasPrefix(i.Request.Path, "/") {
		return schemaErrorf("interaction '%s' has invalid path %q", i.Description, i.Request.Path)
	}
	if _, err := url.ParseQuery(i.Request.Query); err != nil {
		return schemaErrorf("interaction '%s' has invalid query %q", i.Description, i.Request.Query)
	}
	if i.Response.Status < 100 || i.Response.Status > 599 {
		return schemaErrorf("interaction '%s' has invalid status %d", i.Description, i.Response.Status)
	}
	if err := i.Request.MatchingRules.validate(); err != nil {
		return err
	}
	return i.Response.MatchingRules.validate()
}

// ValidateInteraction reports a schema error for an interaction that cannot be part of a contract.
func ValidateInteraction(i Interaction) error {
	return i.validate()
}
