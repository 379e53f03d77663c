package mockserver

import (
	"net/url"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
)

// Headers maps header names to literal values or Terms.
type Headers map[string]interface{}

type requestTemplate struct {
	method  string
	path    interface{}
	query   url.Values
	headers Headers
	body    interface{}
}

type RequestOption func(*requestTemplate)

func WithQuery(query url.Values) RequestOption {
	return func(r *requestTemplate) {
		r.query = query
	}
}

func WithHeaders(headers Headers) RequestOption {
	return func(r *requestTemplate) {
		r.headers = headers
	}
}

func WithBody(body interface{}) RequestOption {
	return func(r *requestTemplate) {
		r.body = body
	}
}

// InteractionBuilder accumulates one interaction. Each call mutates the builder.
type InteractionBuilder struct {
	server        *MockServer
	providerState string
	description   string
	request       *requestTemplate
	status        int
	headers       Headers
	body          interface{}
}

func (b *InteractionBuilder) Given(providerState string) *InteractionBuilder {
	b.providerState = providerState
	return b
}

func (b *InteractionBuilder) UponReceiving(description string) *InteractionBuilder {
	b.description = description
	return b
}

// WithRequest sets the expected request. path is a literal string or a Term.
func (b *InteractionBuilder) WithRequest(method string, path interface{}, options ...RequestOption) *InteractionBuilder {
	request := &requestTemplate{method: method, path: path}
	for _, option := range options {
		option(request)
	}
	b.request = request
	return b
}

func (b *InteractionBuilder) WillRespondWith(status int, headers Headers, body interface{}) *InteractionBuilder {
	b.status = status
	b.headers = headers
	b.body = body
	return b
}

// Register compiles the interaction and adds it to the mock server. Registering twice duplicates it.
func (b *InteractionBuilder) Register() error {
	definition, err := b.build()
	if err != nil {
		return err
	}
	return b.server.register(definition)
}

func (b *InteractionBuilder) build() (pact.Interaction, error) {
	if b.request == nil {
		return pact.Interaction{}, errors.Wrapf(pact.ErrSchemaValidation, "interaction '%s' has no request", b.description)
	}
	if b.status == 0 {
		return pact.Interaction{}, errors.Wrapf(pact.ErrSchemaValidation, "interaction '%s' has no response", b.description)
	}

	request, err := pact.CompileRequest(b.request.method, b.request.path, b.request.query, b.request.headers, b.request.body)
	if err != nil {
		return pact.Interaction{}, errors.Wrapf(err, "unable to compile request of '%s'", b.description)
	}
	response, err := pact.CompileResponse(b.status, b.headers, b.body)
	if err != nil {
		return pact.Interaction{}, errors.Wrapf(err, "unable to compile response of '%s'", b.description)
	}

	definition := pact.Interaction{
		Description:   b.description,
		ProviderState: b.providerState,
		Request:       request,
		Response:      response,
	}
	if err := pact.ValidateInteraction(definition); err != nil {
		return pact.Interaction{}, err
	}
	return definition, nil
}
