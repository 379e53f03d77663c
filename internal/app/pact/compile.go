package pact

import (
	"net/url"
	"strings"
)

// CompileRequest builds the request of an interaction from templates. path and header values may be Terms.
func CompileRequest(method string, path interface{}, query url.Values, headers map[string]interface{}, body interface{}) (Request, error) {
	rules := MatchingRules{}
	compiledPath, err := CompileString(pathRoot, path, rules)
	if err != nil {
		return Request{}, err
	}
	compiledHeaders, err := compileHeaders(headers, rules)
	if err != nil {
		return Request{}, err
	}
	example, bodyRules, err := compileOptionalBody(body)
	if err != nil {
		return Request{}, err
	}
	rules.merge(bodyRules)

	request := Request{
		Method:  strings.ToUpper(method),
		Path:    compiledPath,
		Headers: compiledHeaders,
		Body:    example,
	}
	if len(query) > 0 {
		request.Query = query.Encode()
	}
	if len(rules) > 0 {
		request.MatchingRules = rules
	}
	return request, nil
}

// CompileResponse builds the response of an interaction from templates. header values may be Terms.
func CompileResponse(status int, headers map[string]interface{}, body interface{}) (Response, error) {
	rules := MatchingRules{}
	compiledHeaders, err := compileHeaders(headers, rules)
	if err != nil {
		return Response{}, err
	}
	example, bodyRules, err := compileOptionalBody(body)
	if err != nil {
		return Response{}, err
	}
	rules.merge(bodyRules)

	response := Response{
		Status:  status,
		Headers: compiledHeaders,
		Body:    example,
	}
	if len(rules) > 0 {
		response.MatchingRules = rules
	}
	return response, nil
}

func compileHeaders(headers map[string]interface{}, rules MatchingRules) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	compiled := make(map[string]string, len(headers))
	for name, value := range headers {
		example, err := CompileString(headerPath(name), value, rules)
		if err != nil {
			return nil, err
		}
		compiled[name] = example
	}
	return compiled, nil
}

func compileOptionalBody(body interface{}) (interface{}, MatchingRules, error) {
	if body == nil {
		return nil, nil, nil
	}
	return CompileBody(body)
}
