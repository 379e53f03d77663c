package pact

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versionInteraction(t *testing.T) Interaction {
	body, rules, err := CompileBody(versionTemplate())
	require.NoError(t, err)

	return Interaction{
		Description:   "a request for version information",
		ProviderState: "sync-service is running",
		Request:       Request{Method: http.MethodGet, Path: "/version"},
		Response: Response{
			Status:        http.StatusOK,
			Headers:       map[string]string{"Content-Type": "application/json"},
			Body:          body,
			MatchingRules: rules,
		},
	}
}

func TestCompileBody_Rules(t *testing.T) {
	body, rules, err := CompileBody(versionTemplate())
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"service":   "sync-service",
		"version":   "1.0.0",
		"build":     "20240101-abc123",
		"timestamp": "2025-07-24T15:43:24.204757Z",
	}, body)
	assert.Equal(t, MatchingRule{Match: "type"}, rules["$.body"])
	assert.Equal(t, MatchingRule{Match: "regex", Regex: `^\d{8}-[a-f0-9]+$`}, rules["$.body.build"])
	assert.Len(t, rules, 5)
}

func TestMatchingRules_LoadedRegexRuleApplies(t *testing.T) {
	c, err := Load([]byte(`{
		"consumer": {"name": "transaciton-sync-consumer"},
		"provider": {"name": "sync-provider"},
		"interactions": [{
			"description": "a request for version information",
			"request": {"method": "GET", "path": "/version"},
			"response": {
				"status": 200,
				"body": {"build": "20240101-abc123"},
				"matchingRules": {"$.body.build": {"match": "regex", "regex": "^\\d{8}-[a-f0-9]+$"}}
			}
		}],
		"metadata": {"pactSpecification": {"version": "2.0.0"}}
	}`))
	require.NoError(t, err)

	response := c.Interactions[0].Response
	rule := response.MatchingRules["$.body.build"]
	assert.True(t, rule.isRegex())
	assert.False(t, rule.isType())

	doc, err := DecodeBody([]byte(`{"build":"20991231-ff00"}`), jsonHeader())
	require.NoError(t, err)
	assert.Empty(t, MatchBody(response.Body, doc, response.MatchingRules, true))

	doc, err = DecodeBody([]byte(`{"build":"latest"}`), jsonHeader())
	require.NoError(t, err)
	mismatches := MatchBody(response.Body, doc, response.MatchingRules, true)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "$.body.build", mismatches[0].Path)
}

func TestCompileBody_InvalidTerm(t *testing.T) {
	_, _, err := CompileBody(map[string]interface{}{
		"version": Term(`^\d+$`, "one"),
	})
	assert.True(t, errors.Is(err, ErrSchemaValidation))

	_, _, err = CompileBody(Term(`(`, "x"))
	assert.True(t, errors.Is(err, ErrSchemaValidation))
}

func TestCompileBody_QuotedKeys(t *testing.T) {
	_, rules, err := CompileBody(map[string]interface{}{
		"build-id": Term(`^\d+$`, "1"),
	})
	require.NoError(t, err)
	assert.Contains(t, rules, `$.body["build-id"]`)
}

func TestContract_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Contract)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *Contract) {},
		},
		{
			name:    "no consumer",
			mutate:  func(c *Contract) { c.Consumer.Name = "" },
			wantErr: true,
		},
		{
			name:    "no interactions",
			mutate:  func(c *Contract) { c.Interactions = nil },
			wantErr: true,
		},
		{
			name:    "invalid method",
			mutate:  func(c *Contract) { c.Interactions[0].Request.Method = "FETCH" },
			wantErr: true,
		},
		{
			name:    "relative path",
			mutate:  func(c *Contract) { c.Interactions[0].Request.Path = "version" },
			wantErr: true,
		},
		{
			name:    "invalid status",
			mutate:  func(c *Contract) { c.Interactions[0].Response.Status = 42 },
			wantErr: true,
		},
		{
			name: "invalid regex rule",
			mutate: func(c *Contract) {
				c.Interactions[0].Response.MatchingRules["$.body.build"] = MatchingRule{Match: "regex", Regex: "("}
			},
			wantErr: true,
		},
		{
			name: "identical duplicate",
			mutate: func(c *Contract) {
				c.AddInteraction(c.Interactions[0])
			},
		},
		{
			name: "conflicting duplicate",
			mutate: func(c *Contract) {
				other := c.Interactions[0]
				other.Response.Status = http.StatusAccepted
				c.AddInteraction(other)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("transaciton-sync-consumer", "sync-provider")
			c.AddInteraction(versionInteraction(t))
			tt.mutate(c)

			err := c.Validate()
			require.Equalf(t, tt.wantErr, err != nil, "error %v", err)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrSchemaValidation))
			}
		})
	}
}

func TestContract_IDIgnoresPublicationMetadata(t *testing.T) {
	c := New("transaciton-sync-consumer", "sync-provider")
	c.AddInteraction(versionInteraction(t))

	id, err := c.ID()
	require.NoError(t, err)

	c.ConsumerVersion = "abc1234"
	c.ConsumerBranch = "main"
	sameID, err := c.ID()
	require.NoError(t, err)
	assert.Equal(t, id, sameID)

	c.Interactions[0].Description = "another description"
	otherID, err := c.ID()
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID)
}

func TestContract_WriteAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	c := New("Transaciton Sync Consumer", "sync-provider")
	c.AddInteraction(versionInteraction(t))

	path, err := c.WriteFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "transaciton_sync_consumer-sync-provider.json"), path)

	loaded, err := LoadFile(path)
	require.NoError(t, err)

	wantID, err := c.ID()
	require.NoError(t, err)
	gotID, err := loaded.ID()
	require.NoError(t, err)
	assert.Equal(t, wantID, gotID)
	assert.Equal(t, SpecificationVersion, loaded.Metadata.PactSpecification.Version)
}

func TestNetworkError(t *testing.T) {
	err := errors.Wrap(NewNetworkError("GET /version", errors.New("connection refused")), "verify")
	assert.True(t, errors.Is(err, ErrNetworkUnavailable))
	assert.Equal(t, "verify: GET /version: network unavailable: connection refused", err.Error())
}
