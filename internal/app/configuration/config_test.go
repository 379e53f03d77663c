package configuration

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	config, err := newFromLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_VERSION": "abc1234",
		"APP_BRANCH":  "feature",
	}))
	require.NoError(t, err)

	assert.Equal(t, Config{
		BrokerURL:       "http://localhost:9292",
		BrokerUsername:  "pactbroker",
		BrokerPassword:  "pactbroker",
		SyncServiceURL:  "http://localhost:5000",
		PublishToBroker: true,
		Port:            5000,
		AppVersion:      "abc1234",
		AppBranch:       "feature",
		PactDir:         "pacts",
		HTTPTimeout:     5 * time.Second,
		ServiceVersion:  "1.0.0",
		ServiceBuild:    "20240101-abc123",
	}, config)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	config, err := newFromLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"PACT_BROKER_URL":      "http://broker:9292",
		"PACT_BROKER_USERNAME": "user",
		"PACT_BROKER_PASSWORD": "secret",
		"SYNC_SERVICE_URL":     "http://sync-service:5000",
		"PUBLISH_TO_BROKER":    "0",
		"HTTP_TIMEOUT":         "2s",
		"SERVICE_VERSION":      "2.3.4",
		"SERVICE_BUILD":        "20250724-def456",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://broker:9292", config.BrokerURL)
	assert.Equal(t, "user", config.BrokerUsername)
	assert.Equal(t, "secret", config.BrokerPassword)
	assert.Equal(t, "http://sync-service:5000", config.SyncServiceURL)
	assert.False(t, config.PublishToBroker)
	assert.Equal(t, 2*time.Second, config.HTTPTimeout)
	assert.Equal(t, "2.3.4", config.ServiceVersion)
	assert.Equal(t, "20250724-def456", config.ServiceBuild)
	assert.NotEmpty(t, config.AppVersion)
	assert.NotEmpty(t, config.AppBranch)
}

func TestNewFromEnv_InvalidBool(t *testing.T) {
	_, err := newFromLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"PUBLISH_TO_BROKER": "maybe",
	}))
	assert.Error(t, err)
}
