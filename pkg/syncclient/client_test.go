package syncclient

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/form3tech-oss/sync-pact/internal/app/mockserver"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pact-foundation/pact-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProvider(t *testing.T) *mockserver.MockServer {
	port, err := utils.GetFreePort()
	require.NoError(t, err)

	m := mockserver.New(mockserver.Config{
		Consumer: "transaciton-sync-consumer",
		Provider: "sync-provider",
		Port:     port,
		PactDir:  t.TempDir(),
	})
	require.NoError(t, m.Start())
	return m
}

func TestGetVersion(t *testing.T) {
	m := newMockProvider(t)
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	err := m.Given("sync-service is running").
		UponReceiving("a request for version information").
		WithRequest(http.MethodGet, "/version").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, pact.Like(map[string]interface{}{
			"service":   pact.Term(`^sync-service$`, "sync-service"),
			"version":   pact.Term(`^\d+(.\d+){2,3}$`, "1.0.0"),
			"build":     pact.Term(`^\d{8}-[a-f0-9]+$`, "20240101-abc123"),
			"timestamp": pact.ISO8601DateTime(),
		})).
		Register()
	require.NoError(t, err)

	var version *VersionResponse
	require.NoError(t, m.Verify(func() error {
		version, err = New(m.URL()).GetVersion(context.Background())
		return err
	}))

	assert.Equal(t, "sync-service", version.Service)
	assert.Equal(t, "1.0.0", version.Version)
	assert.Equal(t, "20240101-abc123", version.Build)
	assert.Equal(t, "2025-07-24T15:43:24.204757Z", version.Timestamp)
}

func TestHealthCheck(t *testing.T) {
	m := newMockProvider(t)
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	err := m.Given("sync-service is running").
		UponReceiving("a health check").
		WithRequest(http.MethodGet, "/health").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, map[string]interface{}{
			"status":    "healthy",
			"timestamp": pact.ISO8601DateTime(),
		}).
		Register()
	require.NoError(t, err)

	var health *HealthResponse
	require.NoError(t, m.Verify(func() error {
		health, err = New(m.URL()).HealthCheck(context.Background())
		return err
	}))
	assert.Equal(t, "healthy", health.Status)
}

func TestGetVersion_ErrorStatus(t *testing.T) {
	m := newMockProvider(t)
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	err := m.Given("sync-service is unavailable").
		UponReceiving("a request for version information while unavailable").
		WithRequest(http.MethodGet, "/version").
		WillRespondWith(http.StatusServiceUnavailable, mockserver.Headers{"Content-Type": "application/json"}, map[string]interface{}{
			"error": "Service temporarily unavailable",
		}).
		Register()
	require.NoError(t, err)

	require.NoError(t, m.Verify(func() error {
		_, err := New(m.URL()).GetVersion(context.Background())
		assert.EqualError(t, err, "GET /version returned status 503")
		return nil
	}))
}

func TestPactFileWritten(t *testing.T) {
	dir := t.TempDir()
	port, err := utils.GetFreePort()
	require.NoError(t, err)
	m := mockserver.New(mockserver.Config{
		Consumer: "transaciton-sync-consumer",
		Provider: "sync-provider",
		Port:     port,
		PactDir:  dir,
	})

	err = m.Serve(context.Background(), func() error {
		err := m.UponReceiving("a health check").
			WithRequest(http.MethodGet, "/health").
			WillRespondWith(http.StatusOK, nil, map[string]interface{}{"status": "healthy", "timestamp": pact.ISO8601DateTime()}).
			Register()
		if err != nil {
			return err
		}
		return m.Verify(func() error {
			_, err := New(m.URL()).HealthCheck(context.Background())
			return err
		})
	})
	require.NoError(t, err)

	contract, err := pact.LoadFile(filepath.Join(dir, "transaciton-sync-consumer-sync-provider.json"))
	require.NoError(t, err)
	assert.Len(t, contract.Interactions, 1)
}
