package app

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/form3tech-oss/sync-pact/internal/app/broker"
	"github.com/form3tech-oss/sync-pact/internal/app/broker/brokertest"
	"github.com/form3tech-oss/sync-pact/internal/app/mockserver"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/form3tech-oss/sync-pact/internal/app/state"
	"github.com/form3tech-oss/sync-pact/internal/app/syncservice"
	"github.com/form3tech-oss/sync-pact/internal/app/verifier"
	"github.com/form3tech-oss/sync-pact/pkg/syncclient"
	"github.com/pact-foundation/pact-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

const (
	consumerName    = "transaciton-sync-consumer"
	providerName    = "sync-provider"
	consumerVersion = "abc1234"
	providerVersion = "9f8e7d6"
	mainBranch      = "main"

	versionDescription = "a request for version information"
	healthDescription  = "a health check"
)

type ContractStage struct {
	t              *testing.T
	assert         *assert.Assertions
	broker         *brokertest.Server
	client         *broker.Client
	mock           *mockserver.MockServer
	expected       []string
	consumerResult error
	version        *syncclient.VersionResponse
	health         *syncclient.HealthResponse
	report         *verifier.Report
	verifyErr      error
}

func NewContractStage(t *testing.T) (*ContractStage, *ContractStage, *ContractStage) {
	port, err := utils.GetFreePort()
	if err != nil {
		t.Logf("Error getting a port for the mock provider: %v", err)
		t.Fail()
	}

	brokerServer := brokertest.NewServer()
	brokerServer.RequireAuth("pactbroker", "pactbroker")
	client := broker.NewClient(broker.Config{URL: brokerServer.URL, Username: "pactbroker", Password: "pactbroker"})

	s := &ContractStage{
		t:      t,
		assert: assert.New(t),
		broker: brokerServer,
		client: client,
		mock: mockserver.New(mockserver.Config{
			Consumer:        consumerName,
			Provider:        providerName,
			Port:            port,
			PactDir:         t.TempDir(),
			ConsumerVersion: consumerVersion,
			ConsumerBranch:  mainBranch,
			PublishToBroker: true,
			Publisher:       broker.NewPublisher(client),
		}),
	}

	t.Cleanup(brokerServer.Close)

	return s, s, s
}

func (s *ContractStage) and() *ContractStage {
	return s
}

func (s *ContractStage) versionBody() interface{} {
	return pact.Like(map[string]interface{}{
		"service":   pact.Term(`^sync-service$`, "sync-service"),
		"version":   pact.Term(`^\d+(.\d+){2,3}$`, "1.0.0"),
		"build":     pact.Term(`^\d{8}-[a-f0-9]+$`, "20240101-abc123"),
		"timestamp": pact.ISO8601DateTime(),
	})
}

func (s *ContractStage) a_consumer_expecting_version_information_in_state(providerState string) *ContractStage {
	err := s.mock.
		Given(providerState).
		UponReceiving(versionDescription).
		WithRequest(http.MethodGet, "/version").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, s.versionBody()).
		Register()
	s.assert.NoError(err)
	s.expected = append(s.expected, versionDescription)
	return s
}

func (s *ContractStage) a_consumer_expecting_version_information() *ContractStage {
	return s.a_consumer_expecting_version_information_in_state(string(syncservice.StateRunning))
}

func (s *ContractStage) a_consumer_expecting_a_health_check() *ContractStage {
	err := s.mock.
		Given(string(syncservice.StateRunning)).
		UponReceiving(healthDescription).
		WithRequest(http.MethodGet, "/health").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, pact.Like(map[string]interface{}{
			"status":    "healthy",
			"timestamp": pact.ISO8601DateTime(),
		})).
		Register()
	s.assert.NoError(err)
	s.expected = append(s.expected, healthDescription)
	return s
}

func (s *ContractStage) a_consumer_expecting_a_degraded_health_check() *ContractStage {
	err := s.mock.
		Given(string(syncservice.StateRunning)).
		UponReceiving(healthDescription).
		WithRequest(http.MethodGet, "/health").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, map[string]interface{}{
			"status":    "degraded",
			"timestamp": pact.ISO8601DateTime(),
		}).
		Register()
	s.assert.NoError(err)
	s.expected = append(s.expected, healthDescription)
	return s
}

func (s *ContractStage) the_consumer_contract_is_pending() *ContractStage {
	s.broker.SetPending(consumerName, true)
	return s
}

func (s *ContractStage) the_consumer_tests_run() *ContractStage {
	s.consumerResult = s.mock.Serve(context.Background(), func() error {
		return s.mock.Verify(func() error {
			client := syncclient.New(s.mock.URL())
			var err error
			if s.hasInteraction(versionDescription) {
				if s.version, err = client.GetVersion(context.Background()); err != nil {
					return err
				}
			}
			if s.hasInteraction(healthDescription) {
				if s.health, err = client.HealthCheck(context.Background()); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return s
}

func (s *ContractStage) hasInteraction(description string) bool {
	for _, d := range s.expected {
		if d == description {
			return true
		}
	}
	return false
}

func (s *ContractStage) the_provider_is_verified(enablePending bool) *ContractStage {
	source := &verifier.BrokerSource{
		Client:         s.client,
		EnablePending:  enablePending,
		ProviderBranch: mainBranch,
	}
	runner := verifier.NewRunner(verifier.Config{
		Provider:        providerName,
		ProviderBaseURL: syncServiceURL,
		ProviderVersion: providerVersion,
		ProviderBranch:  mainBranch,
		PublishResults:  true,
	}, source, state.NewHTTPActivator(syncServiceURL+"/_pact/provider_states", 0), verifier.WithResultsPublisher(s.client))

	s.report, s.verifyErr = runner.Run(context.Background())
	return s
}

func (s *ContractStage) consumer_verification_is_successful() *ContractStage {
	s.assert.NoError(s.consumerResult)
	return s
}

func (s *ContractStage) consumer_verification_is_not_successful() *ContractStage {
	s.assert.Error(s.consumerResult)
	return s
}

func (s *ContractStage) the_consumer_received_the_example_version() *ContractStage {
	if s.assert.NotNil(s.version) {
		s.assert.Equal("sync-service", s.version.Service)
		s.assert.Equal("2025-07-24T15:43:24.204757Z", s.version.Timestamp)
	}
	return s
}

func (s *ContractStage) the_contract_is_published() *ContractStage {
	data, ok := s.broker.Pact(providerName, consumerName, consumerVersion)
	s.assert.True(ok, "contract was not published")
	s.assert.Equal(providerName, gjson.GetBytes(data, "provider.name").String())
	s.assert.Equal(mainBranch, s.broker.Branch(consumerName, consumerVersion))
	return s
}

func (s *ContractStage) no_contract_is_published() *ContractStage {
	s.assert.Equal(0, s.broker.Publications())
	return s
}

func (s *ContractStage) the_contract_has_(n int) *ContractStage {
	data, ok := s.broker.Pact(providerName, consumerName, consumerVersion)
	if s.assert.True(ok) {
		s.assert.Len(gjson.GetBytes(data, "interactions").Array(), n)
	}
	return s
}

func (s *ContractStage) the_verification_exit_code_is_(code int) *ContractStage {
	s.assert.NoError(s.verifyErr)
	if s.assert.NotNil(s.report) {
		s.assert.Equal(code, s.report.ExitCode())
	}
	return s
}

func (s *ContractStage) the_interaction_(description string, passed bool) *ContractStage {
	for _, c := range s.report.Contracts {
		for _, r := range c.Results {
			if r.Description == description {
				s.assert.Equalf(passed, r.Passed, "%s: %s %v", description, r.Reason, r.Mismatches)
				return s
			}
		}
	}
	s.t.Errorf("no result for '%s'", description)
	return s
}

func (s *ContractStage) the_interaction_failed_because_(description, reason string) *ContractStage {
	for _, c := range s.report.Contracts {
		for _, r := range c.Results {
			if r.Description == description {
				s.assert.False(r.Passed)
				s.assert.True(strings.HasPrefix(r.Reason, reason), r.Reason)
				return s
			}
		}
	}
	s.t.Errorf("no result for '%s'", description)
	return s
}

func (s *ContractStage) verification_results_were_published(success bool) *ContractStage {
	results := s.broker.Results()
	if s.assert.Len(results, 1) {
		s.assert.Equal(success, gjson.GetBytes(results[0].Body, "success").Bool())
		s.assert.Equal(providerVersion, gjson.GetBytes(results[0].Body, "providerApplicationVersion").String())
	}
	s.assert.Equal(mainBranch, s.broker.Branch(providerName, providerVersion))
	return s
}

func (s *ContractStage) the_consumer_tests_run_without_calling_the_provider() *ContractStage {
	s.consumerResult = s.mock.Serve(context.Background(), func() error {
		return s.mock.Verify(func() error { return nil })
	})
	return s
}
