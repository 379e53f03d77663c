package app

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/mockserver"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pact-foundation/pact-go/utils"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type ConcurrentStage struct {
	t                *testing.T
	assert           *assert.Assertions
	mock             *mockserver.MockServer
	versionRequests  int
	healthRequests   int
	mu               sync.Mutex
	versionResponses []int
	healthResponses  []int
	verifyErr        error
}

func NewConcurrentStage(t *testing.T) (*ConcurrentStage, *ConcurrentStage, *ConcurrentStage) {
	port, err := utils.GetFreePort()
	if err != nil {
		t.Logf("Error getting a port for the mock provider: %v", err)
		t.Fail()
	}

	s := &ConcurrentStage{
		t:      t,
		assert: assert.New(t),
		mock: mockserver.New(mockserver.Config{
			Consumer:     consumerName,
			Provider:     providerName,
			Port:         port,
			WaitDelay:    50 * time.Millisecond,
			WaitDuration: 5 * time.Second,
		}),
	}
	if err := s.mock.Start(); err != nil {
		t.Logf("Error starting the mock provider: %v", err)
		t.Fail()
	}

	t.Cleanup(func() {
		if err := s.mock.Stop(context.Background()); err != nil {
			t.Log(err)
		}
	})

	return s, s, s
}

func (s *ConcurrentStage) and() *ConcurrentStage {
	return s
}

func (s *ConcurrentStage) version_and_health_interactions() *ConcurrentStage {
	err := s.mock.
		Given("sync-service is running").
		UponReceiving(versionDescription).
		WithRequest(http.MethodGet, "/version").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, pact.Like(map[string]interface{}{
			"service": "sync-service",
		})).
		Register()
	s.assert.NoError(err)

	err = s.mock.
		Given("sync-service is running").
		UponReceiving(healthDescription).
		WithRequest(http.MethodGet, "/health").
		WillRespondWith(http.StatusOK, mockserver.Headers{"Content-Type": "application/json"}, map[string]interface{}{
			"status": "healthy",
		}).
		Register()
	s.assert.NoError(err)
	return s
}

func (s *ConcurrentStage) x_version_requests_and_y_health_requests(x, y int) *ConcurrentStage {
	s.versionRequests = x
	s.healthRequests = y
	return s
}

func (s *ConcurrentStage) the_concurrent_requests_are_sent() *ConcurrentStage {
	s.verifyErr = s.mock.Verify(func() error {
		wg := sync.WaitGroup{}
		send := func(path string, responses *[]int) {
			defer wg.Done()
			res, err := http.Get(s.mock.URL() + path)
			if !s.assert.NoError(err) {
				return
			}
			res.Body.Close()

			s.mu.Lock()
			*responses = append(*responses, res.StatusCode)
			s.mu.Unlock()
		}

		log.Infof("sending %d version and %d health requests", s.versionRequests, s.healthRequests)
		for i := 0; i < s.versionRequests; i++ {
			wg.Add(1)
			go send("/version", &s.versionResponses)
		}
		for i := 0; i < s.healthRequests; i++ {
			wg.Add(1)
			go send("/health", &s.healthResponses)
		}

		s.assert.NoError(s.mock.WaitForInteraction(versionDescription, s.versionRequests))
		s.assert.NoError(s.mock.WaitForInteraction(healthDescription, s.healthRequests))
		wg.Wait()
		return nil
	})
	return s
}

func (s *ConcurrentStage) verification_is_successful() *ConcurrentStage {
	s.assert.NoError(s.verifyErr)
	return s
}

func (s *ConcurrentStage) all_responses_are_ok() *ConcurrentStage {
	s.assert.Len(s.versionResponses, s.versionRequests)
	s.assert.Len(s.healthResponses, s.healthRequests)
	for _, status := range append(s.versionResponses, s.healthResponses...) {
		s.assert.Equal(http.StatusOK, status)
	}
	return s
}

func (s *ConcurrentStage) the_contract_has_(n int) *ConcurrentStage {
	s.assert.Len(s.mock.Contract().Interactions, n)
	return s
}
