package mockserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/configuration"
	"github.com/form3tech-oss/sync-pact/internal/app/httpresponse"
	"github.com/form3tech-oss/sync-pact/internal/app/metrics"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDelay    = 500 * time.Millisecond
	defaultDuration = 15 * time.Second
)

var (
	ErrVerificationFailed = errors.New("mock verification failed")
	ErrWaitTimeout        = errors.New("timeout waiting for interactions to be met")
)

// Publisher sends a finished contract to a broker.
type Publisher interface {
	Publish(ctx context.Context, contract *pact.Contract, consumerVersion, branch string) error
}

type Config struct {
	Consumer        string
	Provider        string
	Host            string
	Port            int
	PactDir         string
	ConsumerVersion string
	ConsumerBranch  string
	PublishToBroker bool
	Publisher       Publisher
	WaitDelay       time.Duration // Delay between checks in WaitForInteractions
	WaitDuration    time.Duration // Maximum time WaitForInteractions blocks
}

type unmatchedRequest struct {
	request    pact.ActualRequest
	message    string
	mismatches []pact.Mismatch
}

// MockServer plays the provider for a consumer test and records the interactions it verifies.
type MockServer struct {
	config       Config
	contract     *pact.Contract
	interactions *Interactions
	notify       *notify

	// serialises choosing a candidate and recording the request on it
	matchMu sync.Mutex

	mu        sync.Mutex
	unmatched []unmatchedRequest
	running   bool
	stopped   bool
}

func New(config Config) *MockServer {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.WaitDelay == 0 {
		config.WaitDelay = defaultDelay
	}
	if config.WaitDuration == 0 {
		config.WaitDuration = defaultDuration
	}

	contract := pact.New(config.Consumer, config.Provider)
	contract.ConsumerVersion = config.ConsumerVersion
	contract.ConsumerBranch = config.ConsumerBranch

	return &MockServer{
		config:       config,
		contract:     contract,
		interactions: &Interactions{},
		notify:       newNotify(),
	}
}

func (m *MockServer) Address() string {
	return fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
}

// URL is the base URL the consumer under test should call.
func (m *MockServer) URL() string {
	return "http://" + m.Address()
}

// Contract returns the interactions verified so far.
func (m *MockServer) Contract() *pact.Contract {
	return m.contract
}

func (m *MockServer) Given(providerState string) *InteractionBuilder {
	return (&InteractionBuilder{server: m}).Given(providerState)
}

func (m *MockServer) UponReceiving(description string) *InteractionBuilder {
	return (&InteractionBuilder{server: m}).UponReceiving(description)
}

func (m *MockServer) register(definition pact.Interaction) error {
	interaction, err := newInteraction(definition)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"provider_state": definition.ProviderState,
		"description":    definition.Description,
	}).Infof("storing interaction")
	m.interactions.Store(interaction)
	return nil
}

func (m *MockServer) Start() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Any("/*", m.indexHandler)

	if _, err := configuration.StartServer(m.Address(), e); err != nil {
		return err
	}
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"consumer": m.config.Consumer,
		"provider": m.config.Provider,
		"address":  m.Address(),
	}).Info("mock provider started")
	return nil
}

// Stop releases the listener, writes the contract and publishes it when configured.
// Only the first call has any effect.
func (m *MockServer) Stop(ctx context.Context) error {
	m.mu.Lock()
	running, stopped := m.running, m.stopped
	m.running, m.stopped = false, true
	m.mu.Unlock()

	if stopped {
		return nil
	}

	if running {
		if err := configuration.ShutdownServer(ctx, m.Address()); err != nil {
			log.WithError(err).Warn("unable to shutdown mock provider")
		}
	}

	if len(m.contract.Interactions) == 0 {
		log.Info("no verified interactions, skipping pact file")
		return nil
	}

	if m.config.PactDir != "" {
		path, err := m.contract.WriteFile(m.config.PactDir)
		if err != nil {
			return err
		}
		log.Infof("pact written to %s", path)
	}

	if m.config.PublishToBroker && m.config.Publisher != nil {
		return m.config.Publisher.Publish(ctx, m.contract, m.config.ConsumerVersion, m.config.ConsumerBranch)
	}
	return nil
}

// Serve runs fn while the mock provider is listening and always stops it afterwards.
func (m *MockServer) Serve(ctx context.Context, fn func() error) (err error) {
	if err := m.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := m.Stop(ctx); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn()
}

// Verify runs one consumer test against the registered interactions. The interactions are added
// to the contract only when fn succeeds, every request matched and every interaction was exercised.
func (m *MockServer) Verify(fn func() error) error {
	defer m.reset()

	var problems []string
	if err := fn(); err != nil {
		problems = append(problems, fmt.Sprintf("test failed: %s", err))
	}

	m.mu.Lock()
	for _, u := range m.unmatched {
		problems = append(problems, fmt.Sprintf("unexpected request %s %s: %s", u.request.Method, u.request.Path, u.message))
		for _, mismatch := range u.mismatches {
			problems = append(problems, mismatch.String())
		}
	}
	m.mu.Unlock()

	for _, i := range m.interactions.All() {
		if !i.HasRequests(1) {
			problems = append(problems, fmt.Sprintf("missing request for '%s'", i.Description()))
		}
	}

	if len(problems) > 0 {
		for _, problem := range problems {
			log.Warn(problem)
		}
		return errors.Wrap(ErrVerificationFailed, strings.Join(problems, "; "))
	}

	for _, i := range m.interactions.All() {
		m.contract.AddInteraction(i.definition)
	}
	return nil
}

func (m *MockServer) reset() {
	m.interactions.Clear()
	m.mu.Lock()
	m.unmatched = nil
	m.mu.Unlock()
}

// WaitForInteraction blocks until the interaction with description has received count requests.
func (m *MockServer) WaitForInteraction(description string, count int) error {
	log.WithField("wait_for", description).Infof("waiting")
	hasRequests := func() bool {
		for _, i := range m.interactions.All() {
			if i.Description() == description && i.HasRequests(count) {
				return true
			}
		}
		return false
	}
	return m.waitFor(hasRequests)
}

// WaitForAll blocks until every registered interaction has received a request.
func (m *MockServer) WaitForAll() error {
	log.Info("waiting for all")
	if err := m.waitFor(m.interactions.AllHaveRequests); err != nil {
		for _, i := range m.interactions.All() {
			if !i.HasRequests(1) {
				log.Infof("'%s' has no requests", i.Description())
			}
		}
		return err
	}
	return nil
}

func (m *MockServer) waitFor(done func() bool) error {
	ok := retryFor(func(timeLeft time.Duration) bool {
		if done() {
			return true
		}
		if timeLeft > 0 {
			m.notify.Wait(timeLeft)
		}
		return false
	}, m.config.WaitDelay, m.config.WaitDuration)
	if !ok && !done() {
		return ErrWaitTimeout
	}
	return nil
}

func (m *MockServer) indexHandler(c echo.Context) error {
	req := c.Request()
	log.Infof("received %s %s", req.Method, req.URL.Path)

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read request body. %s", err.Error()))
	}

	actual := pact.ActualRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.Query(),
		Headers: req.Header,
		Body:    data,
	}

	candidates, ok := m.interactions.FindAll(req.URL.Path, req.Method)
	if !ok {
		message := fmt.Sprintf("unable to find interaction to match '%s %s'", req.Method, req.URL.Path)
		m.recordUnmatched(actual, message, nil)
		return c.JSON(http.StatusInternalServerError, httpresponse.Error(message))
	}

	matched, closest := m.claim(candidates, actual)
	if matched != nil {
		metrics.MockRequests.WithLabelValues(m.config.Provider, metrics.OutcomeMatched).Inc()
		m.notify.Notify()
		return respond(c, matched.definition.Response)
	}

	message := fmt.Sprintf("request '%s %s' does not match any interaction", req.Method, req.URL.Path)
	m.recordUnmatched(actual, message, closest)
	return c.JSON(http.StatusInternalServerError, httpresponse.Mismatch(message, closest))
}

// claim records the request on the matching candidate with the fewest requests so far,
// so an interaction registered twice is consumed once per copy in registration order.
// Without a match it returns the mismatches of the closest candidate.
func (m *MockServer) claim(candidates []*interaction, actual pact.ActualRequest) (*interaction, []pact.Mismatch) {
	m.matchMu.Lock()
	defer m.matchMu.Unlock()

	var matched *interaction
	var closest []pact.Mismatch
	for _, candidate := range candidates {
		mismatches := pact.MatchRequest(candidate.definition.Request, actual)
		if len(mismatches) > 0 {
			if closest == nil || len(mismatches) < len(closest) {
				closest = mismatches
			}
			continue
		}
		if matched == nil || candidate.requestCount() < matched.requestCount() {
			matched = candidate
		}
	}
	if matched == nil {
		return nil, closest
	}
	matched.StoreRequest(actual)
	return matched, nil
}

func (m *MockServer) recordUnmatched(request pact.ActualRequest, message string, mismatches []pact.Mismatch) {
	metrics.MockRequests.WithLabelValues(m.config.Provider, metrics.OutcomeUnmatched).Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmatched = append(m.unmatched, unmatchedRequest{request: request, message: message, mismatches: mismatches})
}

func respond(c echo.Context, response pact.Response) error {
	for name, value := range response.Headers {
		c.Response().Header().Set(name, value)
	}

	data, err := pact.EncodeBody(response.Body, response.Headers)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to encode response body. %s", err.Error()))
	}
	if data == nil {
		return c.NoContent(response.Status)
	}

	contentType := c.Response().Header().Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
		if _, ok := response.Body.(string); ok {
			contentType = echo.MIMETextPlainCharsetUTF8
		}
	}
	return c.Blob(response.Status, contentType, data)
}
