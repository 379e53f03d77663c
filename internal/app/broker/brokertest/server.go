// Package brokertest provides an in-memory Pact Broker for tests.
package brokertest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const MainBranch = "main"

type pactKey struct {
	provider string
	consumer string
	version  string
}

// VerificationResult is a verification results document posted by a provider.
type VerificationResult struct {
	Provider    string
	Consumer    string
	PactVersion string
	Body        []byte
}

type Server struct {
	*httptest.Server

	mu                   sync.Mutex
	username             string
	password             string
	pacts                map[pactKey][]byte
	published            []pactKey
	publications         int
	branches             map[string]string
	deployed             map[string]bool
	pending              map[string]bool
	verificationRequests [][]byte
	results              []VerificationResult
}

func NewServer() *Server {
	s := &Server{
		pacts:    map[pactKey][]byte{},
		branches: map[string]string{},
		deployed: map[string]bool{},
		pending:  map[string]bool{},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(s.authenticate)
	e.PUT("/pacts/provider/:provider/consumer/:consumer/version/:version", s.publishPact)
	e.GET("/pacts/provider/:provider/consumer/:consumer/version/:version", s.getPact)
	e.PUT("/pacticipants/:pacticipant/branches/:branch/versions/:version", s.recordBranch)
	e.POST("/pacts/provider/:provider/for-verification", s.pactsForVerification)
	e.POST("/pacts/provider/:provider/consumer/:consumer/pact-version/:sha/verification-results", s.publishResults)

	s.Server = httptest.NewServer(e)
	return s
}

// RequireAuth makes every endpoint demand basic authentication with the given credentials.
func (s *Server) RequireAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = username, password
}

func (s *Server) SetPending(consumer string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[consumer] = pending
}

// MarkDeployed makes version of consumer selectable with deployedOrReleased.
func (s *Server) MarkDeployed(consumer, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployed[consumer+"/"+version] = true
}

func (s *Server) Pact(provider, consumer, version string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.pacts[pactKey{provider: provider, consumer: consumer, version: version}]
	return data, ok
}

func (s *Server) Publications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publications
}

func (s *Server) Branch(pacticipant, version string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branches[pacticipant+"/"+version]
}

func (s *Server) VerificationRequests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.verificationRequests...)
}

func (s *Server) Results() []VerificationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VerificationResult(nil), s.results...)
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		username, password := s.username, s.password
		s.mu.Unlock()
		if username == "" {
			return next(c)
		}
		u, p, ok := c.Request().BasicAuth()
		if !ok || u != username || p != password {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		return next(c)
	}
}

func keyOf(c echo.Context) pactKey {
	return pactKey{provider: c.Param("provider"), consumer: c.Param("consumer"), version: c.Param("version")}
}

func (s *Server) publishPact(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil || !gjson.ValidBytes(data) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pact"})
	}

	key := keyOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pacts[key]
	s.pacts[key] = data
	s.publications++
	if !exists {
		s.published = append(s.published, key)
		return c.NoContent(http.StatusCreated)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) getPact(c echo.Context) error {
	key := keyOf(c)
	s.mu.Lock()
	data, ok := s.pacts[key]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "pact not found"})
	}

	document, err := s.withLinks(key, data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, "application/hal+json", document)
}

func (s *Server) pactURL(key pactKey) string {
	return fmt.Sprintf("%s/pacts/provider/%s/consumer/%s/version/%s", s.URL, key.provider, key.consumer, key.version)
}

func (s *Server) withLinks(key pactKey, data []byte) ([]byte, error) {
	sum := sha1.Sum(data)
	resultsURL := fmt.Sprintf("%s/pacts/provider/%s/consumer/%s/pact-version/%s/verification-results",
		s.URL, key.provider, key.consumer, hex.EncodeToString(sum[:]))

	document, err := sjson.SetBytes(data, "_links.self.href", s.pactURL(key))
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(document, `_links.pb\:publish-verification-results.href`, resultsURL)
}

func (s *Server) recordBranch(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[c.Param("pacticipant")+"/"+c.Param("version")] = c.Param("branch")
	return c.JSON(http.StatusOK, map[string]string{"name": c.Param("branch")})
}

func (s *Server) pactsForVerification(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	provider := c.Param("provider")
	request := gjson.ParseBytes(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.verificationRequests = append(s.verificationRequests, data)

	var selected []pactKey
	selectors := request.Get("consumerVersionSelectors").Array()
	if len(selectors) == 0 {
		selected = s.latest(provider, func(pactKey) bool { return true })
	}
	for _, selector := range selectors {
		if selector.Get("mainBranch").Bool() {
			selected = append(selected, s.latest(provider, func(key pactKey) bool {
				return s.branches[key.consumer+"/"+key.version] == MainBranch
			})...)
		}
		if selector.Get("deployedOrReleased").Bool() {
			for _, key := range s.published {
				if key.provider == provider && s.deployed[key.consumer+"/"+key.version] {
					selected = append(selected, key)
				}
			}
		}
	}

	includePending := request.Get("includePendingStatus").Bool()
	pacts := make([]map[string]interface{}, 0, len(selected))
	for _, key := range selected {
		pacts = append(pacts, map[string]interface{}{
			"shortDescription": fmt.Sprintf("%s version %s", key.consumer, key.version),
			"verificationProperties": map[string]interface{}{
				"pending": includePending && s.pending[key.consumer],
			},
			"_links": map[string]interface{}{
				"self": map[string]string{"href": s.pactURL(key)},
			},
		})
	}

	body, err := json.Marshal(map[string]interface{}{
		"_embedded": map[string]interface{}{"pacts": pacts},
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, "application/hal+json", body)
}

// latest returns the most recently published matching version per consumer of provider.
func (s *Server) latest(provider string, include func(pactKey) bool) []pactKey {
	var consumers []string
	latest := map[string]pactKey{}
	for _, key := range s.published {
		if key.provider != provider || !include(key) {
			continue
		}
		if _, ok := latest[key.consumer]; !ok {
			consumers = append(consumers, key.consumer)
		}
		latest[key.consumer] = key
	}
	keys := make([]pactKey, 0, len(consumers))
	for _, consumer := range consumers {
		keys = append(keys, latest[consumer])
	}
	return keys
}

func (s *Server) publishResults(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil || !gjson.ValidBytes(data) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid verification results"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, VerificationResult{
		Provider:    c.Param("provider"),
		Consumer:    c.Param("consumer"),
		PactVersion: c.Param("sha"),
		Body:        data,
	})
	return c.NoContent(http.StatusCreated)
}
