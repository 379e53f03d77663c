package broker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 5 * time.Second

var ErrBrokerAuth = errors.New("pact broker rejected credentials")

// BrokerError is a non-2xx answer from the broker that is not an authentication failure.
type BrokerError struct {
	Status int
	Body   string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("pact broker responded with status %d: %s", e.Status, e.Body)
}

type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client speaks the Pact Broker REST API with basic authentication.
type Client struct {
	url      string
	username string
	password string
	client   *http.Client
}

func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:      strings.TrimSuffix(config.URL, "/"),
		username: config.Username,
		password: config.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) resolve(path string, segments ...string) string {
	escaped := make([]interface{}, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return c.url + fmt.Sprintf(path, escaped...)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s request for %s", method, target)
	}
	req.Header.Set("Accept", "application/hal+json, application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	log.WithFields(log.Fields{
		"method": method,
		"url":    target,
	}).Debug("calling pact broker")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, pact.NewNetworkError(method+" "+target, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, pact.NewNetworkError(method+" "+target, err)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrBrokerAuth, "%s %s returned %d", method, target, res.StatusCode)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, &BrokerError{Status: res.StatusCode, Body: string(data)}
	}
	return data, nil
}

// RecordBranch records that version of pacticipant belongs to branch.
func (c *Client) RecordBranch(ctx context.Context, pacticipant, branch, version string) error {
	target := c.resolve("/pacticipants/%s/branches/%s/versions/%s", pacticipant, branch, version)
	if _, err := c.do(ctx, http.MethodPut, target, []byte("{}")); err != nil {
		return errors.Wrapf(err, "unable to record branch %s for %s version %s", branch, pacticipant, version)
	}
	return nil
}
