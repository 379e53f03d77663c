package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Client calls the sync-service.
type Client struct {
	client http.Client
	url    string
}

func New(url string) *Client {
	return &Client{
		client: http.Client{
			Timeout: 5 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

func (c *Client) GetVersion(ctx context.Context) (*VersionResponse, error) {
	version := &VersionResponse{}
	if err := c.get(ctx, "/version", version); err != nil {
		return nil, err
	}
	return version, nil
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	health := &HealthResponse{}
	if err := c.get(ctx, "/health", health); err != nil {
		return nil, err
	}
	return health, nil
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return errors.Wrapf(err, "unable to create request for %s", path)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s failed", path)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "unable to read response of %s", path)
	}
	if res.StatusCode != http.StatusOK {
		log.Warnf("GET %s returned %d: %s", path, res.StatusCode, string(body))
		return fmt.Errorf("GET %s returned status %d", path, res.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrapf(err, "unable to parse response of %s", path)
	}
	return nil
}
