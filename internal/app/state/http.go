package state

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
)

// Request is the body posted to a provider states setup URL.
type Request struct {
	Consumer string `json:"consumer"`
	State    string `json:"state"`
}

// HTTPActivator activates provider states through the provider's setup endpoint.
type HTTPActivator struct {
	client http.Client
	url    string
}

func NewHTTPActivator(setupURL string, timeout time.Duration) *HTTPActivator {
	return &HTTPActivator{
		client: http.Client{Timeout: timeout},
		url:    setupURL,
	}
}

func (a *HTTPActivator) Activate(ctx context.Context, consumer, state string) (interface{}, error) {
	content, err := json.Marshal(Request{Consumer: consumer, State: state})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal provider state")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", pact.MediaTypeJSON)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, pact.NewNetworkError("POST "+a.url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read provider state response")
	}

	if res.StatusCode == http.StatusBadRequest {
		return nil, errors.Wrapf(ErrUnknownState, "%q: %s", state, string(body))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Errorf("provider state %q setup failed with status %d: %s", state, res.StatusCode, string(body))
	}

	if len(body) == 0 {
		return nil, nil
	}
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to parse provider state response")
	}
	return payload, nil
}
