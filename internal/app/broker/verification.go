package broker

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const publishResultsRelation = "pb:publish-verification-results"

type ConsumerVersionSelector struct {
	MainBranch         bool   `json:"mainBranch,omitempty"`
	DeployedOrReleased bool   `json:"deployedOrReleased,omitempty"`
	Branch             string `json:"branch,omitempty"`
	Consumer           string `json:"consumer,omitempty"`
}

// DefaultSelectors select the contracts on consumers' main branches and those currently deployed or released.
func DefaultSelectors() []ConsumerVersionSelector {
	return []ConsumerVersionSelector{
		{MainBranch: true},
		{DeployedOrReleased: true},
	}
}

type VerificationRequest struct {
	ConsumerVersionSelectors []ConsumerVersionSelector `json:"consumerVersionSelectors"`
	IncludePendingStatus     bool                      `json:"includePendingStatus"`
	ProviderVersionBranch    string                    `json:"providerVersionBranch,omitempty"`
}

// VerifiablePact is a contract the provider has to verify.
type VerifiablePact struct {
	URL               string
	Pending           bool
	PublishResultsURL string
	Contract          *pact.Contract
}

// PactsForVerification fetches the contracts of provider selected by request.
// Contracts selected more than once are returned once.
func (c *Client) PactsForVerification(ctx context.Context, provider string, request VerificationRequest) ([]VerifiablePact, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode verification request")
	}

	target := c.resolve("/pacts/provider/%s/for-verification", provider)
	data, err := c.do(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to fetch pacts for %s", provider)
	}

	var result []VerifiablePact
	seenURLs := map[string]bool{}
	seenIDs := map[string]bool{}
	for _, entry := range gjson.GetBytes(data, "_embedded.pacts").Array() {
		href := entry.Get("_links.self.href").String()
		if href == "" || seenURLs[href] {
			continue
		}
		seenURLs[href] = true

		verifiable, err := c.fetchPact(ctx, href)
		if err != nil {
			return nil, err
		}
		id, err := verifiable.Contract.ID()
		if err != nil {
			return nil, err
		}
		if seenIDs[id] {
			continue
		}
		seenIDs[id] = true

		verifiable.Pending = entry.Get("verificationProperties.pending").Bool()
		result = append(result, verifiable)
	}

	log.WithFields(log.Fields{
		"provider": provider,
		"pacts":    len(result),
	}).Info("fetched pacts for verification")
	return result, nil
}

func (c *Client) fetchPact(ctx context.Context, href string) (VerifiablePact, error) {
	data, err := c.do(ctx, http.MethodGet, href, nil)
	if err != nil {
		return VerifiablePact{}, errors.Wrapf(err, "unable to fetch pact %s", href)
	}
	contract, err := pact.Load(data)
	if err != nil {
		return VerifiablePact{}, err
	}

	links := gjson.GetBytes(data, "_links")
	return VerifiablePact{
		URL:               href,
		PublishResultsURL: links.Get(publishResultsRelation + ".href").String(),
		Contract:          contract,
	}, nil
}

type TestResult struct {
	InteractionID string   `json:"interactionId"`
	Description   string   `json:"interactionDescription"`
	Success       bool     `json:"success"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

type VerifiedBy struct {
	Implementation string `json:"implementation"`
	Version        string `json:"version"`
}

type VerificationResults struct {
	Success                    bool         `json:"success"`
	ProviderApplicationVersion string       `json:"providerApplicationVersion"`
	TestResults                []TestResult `json:"testResults"`
	VerifiedBy                 VerifiedBy   `json:"verifiedBy"`
}

// PublishVerificationResults posts results to the publication link of a verified pact.
func (c *Client) PublishVerificationResults(ctx context.Context, target string, results VerificationResults) error {
	if target == "" {
		return errors.New("pact has no verification results link")
	}
	body, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "unable to encode verification results")
	}
	if _, err := c.do(ctx, http.MethodPost, target, body); err != nil {
		return errors.Wrap(err, "unable to publish verification results")
	}
	return nil
}
