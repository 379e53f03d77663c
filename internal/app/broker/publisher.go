package broker

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher uploads consumer contracts.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish validates the contract and uploads it as consumerVersion, tagging the version with branch when set.
// Publishing the same consumer, provider and version again replaces the stored contract.
func (p *Publisher) Publish(ctx context.Context, contract *pact.Contract, consumerVersion, branch string) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	if consumerVersion == "" {
		return errors.Wrap(pact.ErrSchemaValidation, "consumer version is required to publish")
	}

	data, err := contract.Marshal()
	if err != nil {
		return err
	}

	target := p.client.resolve("/pacts/provider/%s/consumer/%s/version/%s",
		contract.Provider.Name, contract.Consumer.Name, consumerVersion)
	if _, err := p.client.do(ctx, http.MethodPut, target, data); err != nil {
		return errors.Wrapf(err, "unable to publish pact %s-%s version %s",
			contract.Consumer.Name, contract.Provider.Name, consumerVersion)
	}

	if branch != "" {
		if err := p.client.RecordBranch(ctx, contract.Consumer.Name, branch, consumerVersion); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"consumer": contract.Consumer.Name,
		"provider": contract.Provider.Name,
		"version":  consumerVersion,
		"branch":   branch,
	}).Info("pact published")
	return nil
}
