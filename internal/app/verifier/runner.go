package verifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/broker"
	"github.com/form3tech-oss/sync-pact/internal/app/metrics"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/form3tech-oss/sync-pact/internal/app/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 5 * time.Second
	implementation = "sync-pact"
	Version        = "1.0.0"
)

// stage of the per contract state machine, used in logs
type stage string

const (
	stageFetch          stage = "fetch"
	stageSetupState     stage = "setup_state"
	stageExecuteRequest stage = "execute_request"
	stageCompare        stage = "compare"
	stageRecordResult   stage = "record_result"
	stagePublishResults stage = "publish_results"
	stageDone           stage = "done"
)

// StateActivator puts the provider into a named state before an interaction is replayed.
type StateActivator interface {
	Activate(ctx context.Context, consumer, state string) (interface{}, error)
}

// ResultsPublisher sends verification results back to the broker.
type ResultsPublisher interface {
	RecordBranch(ctx context.Context, pacticipant, branch, version string) error
	PublishVerificationResults(ctx context.Context, target string, results broker.VerificationResults) error
}

type Config struct {
	Provider        string
	ProviderBaseURL string
	ProviderVersion string
	ProviderBranch  string
	PublishResults  bool
	Timeout         time.Duration
}

type Option func(*Runner)

func WithResultsPublisher(publisher ResultsPublisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) {
		r.client = client
	}
}

// Runner replays contracts against a live provider, one interaction at a time.
type Runner struct {
	config    Config
	source    ContractSource
	states    StateActivator
	publisher ResultsPublisher
	client    *http.Client
	now       func() time.Time
}

func NewRunner(config Config, source ContractSource, states StateActivator, options ...Option) *Runner {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	r := &Runner{
		config: config,
		source: source,
		states: states,
		client: &http.Client{Timeout: config.Timeout},
		now:    time.Now,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run verifies every contract of the provider. Interaction failures are part of the report, an error
// is only returned when contracts cannot be fetched or results cannot be published.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	logger := log.WithFields(log.Fields{"provider": r.config.Provider, "stage": stageFetch})
	contracts, err := r.source.Contracts(ctx, r.config.Provider)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch contracts")
	}
	logger.Infof("verifying %d contract(s)", len(contracts))

	report := &Report{}
	branchRecorded := false
	for _, contract := range contracts {
		contractReport, err := r.verifyContract(ctx, contract)
		if err != nil {
			return report, err
		}
		report.Contracts = append(report.Contracts, contractReport)

		if !r.shouldPublish(contract) {
			continue
		}
		if !branchRecorded && r.config.ProviderBranch != "" {
			if err := r.publisher.RecordBranch(ctx, r.config.Provider, r.config.ProviderBranch, r.config.ProviderVersion); err != nil {
				return report, err
			}
			branchRecorded = true
		}
		if err := r.publishResults(ctx, contract, contractReport); err != nil {
			return report, err
		}
	}

	summary := report.Summary()
	log.WithFields(log.Fields{
		"provider":     r.config.Provider,
		"stage":        stageDone,
		"interactions": summary.InteractionCount,
		"failures":     summary.FailureCount,
		"pending":      summary.PendingCount,
	}).Info("verification finished")
	return report, nil
}

func (r *Runner) shouldPublish(contract Contract) bool {
	return r.config.PublishResults && r.publisher != nil && contract.PublishResultsURL != ""
}

func (r *Runner) verifyContract(ctx context.Context, contract Contract) (ContractReport, error) {
	id, err := contract.ID()
	if err != nil {
		return ContractReport{}, err
	}
	report := ContractReport{
		Consumer:   contract.Consumer.Name,
		Provider:   contract.Provider.Name,
		ContractID: id,
		Source:     contract.Source,
		Pending:    contract.Pending,
	}
	for _, interaction := range contract.Interactions {
		result := r.verifyInteraction(ctx, contract, id, interaction)
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (r *Runner) verifyInteraction(ctx context.Context, contract Contract, contractID string, interaction pact.Interaction) Result {
	logger := log.WithFields(log.Fields{
		"consumer":    contract.Consumer.Name,
		"interaction": interaction.ID(),
	})
	record := func(passed bool, reason string, mismatches []pact.Mismatch) Result {
		logger.WithField("stage", stageRecordResult).WithField("passed", passed).Info(reason)
		outcome := metrics.OutcomePassed
		switch {
		case passed:
		case contract.Pending:
			outcome = metrics.OutcomePendingFailed
		default:
			outcome = metrics.OutcomeFailed
		}
		metrics.VerifiedInteractions.WithLabelValues(contract.Consumer.Name, contract.Provider.Name, outcome).Inc()

		return Result{
			ID:              uuid.New(),
			ContractID:      contractID,
			InteractionID:   interaction.ID(),
			Consumer:        contract.Consumer.Name,
			Provider:        contract.Provider.Name,
			Description:     interaction.Description,
			ProviderState:   interaction.ProviderState,
			Passed:          passed,
			Pending:         contract.Pending,
			Reason:          reason,
			Mismatches:      mismatches,
			ProviderVersion: r.config.ProviderVersion,
			Timestamp:       r.now().UTC(),
		}
	}

	if interaction.ProviderState != "" {
		logger.WithField("stage", stageSetupState).Infof("activating state '%s'", interaction.ProviderState)
		if _, err := r.states.Activate(ctx, contract.Consumer.Name, interaction.ProviderState); err != nil {
			if errors.Is(err, state.ErrUnknownState) {
				metrics.ProviderStates.WithLabelValues(interaction.ProviderState, "unknown").Inc()
				return record(false, fmt.Sprintf("%s: %s", ReasonUnknownState, interaction.ProviderState), nil)
			}
			metrics.ProviderStates.WithLabelValues(interaction.ProviderState, "error").Inc()
			return record(false, fmt.Sprintf("%s: %s", ReasonStateFailed, err), nil)
		}
		metrics.ProviderStates.WithLabelValues(interaction.ProviderState, "ok").Inc()
	}

	logger.WithField("stage", stageExecuteRequest).Infof("%s %s", interaction.Request.Method, interaction.Request.Path)
	actual, err := r.execute(ctx, interaction.Request)
	if err != nil {
		if errors.Is(err, pact.ErrNetworkUnavailable) {
			return record(false, fmt.Sprintf("%s: %s", ReasonUnreachable, err), nil)
		}
		return record(false, err.Error(), nil)
	}

	logger.WithField("stage", stageCompare).Debug("comparing response")
	mismatches := pact.MatchResponse(interaction.Response, actual)
	if len(mismatches) > 0 {
		return record(false, ReasonMismatch, mismatches)
	}
	return record(true, "interaction verified", nil)
}

func (r *Runner) execute(ctx context.Context, request pact.Request) (pact.ActualResponse, error) {
	body, err := pact.EncodeBody(request.Body, request.Headers)
	if err != nil {
		return pact.ActualResponse{}, err
	}

	target := request.URL(r.config.ProviderBaseURL)
	req, err := http.NewRequestWithContext(ctx, request.Method, target, bytes.NewReader(body))
	if err != nil {
		return pact.ActualResponse{}, errors.Wrapf(err, "unable to create request for %s", target)
	}
	for name, value := range request.Headers {
		req.Header.Set(name, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		if _, ok := request.Body.(string); !ok {
			req.Header.Set("Content-Type", pact.MediaTypeJSON)
		}
	}

	res, err := r.client.Do(req)
	if err != nil {
		return pact.ActualResponse{}, pact.NewNetworkError(request.Method+" "+target, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return pact.ActualResponse{}, pact.NewNetworkError(request.Method+" "+target, err)
	}
	return pact.ActualResponse{
		Status:  res.StatusCode,
		Headers: res.Header,
		Body:    data,
	}, nil
}

func (r *Runner) publishResults(ctx context.Context, contract Contract, report ContractReport) error {
	results := broker.VerificationResults{
		Success:                    report.Passed(),
		ProviderApplicationVersion: r.config.ProviderVersion,
		VerifiedBy: broker.VerifiedBy{
			Implementation: implementation,
			Version:        Version,
		},
	}
	for _, result := range report.Results {
		testResult := broker.TestResult{
			InteractionID: result.InteractionID,
			Description:   result.Description,
			Success:       result.Passed,
		}
		if !result.Passed {
			testResult.Mismatches = append(testResult.Mismatches, result.Reason)
			for _, m := range result.Mismatches {
				testResult.Mismatches = append(testResult.Mismatches, m.String())
			}
		}
		results.TestResults = append(results.TestResults, testResult)
	}

	log.WithFields(log.Fields{
		"consumer": contract.Consumer.Name,
		"stage":    stagePublishResults,
		"success":  results.Success,
	}).Info("publishing verification results")
	return r.publisher.PublishVerificationResults(ctx, contract.PublishResultsURL, results)
}
