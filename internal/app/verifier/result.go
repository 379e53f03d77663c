package verifier

import (
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	ExitCodePassed     = 0
	ExitCodeRegression = 2
)

var ErrRegressionDetected = errors.New("contract regression detected")

const (
	ReasonUnknownState = "unknown provider state"
	ReasonStateFailed  = "provider state setup failed"
	ReasonUnreachable  = "unreachable"
	ReasonMismatch     = "response does not match contract"
)

// Result is the outcome of replaying one interaction. It is never modified once created.
type Result struct {
	ID              uuid.UUID       `json:"id"`
	ContractID      string          `json:"contractId"`
	InteractionID   string          `json:"interactionId"`
	Consumer        string          `json:"consumer"`
	Provider        string          `json:"provider"`
	Description     string          `json:"description"`
	ProviderState   string          `json:"providerState,omitempty"`
	Passed          bool            `json:"passed"`
	Pending         bool            `json:"pending"`
	Reason          string          `json:"reason,omitempty"`
	Mismatches      []pact.Mismatch `json:"mismatches,omitempty"`
	ProviderVersion string          `json:"providerVersion"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ContractReport holds the results of one contract in interaction order.
type ContractReport struct {
	Consumer   string   `json:"consumer"`
	Provider   string   `json:"provider"`
	ContractID string   `json:"contractId"`
	Source     string   `json:"source"`
	Pending    bool     `json:"pending"`
	Results    []Result `json:"results"`
}

func (c ContractReport) Passed() bool {
	for _, r := range c.Results {
		if !r.Passed {
			return false
		}
	}
	return true
}

type Summary struct {
	InteractionCount int `json:"interaction_count"`
	FailureCount     int `json:"failure_count"`
	PendingCount     int `json:"pending_count"`
}

type Report struct {
	Contracts []ContractReport `json:"contracts"`
}

// Regressions are the failed interactions of non-pending contracts.
func (r *Report) Regressions() []Result {
	var regressions []Result
	for _, c := range r.Contracts {
		for _, result := range c.Results {
			if !result.Passed && !result.Pending {
				regressions = append(regressions, result)
			}
		}
	}
	return regressions
}

func (r *Report) Summary() Summary {
	var s Summary
	for _, c := range r.Contracts {
		for _, result := range c.Results {
			s.InteractionCount++
			switch {
			case result.Passed:
			case result.Pending:
				s.PendingCount++
			default:
				s.FailureCount++
			}
		}
	}
	return s
}

// ExitCode is zero when every failure belongs to a pending contract.
func (r *Report) ExitCode() int {
	if len(r.Regressions()) > 0 {
		return ExitCodeRegression
	}
	return ExitCodePassed
}

func (r *Report) Err() error {
	regressions := r.Regressions()
	if len(regressions) == 0 {
		return nil
	}
	return errors.Wrapf(ErrRegressionDetected, "%d interaction(s) failed, first: '%s' (%s)",
		len(regressions), regressions[0].InteractionID, regressions[0].Reason)
}
