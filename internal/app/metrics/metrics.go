package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pact"

const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"

	OutcomePassed        = "passed"
	OutcomeFailed        = "failed"
	OutcomePendingFailed = "pending_failed"
)

var (
	MockRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mock",
		Name:      "requests_total",
		Help:      "Requests received by mock providers, by outcome.",
	}, []string{"provider", "outcome"})

	VerifiedInteractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "interactions_total",
		Help:      "Interactions replayed against the provider, by outcome.",
	}, []string{"consumer", "provider", "outcome"})

	ProviderStates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "state_activations_total",
		Help:      "Provider state setup requests, by state and result.",
	}, []string{"state", "result"})
)
