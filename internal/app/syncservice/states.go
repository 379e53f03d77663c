package syncservice

import (
	"github.com/form3tech-oss/sync-pact/internal/app/state"
	"github.com/form3tech-oss/sync-pact/pkg/syncclient"
)

const StateRunning state.Name = "sync-service is running"

// RunningVersion is the canned version payload of the running state.
var RunningVersion = syncclient.VersionResponse{
	Service:   ServiceName,
	Version:   "1.0.0",
	Build:     "20240101-abc123",
	Timestamp: "2025-07-24T15:43:24.204757Z",
}

// NewStates registers the provider states the sync-service supports.
func NewStates() *state.Registry {
	registry := state.NewRegistry()
	registry.Register(StateRunning, func() (interface{}, error) {
		return RunningVersion, nil
	})
	return registry
}
