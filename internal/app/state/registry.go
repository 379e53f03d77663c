package state

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownState is returned when a provider state has no registered handler.
var ErrUnknownState = errors.New("unknown provider state")

// Name of a provider state, e.g. "sync-service is running".
type Name string

// SetupFunc places the provider in a state and returns the canned payload for it.
type SetupFunc func() (interface{}, error)

// Registry maps provider state names to their setup functions.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Name]SetupFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[Name]SetupFunc{}}
}

// Register replaces any handler previously registered under name.
func (r *Registry) Register(name Name, setup SetupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = setup
}

func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Activate runs the handler registered for state.
func (r *Registry) Activate(_ context.Context, consumer, state string) (interface{}, error) {
	r.mu.RLock()
	setup, ok := r.handlers[Name(state)]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownState, "%q", state)
	}

	log.WithFields(log.Fields{
		"consumer": consumer,
		"state":    state,
	}).Info("activating provider state")

	payload, err := setup()
	if err != nil {
		return nil, errors.Wrapf(err, "provider state %q", state)
	}
	return payload, nil
}
