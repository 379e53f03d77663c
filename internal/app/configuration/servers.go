package configuration

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var servers sync.Map

type registeredServer struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// StartServer binds address and serves handler in the background.
// At most one server may be registered per address.
func StartServer(address string, handler http.Handler) (*http.Server, error) {
	if _, loaded := loadServer(address); loaded {
		return nil, errors.Errorf("server already running at %s", address)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on %s", address)
	}

	entry := &registeredServer{
		server: &http.Server{
			Addr:    address,
			Handler: handler,
		},
		listener: listener,
		done:     make(chan struct{}),
	}
	if _, loaded := servers.LoadOrStore(address, entry); loaded {
		listener.Close()
		return nil, errors.Errorf("server already running at %s", address)
	}

	go func() {
		defer close(entry.done)
		if err := entry.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	return entry.server, nil
}

func loadServer(address string) (*http.Server, bool) {
	entry, loaded := servers.Load(address)
	if !loaded {
		return nil, false
	}
	return entry.(*registeredServer).server, loaded
}

// ShutdownServer stops the server registered for address, if any.
// The address is free to bind again once it returns.
func ShutdownServer(ctx context.Context, address string) error {
	entry, loaded := servers.LoadAndDelete(address)
	if !loaded {
		return nil
	}
	return entry.(*registeredServer).shutdown(ctx)
}

func ShutdownAllServers(ctx context.Context) {
	servers.Range(func(key, _ interface{}) bool {
		entry, loaded := servers.LoadAndDelete(key)
		if loaded {
			if err := entry.(*registeredServer).shutdown(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})
}

func (s *registeredServer) shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	// Shutdown only closes listeners Serve has already tracked.
	if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) && err == nil {
		err = closeErr
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
