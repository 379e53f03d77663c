package servermanager

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxRetry     = 3
	defaultTimeout      = 5 * time.Second
	defaultStartupDelay = 3 * time.Second
)

type ReadinessConfig struct {
	URL          string
	MaxRetry     int
	Autorun      bool
	Timeout      time.Duration
	StartupDelay time.Duration
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET /version returned %d", e.status)
}

// EnsureRunning checks that the provider answers GET /version with 200, starting it through manager
// from the second attempt when Autorun is set. The returned cleanup stops a process started here.
func EnsureRunning(ctx context.Context, config ReadinessConfig, manager *Manager) (func(), error) {
	if config.MaxRetry <= 0 {
		config.MaxRetry = defaultMaxRetry
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.StartupDelay == 0 {
		config.StartupDelay = defaultStartupDelay
	}

	client := &http.Client{Timeout: config.Timeout}
	target := strings.TrimSuffix(config.URL, "/") + "/version"
	started := false
	attempt := 0

	err := retry.Do(func() error {
		defer func() { attempt++ }()
		if config.Autorun && attempt > 0 && manager != nil && !manager.Running() {
			if err := manager.Start(); err != nil {
				return retry.Unrecoverable(err)
			}
			started = true
			time.Sleep(config.StartupDelay)
		}
		return checkVersion(ctx, client, target)
	},
		retry.Context(ctx),
		retry.Attempts(uint(config.MaxRetry)),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var status *statusError
			return config.Autorun || errors.As(err, &status)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WithField("attempt", n+1).Infof("provider not ready: %s", err)
		}),
	)

	cleanup := func() {
		if started {
			if err := manager.Stop(); err != nil {
				log.Error(err)
			}
		}
	}
	if err != nil {
		cleanup()
		return nil, errors.Wrapf(err, "provider service at %s is not running or not accessible", config.URL)
	}
	return cleanup, nil
}

func checkVersion(ctx context.Context, client *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return pact.NewNetworkError("GET "+target, err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return &statusError{status: res.StatusCode}
	}
	return nil
}
