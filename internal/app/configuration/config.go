package configuration

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	fallbackVersion = "1.0.0"
	fallbackBranch  = "main"
)

type Config struct {
	BrokerURL       string        `env:"PACT_BROKER_URL,default=http://localhost:9292"`
	BrokerUsername  string        `env:"PACT_BROKER_USERNAME,default=pactbroker"`
	BrokerPassword  string        `env:"PACT_BROKER_PASSWORD,default=pactbroker"`
	SyncServiceURL  string        `env:"SYNC_SERVICE_URL,default=http://localhost:5000"`
	PublishToBroker bool          `env:"PUBLISH_TO_BROKER,default=true"`
	Port            int           `env:"PORT,default=5000"`
	AppVersion      string        `env:"APP_VERSION"` // defaults to the short git commit
	AppBranch       string        `env:"APP_BRANCH"`  // defaults to the current git branch
	PactDir         string        `env:"PACT_DIR,default=pacts"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT,default=5s"`

	// Release reported by the sync-service on /version, independent of the pacticipant version.
	ServiceVersion string `env:"SERVICE_VERSION,default=1.0.0"`
	ServiceBuild   string `env:"SERVICE_BUILD,default=20240101-abc123"`
}

func NewFromEnv() (Config, error) {
	return newFromLookuper(context.Background(), envconfig.OsLookuper())
}

func newFromLookuper(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var config Config
	err := envconfig.ProcessWith(ctx, &config, lookuper)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}

	if config.AppVersion == "" {
		config.AppVersion = gitOrDefault(fallbackVersion, "rev-parse", "--short", "HEAD")
	}
	if config.AppBranch == "" {
		config.AppBranch = gitOrDefault(fallbackBranch, "rev-parse", "--abbrev-ref", "HEAD")
	}
	return config, nil
}

func gitOrDefault(fallback string, args ...string) string {
	out, err := git(args...)
	if err != nil || out == "" || out == "HEAD" {
		log.WithField("fallback", fallback).Debugf("unable to resolve git %s", strings.Join(args, " "))
		return fallback
	}
	return out
}

func git(args ...string) (string, error) {
	command := exec.Command("git", args...)
	var out bytes.Buffer
	command.Stdout = &out
	if err := command.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
