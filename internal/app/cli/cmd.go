package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/form3tech-oss/sync-pact/internal/app/broker"
	"github.com/form3tech-oss/sync-pact/internal/app/configuration"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/form3tech-oss/sync-pact/internal/app/verifier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess    = verifier.ExitCodePassed
	ExitError      = 1
	ExitRegression = verifier.ExitCodeRegression
)

const toolName = "pactctl"

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode maps an error returned by a command onto the process exit code.
func ExitCode(err error) int {
	var exit *exitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exit):
		return exit.code
	case errors.Is(err, verifier.ErrRegressionDetected):
		return ExitRegression
	default:
		return ExitError
	}
}

type options struct {
	config  configuration.Config
	out     io.Writer
	verbose bool
}

func (o *options) brokerClient() *broker.Client {
	return broker.NewClient(broker.Config{
		URL:      o.config.BrokerURL,
		Username: o.config.BrokerUsername,
		Password: o.config.BrokerPassword,
		Timeout:  o.config.HTTPTimeout,
	})
}

// NewRootCommand builds pactctl with defaults taken from config.
func NewRootCommand(config configuration.Config, out io.Writer) *cobra.Command {
	o := &options{config: config, out: out}

	rootCmd := &cobra.Command{
		Use:           toolName + " <command>",
		Short:         "Publish and verify consumer contracts of the sync-service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "make the operation more talkative")
	rootCmd.PersistentFlags().StringVar(&o.config.BrokerURL, "broker-url", config.BrokerURL,
		"the pact broker base URL, can be overridden by env PACT_BROKER_URL.")
	rootCmd.PersistentFlags().StringVar(&o.config.BrokerUsername, "broker-username", config.BrokerUsername,
		"the pact broker username.")
	rootCmd.PersistentFlags().StringVar(&o.config.BrokerPassword, "broker-password", config.BrokerPassword,
		"the pact broker password.")
	rootCmd.PersistentFlags().DurationVarP(&o.config.HTTPTimeout, "timeout", "t", config.HTTPTimeout,
		"the maximum time allowed for each request.")

	newPublishCommand(rootCmd, o)
	newVerifyCommand(rootCmd, o)
	return rootCmd
}

func StopAndExit(code int, args ...interface{}) {
	if len(args) == 0 {
		os.Exit(code)
	}

	if code == ExitSuccess {
		fmt.Fprintln(os.Stdout, args...)
	} else {
		fmt.Fprintln(os.Stderr, args...)
	}
	os.Exit(code)
}

// Execute runs the command line and returns the exit code.
func Execute(config configuration.Config, out io.Writer, args []string) int {
	rootCmd := NewRootCommand(config, out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err != nil {
		log.Error(err)
	}
	return ExitCode(err)
}

func Run() {
	config, err := configuration.NewFromEnv()
	if err != nil {
		StopAndExit(ExitError, err)
	}

	code := Execute(config, os.Stdout, os.Args[1:])
	StopAndExit(code)
}

func infrastructureError(err error) error {
	if errors.Is(err, pact.ErrSchemaValidation) || errors.Is(err, pact.ErrNetworkUnavailable) || errors.Is(err, broker.ErrBrokerAuth) {
		return &exitError{code: ExitError, err: err}
	}
	return err
}
