package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/form3tech-oss/sync-pact/internal/app/servermanager"
	"github.com/form3tech-oss/sync-pact/internal/app/state"
	"github.com/form3tech-oss/sync-pact/internal/app/verifier"
	"github.com/spf13/cobra"
)

type verifyOptions struct {
	*options
	provider       string
	providerURL    string
	pactFiles      []string
	publishResults bool
	enablePending  bool
	maxRetry       int
	autorunCommand string
	output         string
}

func newVerifyCommand(parent *cobra.Command, o *options) *cobra.Command {
	v := &verifyOptions{options: o}
	cmd := &cobra.Command{
		Use:   "verify [options]",
		Short: "Verify the provider against its consumer contracts",
		Args:  cobra.NoArgs,
		RunE:  v.run,
	}
	cmd.Flags().StringVar(&v.provider, "provider", "sync-provider", "the provider name.")
	cmd.Flags().StringVar(&v.providerURL, "provider-url", o.config.SyncServiceURL,
		"the provider base URL, can be overridden by env SYNC_SERVICE_URL.")
	cmd.Flags().StringSliceVar(&v.pactFiles, "pact", nil,
		"verify local pact files or directories instead of fetching from the broker.")
	cmd.Flags().BoolVar(&v.publishResults, "publish-results", o.config.PublishToBroker,
		"publish verification results to the broker.")
	cmd.Flags().BoolVar(&v.enablePending, "enable-pending", true,
		"failures of pending contracts do not fail the verification.")
	cmd.Flags().IntVar(&v.maxRetry, "max-retry", 3, "readiness checks before giving up on the provider.")
	cmd.Flags().StringVar(&v.autorunCommand, "autorun", "",
		"command starting the provider when it is not running.")
	cmd.Flags().StringVarP(&v.output, "output", "o", "text", "output format, text or json.")

	parent.AddCommand(cmd)
	return cmd
}

func (v *verifyOptions) source() verifier.ContractSource {
	if len(v.pactFiles) > 0 {
		return &verifier.FileSource{Paths: v.pactFiles}
	}
	return &verifier.BrokerSource{
		Client:         v.brokerClient(),
		EnablePending:  v.enablePending,
		ProviderBranch: v.config.AppBranch,
	}
}

func (v *verifyOptions) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var manager *servermanager.Manager
	if fields := strings.Fields(v.autorunCommand); len(fields) > 0 {
		manager = servermanager.NewManager(fields[0], fields[1:]...)
	}
	cleanup, err := servermanager.EnsureRunning(ctx, servermanager.ReadinessConfig{
		URL:      v.providerURL,
		MaxRetry: v.maxRetry,
		Autorun:  manager != nil,
		Timeout:  v.config.HTTPTimeout,
	}, manager)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	defer cleanup()

	runnerOptions := []verifier.Option{}
	if len(v.pactFiles) == 0 {
		runnerOptions = append(runnerOptions, verifier.WithResultsPublisher(v.brokerClient()))
	}
	runner := verifier.NewRunner(verifier.Config{
		Provider:        v.provider,
		ProviderBaseURL: v.providerURL,
		ProviderVersion: v.config.AppVersion,
		ProviderBranch:  v.config.AppBranch,
		PublishResults:  v.publishResults,
		Timeout:         v.config.HTTPTimeout,
	}, v.source(), state.NewHTTPActivator(strings.TrimSuffix(v.providerURL, "/")+"/_pact/provider_states", v.config.HTTPTimeout), runnerOptions...)

	report, err := runner.Run(ctx)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	if err := v.print(report); err != nil {
		return err
	}
	return report.Err()
}

func (v *verifyOptions) print(report *verifier.Report) error {
	if v.output == "json" {
		encoder := json.NewEncoder(v.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	for _, c := range report.Contracts {
		pending := ""
		if c.Pending {
			pending = " (pending)"
		}
		fmt.Fprintf(v.out, "%s -> %s%s\n", c.Consumer, c.Provider, pending)
		for _, r := range c.Results {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(v.out, "  %s %s\n", status, r.InteractionID)
			if !r.Passed {
				fmt.Fprintf(v.out, "       %s\n", r.Reason)
				for _, m := range r.Mismatches {
					fmt.Fprintf(v.out, "       %s\n", m.String())
				}
			}
		}
	}
	summary := report.Summary()
	fmt.Fprintf(v.out, "%d interactions, %d failures, %d pending\n",
		summary.InteractionCount, summary.FailureCount, summary.PendingCount)
	return nil
}
