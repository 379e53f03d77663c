package cli

import (
	"fmt"

	"github.com/form3tech-oss/sync-pact/internal/app/broker"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/spf13/cobra"
)

type publishOptions struct {
	*options
	consumerVersion string
	branch          string
}

func newPublishCommand(parent *cobra.Command, o *options) *cobra.Command {
	p := &publishOptions{options: o}
	cmd := &cobra.Command{
		Use:   "publish <pact file>... [options]",
		Short: "Publish consumer pact files to the pact broker",
		Args:  cobra.MinimumNArgs(1),
		RunE:  p.run,
	}
	cmd.Flags().StringVar(&p.consumerVersion, "consumer-version", o.config.AppVersion,
		"the consumer version to publish, defaults to the short git commit.")
	cmd.Flags().StringVar(&p.branch, "branch", o.config.AppBranch,
		"the consumer branch, defaults to the current git branch.")

	parent.AddCommand(cmd)
	return cmd
}

func (p *publishOptions) run(cmd *cobra.Command, args []string) error {
	publisher := broker.NewPublisher(p.brokerClient())
	for _, file := range args {
		contract, err := pact.LoadFile(file)
		if err != nil {
			return infrastructureError(err)
		}
		if err := publisher.Publish(cmd.Context(), contract, p.consumerVersion, p.branch); err != nil {
			return infrastructureError(err)
		}
		fmt.Fprintf(p.out, "published %s version %s\n", contract.FileName(), p.consumerVersion)
	}
	return nil
}
