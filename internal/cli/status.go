package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"monnet/internal/collector"
	"monnet/internal/output"
	"monnet/ui/console"
)

func newStatusCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Collect once and print the evaluated report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.localConfig()
			if err != nil {
				return err
			}
			logger := opts.logger(cfg, cmd.ErrOrStderr())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			col := collector.NewSystemCollector(collector.DefaultCollectorConfig(), logger)
			col.Connect(ctx)
			defer col.Disconnect(context.WithoutCancel(ctx))

			payload, err := output.RunPipeline(ctx, col, localProcessor(cfg, logger), time.Now())
			if err != nil {
				return err
			}
			console.Print(cmd.OutOrStdout(), payload.View)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "collection deadline")
	return cmd
}
