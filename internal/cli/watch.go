package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"monnet/internal/collector"
	"monnet/ui/tui"
)

func newWatchCmd(opts *options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive dashboard over the local engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.localConfig()
			if err != nil {
				return err
			}
			// The dashboard owns the terminal.
			logger := opts.logger(cfg, io.Discard)

			col := collector.NewSystemCollector(collector.DefaultCollectorConfig(), logger)
			col.Connect(cmd.Context())
			defer col.Disconnect(context.WithoutCancel(cmd.Context()))

			if interval <= 0 {
				interval = cfg.Interval()
			}
			return tui.Start(tui.PipelineRunner{
				Collector: col,
				Processor: localProcessor(cfg, logger),
			}, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval; zero uses default_interval")
	return cmd
}
