package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"monnet/internal/collector"
	"monnet/internal/config"
	"monnet/internal/database"
	"monnet/internal/mcpserver"
	"monnet/internal/store"
)

func newMCPCmd(opts *options) *cobra.Command {
	var (
		datastore string
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the local engine as MCP tools on stdio",
		Long: `mcp runs its own engine and exposes it to MCP clients. With --datastore the
fired events are kept in DuckDB and recent_events reads from it. The datastore
must not be the one a running agent holds open.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.localConfig()
			if err != nil {
				return err
			}
			logger := opts.logger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			col := collector.NewSystemCollector(collector.DefaultCollectorConfig(), logger)
			col.Connect(ctx)
			defer col.Disconnect(context.WithoutCancel(ctx))

			srvCfg := mcpserver.Config{
				ServerName:    "monnet",
				ServerVersion: config.Version,
				Interval:      interval,
				Logger:        logger,
			}
			var storeOpts []store.Option
			if datastore != "" {
				p, err := database.Open(ctx, datastore, logger)
				if err != nil {
					return fmt.Errorf("open datastore: %w", err)
				}
				defer p.Close()
				restored, err := p.Restore(ctx)
				if err != nil {
					return fmt.Errorf("restore datastore: %w", err)
				}
				if err := p.Start(ctx); err != nil {
					return err
				}
				defer p.Stop()
				srvCfg.History = p.Repository()
				srvCfg.Recorder = p
				storeOpts = append(storeOpts, store.WithPersister(p), store.WithSnapshots(restored))
			}

			srv := mcpserver.NewServer(srvCfg, col, localProcessor(cfg, logger, storeOpts...))
			defer srv.Close()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&datastore, "datastore", "", "DuckDB file for event history")
	cmd.Flags().DurationVar(&interval, "interval", 0, "background cycle interval; zero disables")
	return cmd
}
