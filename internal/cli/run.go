package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"monnet/internal/agent"
	"monnet/internal/config"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent in the foreground",
		Long:  `Run collects on the configured interval, reports to the server and persists state until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := opts.logger(cfg, os.Stdout)

			a, err := agent.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
