// Package cli holds the monnet command tree.
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"monnet/internal/agent"
	"monnet/internal/config"
	"monnet/internal/engine"
	"monnet/internal/store"
)

type options struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "monnet",
		Short: "monnet host agent",
		Long: `monnet watches load, memory, disks, iowait and listening ports, reports
changes to the monnet server and raises threshold events.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "agent config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(config.Version)
		},
	}
}

// logger builds the process logger. Local commands log to stderr so stdout
// stays free for reports and the MCP stdio transport.
func (o *options) logger(cfg config.Config, w io.Writer) *slog.Logger {
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return agent.BuildLogger(level, cfg.LogFormat, w)
}

// localConfig is used by the commands that never talk to the server: the
// identity fields may be empty and a missing file means defaults.
func (o *options) localConfig() (config.Config, error) {
	cfg, err := config.Read(o.configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Read("")
	}
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return config.Config{}, &config.ConfigError{Field: "thresholds", Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// localProcessor builds an engine over a fresh store.
func localProcessor(cfg config.Config, logger *slog.Logger, opts ...store.Option) *engine.Processor {
	st := store.New(logger, opts...)
	return engine.NewProcessor(st, engine.NewDeduplicator(cfg.Expiration()), cfg.Thresholds, logger)
}
