package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/checklist/internal/app"
	"github.com/five82/checklist/internal/config"
	"github.com/five82/checklist/internal/logging"
)

// cli holds the flags and the state built from them before a command runs.
type cli struct {
	configPath string
	logLevel   string
	poll       time.Duration

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "checklist",
		Short:         "Terminal client for System Checklist",
		Long:          "checklist browses MOPs, runs assessments and follows execution history from a terminal.\nView state per page is remembered for a day in the local state store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The TUI owns the terminal, so only the root command logs to the file.
			return c.setup(cmd.Root() == cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), app.Options{
				Config:     c.cfg,
				ConfigPath: c.configPath,
				Logger:     c.logger,
				PollEvery:  c.poll,
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file path (default ~/.config/checklist/config.toml)")
	flags.StringVar(&c.logLevel, "log-level", "", "override the configured log level")
	root.Flags().DurationVar(&c.poll, "poll", 0, "override the dashboard poll interval")

	root.AddCommand(newStateCmd(c), newLoginCmd(c), newWhoamiCmd(c), newLogoutCmd(c))
	return root
}

func (c *cli) setup(toFile bool) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		if _, err := logging.ParseLevel(c.logLevel); err != nil {
			return err
		}
		cfg.LogLevel = c.logLevel
	}

	path := ""
	if toFile {
		path = cfg.LogFile
	}
	logger, err := logging.New(path, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}
