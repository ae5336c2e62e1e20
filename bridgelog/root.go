package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/itohio/gobridge/pkg/config"
	"github.com/itohio/gobridge/pkg/log"
)

const (
	ConfigOptionName   = "config"
	LogLevelOptionName = "log-level"
)

// rootOptions carries the persistent flags and the loaded configuration to
// the subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "bridgelog",
		Short:         "Log a Wheatstone bridge through an ADS1263 converter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			if err := log.Init(cmd.ErrOrStderr(), cfg.Log.Level); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&opts.configPath, ConfigOptionName, "config.yaml", "Configuration file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newProbeCommand(opts))
	cmd.AddCommand(newExportCommand())
	return cmd
}
