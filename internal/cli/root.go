// Package cli implements the foodvoice command line.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded in PersistentPreRunE
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foodvoice",
		Short: "foodvoice: order food by talking to it",
		Long:  "foodvoice runs a voice assistant that finds nearby restaurants, confirms an order with you and places it on a delivery platform.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			log, logCloser, err = newLogger()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.foodvoice/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newOrderCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// newLogger builds the root logger from the logging section of the config
// file, with --log-level taking precedence. A broken config file still
// yields a usable logger; commands that need the config report the error.
func newLogger() (*logging.Logger, io.Closer, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		cfg = config.Defaults()
	}
	opts := logging.Options{
		Level: cfg.Logging.Level,
		Style: cfg.Logging.ConsoleStyle,
		File:  cfg.Logging.File,
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	return logging.NewWithOptions(opts)
}

// loadConfig loads and validates the config file, applying flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
