package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genert/fieldstab"
)

type rootOptions struct {
	settingsFile string
	logLevel     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "fieldstab",
		Short:         "Stabilize handheld sports footage against the playing field",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.settingsFile, "settings", "c", "", "Path to application's settings (.json or .toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newMaskCommand(opts))
	rootCmd.AddCommand(newPlotCommand(opts))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// load reads settings and builds the logger they ask for.
func (o *rootOptions) load() (*fieldstab.AppSettings, *zap.Logger, error) {
	settings, err := fieldstab.NewSettings(o.settingsFile)
	if err != nil {
		return nil, nil, err
	}
	level := settings.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := fieldstab.NewLogger(level)
	if err != nil {
		return nil, nil, err
	}
	return settings, logger, nil
}

// loadConfig returns the stabilization constants, from the settings file when given.
func (o *rootOptions) loadConfig() (fieldstab.Config, error) {
	if o.settingsFile == "" {
		return fieldstab.DefaultConfig(), nil
	}
	settings, err := fieldstab.NewSettings(o.settingsFile)
	if err != nil {
		return fieldstab.Config{}, err
	}
	return settings.Stabilization, nil
}
