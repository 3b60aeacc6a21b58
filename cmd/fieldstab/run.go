package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genert/fieldstab"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var output string
	var trajectoryDB string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stabilize the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if output != "" {
				settings.OutputSettings.Path = output
			}
			if trajectoryDB != "" {
				settings.TrajectoryDB = trajectoryDB
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := fieldstab.NewApp(settings, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			logger.Info("fieldstab starting", zap.String("run_id", app.RunID()), zap.String("source", settings.Source))
			summary, err := app.Run(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), summary.Render())
			if err != nil {
				return err
			}
			if settings.TrajectoryDB != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "trajectory recorded as run %s in %s\n", app.RunID(), settings.TrajectoryDB)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the stabilized video to this file")
	cmd.Flags().StringVar(&trajectoryDB, "trajectory-db", "", "Record per-frame transforms in this SQLite file")
	return cmd
}
