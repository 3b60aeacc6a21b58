package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/genert/fieldstab/trajectory"
)

func newPlotCommand(opts *rootOptions) *cobra.Command {
	var dbPath, runID, out string

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot the camera path recorded for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" && opts.settingsFile != "" {
				settings, _, err := opts.load()
				if err != nil {
					return err
				}
				dbPath = settings.TrajectoryDB
			}
			if dbPath == "" {
				return errors.New("no trajectory database given (--db or trajectory_db setting)")
			}

			store, err := trajectory.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if runID == "" {
				runs, err := store.Runs(ctx)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return errors.Errorf("no run recorded in %s", dbPath)
				}
				runID = runs[0]
			}

			samples, err := store.Samples(ctx, runID)
			if err != nil {
				return err
			}
			if err := trajectory.PlotPath(samples, "run "+runID, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d frames of run %s plotted to %s\n", len(samples), runID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Trajectory SQLite file")
	cmd.Flags().StringVar(&runID, "run", "", "Run id (defaults to the most recent run)")
	cmd.Flags().StringVarP(&out, "out", "o", "trajectory.png", "Output image")
	return cmd
}
