package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print gocv and OpenCV versions",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gocv version: %s\n", gocv.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "opencv lib version: %s\n", gocv.OpenCVVersion())
		},
	}
}
