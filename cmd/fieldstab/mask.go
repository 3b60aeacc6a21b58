package main

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/genert/fieldstab"
)

func newMaskCommand(opts *rootOptions) *cobra.Command {
	var outDir string
	var scale int
	var bordered bool

	cmd := &cobra.Command{
		Use:   "mask <image>",
		Short: "Write the stabilization and singularity masks of a still frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			frame := gocv.IMRead(args[0], gocv.IMReadColor)
			defer frame.Close()
			if frame.Empty() {
				return errors.Errorf("can't read image %s", args[0])
			}

			var offset image.Point
			if bordered {
				offset = cfg.BorderOffset()
			}
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			pipelines := map[string]*fieldstab.MaskPipeline{
				"stabilization": fieldstab.StabilizationPipeline(cfg, offset),
				"singularity":   fieldstab.SingularityPipeline(cfg),
			}
			for name, p := range pipelines {
				mask, display, err := p.Visualize(frame)
				if err != nil {
					return errors.Wrapf(err, "%s mask", name)
				}
				files := map[string]gocv.Mat{
					fmt.Sprintf("%s_%s_mask.png", base, name):    fieldstab.ScaleGray(mask, scale),
					fmt.Sprintf("%s_%s_display.png", base, name): fieldstab.ScaleColor(display, scale),
				}
				mask.Close()
				display.Close()
				for file, img := range files {
					path := filepath.Join(outDir, file)
					ok := gocv.IMWrite(path, img)
					img.Close()
					if !ok {
						return errors.Errorf("can't write %s", path)
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the masks to")
	cmd.Flags().BoolVar(&bordered, "bordered", false, "The image already carries the configured black border")
	cmd.Flags().IntVar(&scale, "scale", 1, "Integer downscale factor of the written images")
	return cmd
}
