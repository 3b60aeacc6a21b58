package fieldstab

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Border wraps frame in a black margin: the result is (cols+width)x(rows+height) with
// frame copied at (width/2, height/2).
func Border(frame gocv.Mat, width, height int) gocv.Mat {
	out := zeroMat(frame.Rows()+height, frame.Cols()+width, frame.Type())
	at := image.Rect(width/2, height/2, width/2+frame.Cols(), height/2+frame.Rows())
	region := out.Region(at)
	frame.CopyTo(&region)
	region.Close()
	return out
}

// Crop undoes Border: it returns a copy of the original-sized centre of a frame
// bordered with the same width and height.
func Crop(bordered gocv.Mat, width, height int) gocv.Mat {
	r := image.Rect(width/2, height/2, bordered.Cols()-(width-width/2), bordered.Rows()-(height-height/2))
	region := bordered.Region(r)
	defer region.Close()
	return region.Clone()
}

// Condition replaces the regions excluded by the stabilization mask with a box-blurred
// version of themselves. The mask is blurred too, so the cut-out fades in instead of
// leaving a hard edge the estimator could lock onto. frame is expected to be bordered
// with cfg's border; the overlay panel is moved accordingly.
func Condition(frame gocv.Mat, cfg Config) (gocv.Mat, error) {
	mask, err := BuildStabilizationMask(frame, cfg, cfg.BorderOffset())
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "condition")
	}
	defer mask.Close()

	ksize := image.Pt(cfg.BlurSize, cfg.BlurSize)
	blurredMask := gocv.NewMat()
	defer blurredMask.Close()
	gocv.Blur(mask, &blurredMask, ksize)

	blurredFrame := gocv.NewMat()
	defer blurredFrame.Close()
	gocv.Blur(frame, &blurredFrame, ksize)

	selected := gocv.NewMat()
	defer selected.Close()
	gocv.Threshold(blurredMask, &selected, 0, 255, gocv.ThresholdBinary)

	out := frame.Clone()
	blurredFrame.CopyToWithMask(&out, selected)
	return out, nil
}
