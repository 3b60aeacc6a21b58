package fieldstab

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var axisColor = color.RGBA{R: 255, G: 50, B: 50}

// Blend Averages previous and stabilized frames, a cheap view of how well they line up
func Blend(previous, stabilized gocv.Mat) (gocv.Mat, error) {
	if !sameSize(previous, stabilized) {
		return gocv.NewMat(), ErrDimensionMismatch
	}
	out := gocv.NewMat()
	gocv.AddWeighted(previous, 0.5, stabilized, 0.5, 0, &out)
	return out, nil
}

// ScaleGray Reduces a single channel frame by an integer factor, each output pixel
// being the mean of a scale x scale block
func ScaleGray(frame gocv.Mat, scale int) gocv.Mat {
	return scaleDown(frame, scale)
}

// ScaleColor Same as ScaleGray for 3-channel frames
func ScaleColor(frame gocv.Mat, scale int) gocv.Mat {
	return scaleDown(frame, scale)
}

func scaleDown(frame gocv.Mat, scale int) gocv.Mat {
	out := gocv.NewMat()
	if scale <= 1 {
		frame.CopyTo(&out)
		return out
	}
	size := image.Pt(frame.Cols()/scale, frame.Rows()/scale)
	if size.X == 0 || size.Y == 0 {
		return out
	}
	gocv.Resize(frame, &out, size, 0, 0, gocv.InterpolationArea)
	return out
}

// DrawAxis Draws the vertical and horizontal center lines of frame
func DrawAxis(frame *gocv.Mat) {
	w, h := frame.Cols(), frame.Rows()
	gocv.Line(frame, image.Pt(w/2, 0), image.Pt(w/2, h), axisColor, 2)
	gocv.Line(frame, image.Pt(0, h/2), image.Pt(w, h/2), axisColor, 2)
}

// tintRegion applies t to display wherever mask is set.
func tintRegion(display *gocv.Mat, mask gocv.Mat, t Tint) {
	if t == (Tint{}) || gocv.CountNonZero(mask) == 0 {
		return
	}
	channels := gocv.Split(*display)
	defer closeAll(channels)
	for i := range channels {
		if i >= len(t.Gain) {
			break
		}
		scaled := gocv.NewMat()
		channels[i].ConvertToWithParams(&scaled, gocv.MatTypeCV8U, float32(t.Gain[i]), float32(t.Offset[i]))
		channels[i].Close()
		channels[i] = scaled
	}

	tinted := gocv.NewMat()
	defer tinted.Close()
	gocv.Merge(channels, &tinted)
	tinted.CopyToWithMask(display, mask)
}
