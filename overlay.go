package fieldstab

import (
	"image"

	"gocv.io/x/gocv"
)

// DetectOverlayPanel marks the calibrated overlay rectangle, moved by offset, on a
// mask sized like frame. The image content is never inspected.
func DetectOverlayPanel(frame gocv.Mat, panel OverlayPanel, offset image.Point) gocv.Mat {
	mask := zeroMat(frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	fillRect(&mask, panel.Rect(offset), gocv.NewScalar(255, 0, 0, 0))
	return mask
}
