package fieldstab

import "gocv.io/x/gocv"

// DetectBackground classifies the pixels of a BGR frame whose HSV colour falls in r.
// It is a per-pixel heuristic: a player wearing a kit inside the grass band is
// reported as background.
func DetectBackground(frame gocv.Mat, r HSVRange) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	lower := gocv.NewScalar(r.Low[0], r.Low[1], r.Low[2], 0)
	upper := gocv.NewScalar(r.High[0], r.High[1], r.High[2], 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)
	return mask
}
