package fieldstab

import (
	"image"

	"gocv.io/x/gocv"
)

// FixRectForOpenCV Clips rectangle to the bounds of a maxCols x maxRows matrix
// Helps to avoid ROI assertion errors when a calibrated rectangle overflows a small frame
func FixRectForOpenCV(r image.Rectangle, maxCols, maxRows int) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, maxCols, maxRows))
}

// zeroMat allocates a rows x cols matrix of the given type filled with zeros.
func zeroMat(rows, cols int, mt gocv.MatType) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, mt)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}

func sameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

// fillRect sets every pixel of r (clipped to m) to s.
func fillRect(m *gocv.Mat, r image.Rectangle, s gocv.Scalar) {
	r = FixRectForOpenCV(r, m.Cols(), m.Rows())
	if r.Empty() {
		return
	}
	region := m.Region(r)
	region.SetTo(s)
	region.Close()
}
