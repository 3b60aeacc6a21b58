package fieldstab

import (
	"image"

	"gocv.io/x/gocv"
)

// Erode shrinks the set regions of mask in place with a (2*radius+1) square element.
// A pixel survives only if its whole neighbourhood is set.
func Erode(mask *gocv.Mat, radius int) {
	if radius <= 0 {
		return
	}
	kernel := squareElement(radius)
	defer kernel.Close()
	gocv.Erode(*mask, mask, kernel)
}

// Dilate grows the set regions of mask in place with a (2*radius+1) square element.
func Dilate(mask *gocv.Mat, radius int) {
	if radius <= 0 {
		return
	}
	kernel := squareElement(radius)
	defer kernel.Close()
	gocv.Dilate(*mask, mask, kernel)
}

// BorderMask returns a rows x cols mask set on a band of the given width along
// all four edges and unset inside. A band wider than half the frame covers it all.
func BorderMask(rows, cols, width int) gocv.Mat {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	mask.SetTo(gocv.NewScalar(255, 0, 0, 0))
	if width < 0 {
		width = 0
	}
	inner := image.Rect(width, width, cols-width, rows-width)
	if inner.Dx() > 0 && inner.Dy() > 0 {
		fillRect(&mask, inner, gocv.NewScalar(0, 0, 0, 0))
	}
	return mask
}

func squareElement(radius int) gocv.Mat {
	side := 2*radius + 1
	return gocv.GetStructuringElement(gocv.MorphRect, image.Pt(side, side))
}
