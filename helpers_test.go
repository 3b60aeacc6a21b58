package fieldstab

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	testRows = 360
	testCols = 480
)

var (
	// BGR colours; the first three fall inside the default grass band
	grassLight = gocv.NewScalar(40, 150, 40, 0)
	grassDark  = gocv.NewScalar(30, 110, 30, 0)
	grassPale  = gocv.NewScalar(60, 190, 70, 0)
	crowdGray  = gocv.NewScalar(120, 120, 120, 0)
	kitRed     = gocv.NewScalar(30, 30, 200, 0)
)

func solidFrame(t *testing.T, rows, cols int, s gocv.Scalar) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	m.SetTo(s)
	t.Cleanup(func() { m.Close() })
	return m
}

// fieldTexture paints random grass-shaded blocks over a rows x cols frame.
func fieldTexture(rows, cols int, seed int64) gocv.Mat {
	const block = 12
	shades := []gocv.Scalar{grassLight, grassDark, grassPale}
	rnd := rand.New(rand.NewSource(seed))

	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	for y := 0; y < rows; y += block {
		for x := 0; x < cols; x += block {
			fillRect(&m, image.Rect(x, y, x+block, y+block), shades[rnd.Intn(len(shades))])
		}
	}
	return m
}

// shiftedPair returns two textured frames where the content of current sits k
// pixels to the right of where it was in previous.
func shiftedPair(t *testing.T, k int) (gocv.Mat, gocv.Mat) {
	t.Helper()
	wide := fieldTexture(testRows, testCols+k, 7)
	defer wide.Close()

	prevRegion := wide.Region(image.Rect(k, 0, k+testCols, testRows))
	previous := prevRegion.Clone()
	prevRegion.Close()

	currRegion := wide.Region(image.Rect(0, 0, testCols, testRows))
	current := currRegion.Clone()
	currRegion.Close()

	t.Cleanup(func() {
		previous.Close()
		current.Close()
	})
	return previous, current
}

func requireMaskValue(t *testing.T, m gocv.Mat, x, y int, want uint8) {
	t.Helper()
	require.Equalf(t, want, m.GetUCharAt(y, x), "mask value at (%d,%d)", x, y)
}

// countInRect counts the set pixels of a mask within r.
func countInRect(m gocv.Mat, r image.Rectangle) int {
	region := m.Region(r)
	defer region.Close()
	return gocv.CountNonZero(region)
}

// matsEqual reports whether a and b have identical size and pixels.
func matsEqual(t *testing.T, a, b gocv.Mat) bool {
	t.Helper()
	if !sameSize(a, b) || a.Type() != b.Type() {
		return false
	}
	return differingPixels(t, a, b) == 0
}

func differingPixels(t *testing.T, a, b gocv.Mat) int {
	t.Helper()
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	// one channel per column so that a change in any channel counts
	flat := diff.Reshape(1, diff.Rows())
	defer flat.Close()
	return gocv.CountNonZero(flat)
}
