package fieldstab

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

const singularDet = 1e-9

// Transform 2x3 affine matrix mapping previous-frame coordinates to current-frame ones:
//
//	x' = A*x + B*y + TX
//	y' = C*x + D*y + TY
type Transform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the transform that maps every point onto itself.
func Identity() Transform {
	return Transform{A: 1, D: 1}
}

// NewTranslation returns a pure translation.
func NewTranslation(tx, ty float64) Transform {
	return Transform{A: 1, D: 1, TX: tx, TY: ty}
}

// Apply maps (x, y) through t.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.TX, t.C*x + t.D*y + t.TY
}

// Translation returns the translation component.
func (t Transform) Translation() (float64, float64) {
	return t.TX, t.TY
}

// Rotation returns the rotation angle in radians.
func (t Transform) Rotation() float64 {
	return math.Atan2(t.C, t.A)
}

// Scale returns the scale factor of the first column.
func (t Transform) Scale() float64 {
	return math.Hypot(t.A, t.C)
}

func (t Transform) det() float64 {
	return t.A*t.D - t.B*t.C
}

// Valid reports whether t is finite and invertible.
func (t Transform) Valid() bool {
	for _, v := range []float64{t.A, t.B, t.TX, t.C, t.D, t.TY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(t.det()) > singularDet
}

// Compose returns the transform applying t first and then next.
func (t Transform) Compose(next Transform) Transform {
	var out mat.Dense
	out.Mul(next.homogeneous(), t.homogeneous())
	return fromHomogeneous(&out)
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() (Transform, error) {
	if !t.Valid() {
		return Transform{}, errors.Wrapf(ErrNoTransform, "invert %s", t)
	}
	var inv mat.Dense
	if err := inv.Inverse(t.homogeneous()); err != nil {
		return Transform{}, errors.Wrapf(err, "invert %s", t)
	}
	return fromHomogeneous(&inv), nil
}

func (t Transform) String() string {
	return fmt.Sprintf("[%.4f %.4f %.2f; %.4f %.4f %.2f]", t.A, t.B, t.TX, t.C, t.D, t.TY)
}

func (t Transform) homogeneous() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.A, t.B, t.TX,
		t.C, t.D, t.TY,
		0, 0, 1,
	})
}

func fromHomogeneous(m mat.Matrix) Transform {
	return Transform{
		A: m.At(0, 0), B: m.At(0, 1), TX: m.At(0, 2),
		C: m.At(1, 0), D: m.At(1, 1), TY: m.At(1, 2),
	}
}

// rebase expresses t, estimated on frames carrying a border offset, in the
// coordinates of the unbordered frames.
func (t Transform) rebase(ox, oy float64) Transform {
	return NewTranslation(ox, oy).Compose(t).Compose(NewTranslation(-ox, -oy))
}

// toMat returns t as a 2x3 CV_64F matrix.
func (t Transform) toMat() gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	vals := [2][3]float64{{t.A, t.B, t.TX}, {t.C, t.D, t.TY}}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, vals[r][c])
		}
	}
	return m
}

// transformFromMat reads a 2x3 CV_64F or CV_32F matrix.
func transformFromMat(m gocv.Mat) (Transform, error) {
	if m.Empty() || m.Rows() != 2 || m.Cols() != 3 {
		return Transform{}, errors.Wrapf(ErrNoTransform, "unexpected %dx%d matrix", m.Rows(), m.Cols())
	}
	at := func(r, c int) float64 { return m.GetDoubleAt(r, c) }
	switch m.Type() {
	case gocv.MatTypeCV64F:
	case gocv.MatTypeCV32F:
		at = func(r, c int) float64 { return float64(m.GetFloatAt(r, c)) }
	default:
		return Transform{}, errors.Wrapf(ErrNoTransform, "unexpected matrix type %v", m.Type())
	}
	return Transform{
		A: at(0, 0), B: at(0, 1), TX: at(0, 2),
		C: at(1, 0), D: at(1, 1), TY: at(1, 2),
	}, nil
}
