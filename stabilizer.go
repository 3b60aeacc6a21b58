package fieldstab

import (
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Stabilizer Re-aligns a frame onto the previous one of the same video
type Stabilizer struct {
	cfg       Config
	estimator Estimator
	logger    *zap.Logger
}

// Result Output of one Stabilize call
type Result struct {
	// Frame is the current frame resampled into the previous frame's coordinates
	Frame gocv.Mat
	// Transform maps previous-frame coordinates to current-frame coordinates. It is
	// expressed in the unbordered frame: the estimate on bordered frames is rebased
	// so that rotations pivot about the frame's own origin.
	Transform Transform
	Elapsed   time.Duration
}

// Close releases the stabilized frame.
func (r *Result) Close() error {
	return r.Frame.Close()
}

// NewStabilizer validates cfg and returns a Stabilizer. A nil logger disables logging.
func NewStabilizer(cfg Config, estimator Estimator, logger *zap.Logger) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid stabilization config")
	}
	if estimator == nil {
		return nil, errors.New("estimator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if l, ok := estimator.(interface{ setLogger(*zap.Logger) }); ok {
		l.setLogger(logger)
	}
	return &Stabilizer{cfg: cfg, estimator: estimator, logger: logger}, nil
}

// Config returns the pipeline constants the stabilizer runs with.
func (s *Stabilizer) Config() Config {
	return s.cfg
}

// Stabilize estimates the camera motion between previous and current on bordered,
// conditioned copies and warps the untouched current frame back onto previous.
// Neither input is modified.
func (s *Stabilizer) Stabilize(previous, current gocv.Mat) (*Result, error) {
	if current.Empty() {
		return nil, ErrEndOfStream
	}
	if previous.Empty() {
		return nil, errors.Wrap(ErrEmptyFrame, "previous frame")
	}
	if !sameSize(previous, current) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "previous %dx%d, current %dx%d",
			previous.Cols(), previous.Rows(), current.Cols(), current.Rows())
	}
	start := time.Now()

	prevCond, err := s.prepare(previous)
	if err != nil {
		return nil, err
	}
	defer prevCond.Close()
	currCond, err := s.prepare(current)
	if err != nil {
		return nil, err
	}
	defer currCond.Close()

	bordered, err := s.estimator.Estimate(prevCond, currCond)
	if err != nil {
		return nil, errors.Wrap(err, "estimate transform")
	}
	offset := s.cfg.BorderOffset()
	t := bordered.rebase(float64(offset.X), float64(offset.Y))
	if !t.Valid() {
		return nil, errors.Wrapf(ErrNoTransform, "degenerate transform %s", t)
	}

	out := Warp(current, t)
	elapsed := time.Since(start)
	tx, ty := t.Translation()
	s.logger.Debug("frame stabilized",
		zap.Float64("tx", tx),
		zap.Float64("ty", ty),
		zap.Float64("rotation", t.Rotation()),
		zap.Float64("scale", t.Scale()),
		zap.Duration("elapsed", elapsed),
	)
	return &Result{Frame: out, Transform: t, Elapsed: elapsed}, nil
}

func (s *Stabilizer) prepare(frame gocv.Mat) (gocv.Mat, error) {
	bordered := Border(frame, s.cfg.BorderWidth, s.cfg.BorderHeight)
	defer bordered.Close()
	return Condition(bordered, s.cfg)
}

// Warp resamples frame by the inverse of t (nearest neighbour) into a frame of the
// same size, so that a point p of the output reads frame at t(p).
func Warp(frame gocv.Mat, t Transform) gocv.Mat {
	m := t.toMat()
	defer m.Close()
	out := gocv.NewMat()
	gocv.WarpAffineWithParams(frame, &out, m, image.Pt(frame.Cols(), frame.Rows()),
		gocv.InterpolationNearestNeighbor+gocv.WarpInverseMap, gocv.BorderConstant, color.RGBA{})
	return out
}
