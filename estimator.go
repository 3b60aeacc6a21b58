package fieldstab

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	EstimatorFeatures = "features"
	EstimatorECC      = "ecc"

	// frames whose gray standard deviation is below this carry nothing to correlate
	minTextureStdDev = 1.0
)

// Estimator finds the rigid transform mapping previous-frame coordinates to
// current-frame coordinates. It returns ErrNoTransform when the frames do not carry
// enough correspondence.
type Estimator interface {
	Estimate(previous, current gocv.Mat) (Transform, error)
}

// EstimatorSettings settings for the motion estimator
type EstimatorSettings struct {
	Method string `json:"method" toml:"method" env:"METHOD"`
	// features
	MaxCorners  int     `json:"max_corners" toml:"max_corners" env:"MAX_CORNERS"`
	Quality     float64 `json:"quality" toml:"quality" env:"QUALITY"`
	MinDistance float64 `json:"min_distance" toml:"min_distance" env:"MIN_DISTANCE"`
	MinMatches  int     `json:"min_matches" toml:"min_matches" env:"MIN_MATCHES"`
	// ecc
	Iterations int     `json:"iterations" toml:"iterations" env:"ITERATIONS"`
	Epsilon    float64 `json:"epsilon" toml:"epsilon" env:"EPSILON"`
}

// DefaultEstimatorSettings returns the feature-tracking estimator settings.
func DefaultEstimatorSettings() EstimatorSettings {
	return EstimatorSettings{
		Method:      EstimatorFeatures,
		MaxCorners:  300,
		Quality:     0.01,
		MinDistance: 10,
		MinMatches:  6,
		Iterations:  80,
		Epsilon:     1e-4,
	}
}

// NewEstimator builds the estimator selected by s.Method. Out-of-range parameters are
// rejected here, OpenCV would otherwise abort on them.
func NewEstimator(s EstimatorSettings) (Estimator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	features := &FeatureEstimator{
		MaxCorners:  s.MaxCorners,
		Quality:     s.Quality,
		MinDistance: s.MinDistance,
		MinMatches:  s.MinMatches,
	}
	if s.Method == EstimatorECC {
		return &ECCEstimator{Seed: features, Iterations: s.Iterations, Epsilon: s.Epsilon}, nil
	}
	return features, nil
}

// Validate checks the method and the parameters it uses.
func (s EstimatorSettings) Validate() error {
	switch s.Method {
	case EstimatorFeatures, EstimatorECC, "":
	default:
		return errors.Errorf("unknown estimator method %q", s.Method)
	}
	if s.MaxCorners < 0 {
		return errors.Errorf("estimator max_corners must not be negative, got %d", s.MaxCorners)
	}
	if !(s.Quality > 0 && s.Quality <= 1) {
		return errors.Errorf("estimator quality must be in (0, 1], got %v", s.Quality)
	}
	if s.MinDistance < 0 || math.IsNaN(s.MinDistance) {
		return errors.Errorf("estimator min_distance must not be negative, got %v", s.MinDistance)
	}
	if s.MinMatches < 0 {
		return errors.Errorf("estimator min_matches must not be negative, got %d", s.MinMatches)
	}
	if s.Method != EstimatorECC {
		return nil
	}
	if s.Iterations <= 0 {
		return errors.Errorf("estimator iterations must be positive, got %d", s.Iterations)
	}
	if s.Epsilon < 0 || math.IsNaN(s.Epsilon) {
		return errors.Errorf("estimator epsilon must not be negative, got %v", s.Epsilon)
	}
	return nil
}

// FeatureEstimator Tracks corners of the previous frame into the current one with
// pyramidal Lucas-Kanade and fits a partial affine transform (rotation, uniform scale,
// translation) over the tracked pairs with RANSAC
type FeatureEstimator struct {
	MaxCorners  int
	Quality     float64
	MinDistance float64
	MinMatches  int

	logger *zap.Logger
}

func (e *FeatureEstimator) setLogger(logger *zap.Logger) {
	e.logger = logger
}

func (e *FeatureEstimator) Estimate(previous, current gocv.Mat) (Transform, error) {
	if !sameSize(previous, current) {
		return Transform{}, ErrDimensionMismatch
	}
	prevGray, currGray := toGray(previous), toGray(current)
	defer prevGray.Close()
	defer currGray.Close()

	minMatches := e.MinMatches
	if minMatches < 3 {
		minMatches = 3
	}

	corners := gocv.NewMat()
	defer corners.Close()
	gocv.GoodFeaturesToTrack(prevGray, &corners, e.MaxCorners, e.Quality, e.MinDistance)
	if corners.Rows() < minMatches {
		return Transform{}, errors.Wrapf(ErrNoTransform, "%d corners found", corners.Rows())
	}

	next := gocv.NewMat()
	defer next.Close()
	status := gocv.NewMat()
	defer status.Close()
	trackErr := gocv.NewMat()
	defer trackErr.Close()
	gocv.CalcOpticalFlowPyrLK(prevGray, currGray, corners, next, &status, &trackErr)

	from := make([]gocv.Point2f, 0, corners.Rows())
	to := make([]gocv.Point2f, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		if status.GetUCharAt(i, 0) == 0 {
			continue
		}
		p := corners.GetVecfAt(i, 0)
		q := next.GetVecfAt(i, 0)
		from = append(from, gocv.Point2f{X: p[0], Y: p[1]})
		to = append(to, gocv.Point2f{X: q[0], Y: q[1]})
	}
	if e.logger != nil {
		e.logger.Debug("features tracked",
			zap.Int("corners", corners.Rows()),
			zap.Int("tracked", len(from)),
		)
	}
	if len(from) < minMatches {
		return Transform{}, errors.Wrapf(ErrNoTransform, "%d of %d corners tracked", len(from), corners.Rows())
	}

	fromVec := gocv.NewPoint2fVectorFromPoints(from)
	defer fromVec.Close()
	toVec := gocv.NewPoint2fVectorFromPoints(to)
	defer toVec.Close()

	m := gocv.EstimateAffinePartial2D(fromVec, toVec)
	defer m.Close()
	t, err := transformFromMat(m)
	if err != nil {
		return Transform{}, err
	}
	if !t.Valid() {
		return Transform{}, errors.Wrapf(ErrNoTransform, "degenerate matrix %s", t)
	}
	return t, nil
}

// ECCEstimator Maximises the enhanced correlation coefficient between the two frames
// over euclidean motions, starting from the Seed estimate when one is set.
//
// OpenCV raises an uncatchable error when ECC does not converge. Flat frames are
// rejected up front and the seed keeps the search close to the answer, but a pair the
// seed cannot relate is never handed to ECC.
type ECCEstimator struct {
	Seed       *FeatureEstimator
	Iterations int
	Epsilon    float64
}

func (e *ECCEstimator) setLogger(logger *zap.Logger) {
	if e.Seed != nil {
		e.Seed.setLogger(logger)
	}
}

func (e *ECCEstimator) Estimate(previous, current gocv.Mat) (Transform, error) {
	if !sameSize(previous, current) {
		return Transform{}, ErrDimensionMismatch
	}
	prevGray, currGray := toGray(previous), toGray(current)
	defer prevGray.Close()
	defer currGray.Close()

	for _, g := range []gocv.Mat{prevGray, currGray} {
		if sd := grayStdDev(g); sd < minTextureStdDev {
			return Transform{}, errors.Wrapf(ErrNoTransform, "flat frame (stddev %.3f)", sd)
		}
	}

	initial := Identity()
	if e.Seed != nil {
		seed, err := e.Seed.Estimate(previous, current)
		if err != nil {
			return Transform{}, errors.Wrap(err, "seed")
		}
		initial = euclidean(seed)
	}

	warp := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV32F)
	defer warp.Close()
	vals := [2][3]float64{{initial.A, initial.B, initial.TX}, {initial.C, initial.D, initial.TY}}
	for r := range vals {
		for c := range vals[r] {
			warp.SetFloatAt(r, c, float32(vals[r][c]))
		}
	}
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, e.Iterations, e.Epsilon)
	noMask := gocv.NewMat()
	defer noMask.Close()

	if cc := gocv.FindTransformECC(prevGray, currGray, &warp, gocv.MotionEuclidean, criteria, noMask, 5); cc <= 0 {
		return Transform{}, errors.Wrapf(ErrNoTransform, "correlation %.4f", cc)
	}
	t, err := transformFromMat(warp)
	if err != nil {
		return Transform{}, err
	}
	if !t.Valid() {
		return Transform{}, errors.Wrapf(ErrNoTransform, "degenerate matrix %s", t)
	}
	return t, nil
}

// euclidean drops the scale of t, keeping its rotation and translation.
func euclidean(t Transform) Transform {
	sin, cos := math.Sincos(t.Rotation())
	return Transform{A: cos, B: -sin, TX: t.TX, C: sin, D: cos, TY: t.TY}
}

func grayStdDev(gray gocv.Mat) float64 {
	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(gray, &mean, &stddev)
	if stddev.Empty() {
		return 0
	}
	return stddev.GetDoubleAt(0, 0)
}

func toGray(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
		return gray
	}
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	return gray
}
