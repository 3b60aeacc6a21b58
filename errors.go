package fieldstab

import "github.com/pkg/errors"

var (
	// ErrDimensionMismatch previous and current frames have different sizes
	ErrDimensionMismatch = errors.New("frame dimensions differ")
	// ErrNoTransform the estimator could not find a usable rigid transform between two frames
	ErrNoTransform = errors.New("no transform found")
	// ErrEndOfStream the source has no more frames. Not a failure.
	ErrEndOfStream = errors.New("end of stream")
	// ErrEmptyFrame a frame that must carry pixels is empty
	ErrEmptyFrame = errors.New("empty frame")
)
