package fieldstab

import (
	"image"

	"gocv.io/x/gocv"
)

// FrameData Wrapper around the gocv.Mat kept between two iterations of the run loop
type FrameData struct {
	Previous gocv.Mat // Reference frame, raw
	Current  gocv.Mat // Frame being stabilized, raw
	Preview  gocv.Mat // Scaled blend of previous and stabilized frames
}

// NewFrameData Simplifies creation of FrameData
func NewFrameData() *FrameData {
	fd := FrameData{
		Previous: gocv.NewMat(),
		Current:  gocv.NewMat(),
		Preview:  gocv.NewMat(),
	}
	return &fd
}

// Close Simplify memory management for each gocv.Mat of FrameData
func (fd *FrameData) Close() {
	_ = fd.Previous.Close()
	_ = fd.Current.Close()
	_ = fd.Preview.Close()
}

// Advance Makes the current frame the reference of the next iteration
func (fd *FrameData) Advance() {
	fd.Previous, fd.Current = fd.Current, fd.Previous
}

// Preprocess Scales the blend of previous and stabilized to the preview size
func (fd *FrameData) Preprocess(stabilized gocv.Mat, width, height int) error {
	blend, err := Blend(fd.Previous, stabilized)
	defer blend.Close()
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		blend.CopyTo(&fd.Preview)
		return nil
	}
	gocv.Resize(blend, &fd.Preview, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationDefault)
	return nil
}
