package fieldstab

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/genert/fieldstab/trajectory"
)

type sliceSource struct {
	frames []gocv.Mat
	next   int
	// called before frame i is delivered
	onRead func(i int)
}

func (s *sliceSource) Read(ctx context.Context, dst *gocv.Mat) error {
	if s.onRead != nil {
		s.onRead(s.next)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.next >= len(s.frames) {
		return ErrEndOfStream
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return nil
}

func (s *sliceSource) Close() error { return nil }

type sliceSink struct {
	frames []gocv.Mat
}

func (s *sliceSink) Write(frame gocv.Mat) error {
	s.frames = append(s.frames, frame.Clone())
	return nil
}

func (s *sliceSink) Close() error {
	for _, f := range s.frames {
		f.Close()
	}
	return nil
}

func testSettings(policy string) *AppSettings {
	settings := DefaultSettings()
	settings.Source = SourceWebcam
	settings.OnEstimationFailure = policy
	return &settings
}

func newTestApp(t *testing.T, settings *AppSettings, frames ...gocv.Mat) (*Application, *sliceSink) {
	t.Helper()
	app, err := newApplication(settings, &sliceSource{frames: frames}, nil)
	require.NoError(t, err)
	sink := &sliceSink{}
	app.sink = sink
	t.Cleanup(app.Close)
	return app, sink
}

func blankFrames(t *testing.T, n int) []gocv.Mat {
	frames := make([]gocv.Mat, n)
	for i := range frames {
		frames[i] = solidFrame(t, testRows, testCols, gocv.NewScalar(0, 0, 0, 0))
	}
	return frames
}

func TestRunStabilizesStream(t *testing.T) {
	previous, current := shiftedPair(t, 6)
	app, sink := newTestApp(t, testSettings(OnFailureIdentity), previous, current, current)

	summary, err := app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 2, summary.Stabilized)
	assert.Zero(t, summary.Identity)
	require.Len(t, sink.frames, 3)
	assert.True(t, matsEqual(t, previous, sink.frames[0]), "reference frame is written unchanged")
	for _, f := range sink.frames {
		assert.Equal(t, testRows, f.Rows())
		assert.Equal(t, testCols, f.Cols())
	}
	// the shift happens once, the last pair is identical
	assert.InDelta(t, 3, summary.MeanDX, 0.5)
	tx, _ := app.path.Translation()
	assert.InDelta(t, 6, tx, 0.75)
}

func TestRunFailurePolicies(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		app, sink := newTestApp(t, testSettings(OnFailureIdentity), blankFrames(t, 3)...)
		summary, err := app.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Frames)
		assert.Equal(t, 2, summary.Identity)
		assert.Len(t, sink.frames, 3)
	})

	t.Run("drop", func(t *testing.T) {
		app, sink := newTestApp(t, testSettings(OnFailureDrop), blankFrames(t, 3)...)
		summary, err := app.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Frames)
		assert.Equal(t, 2, summary.Dropped)
		assert.Len(t, sink.frames, 1)
	})

	t.Run("abort", func(t *testing.T) {
		app, sink := newTestApp(t, testSettings(OnFailureAbort), blankFrames(t, 3)...)
		_, err := app.Run(context.Background())
		assert.ErrorIs(t, err, ErrNoTransform)
		assert.Len(t, sink.frames, 1)
	})
}

func TestRunRecordsTrajectory(t *testing.T) {
	settings := testSettings(OnFailureIdentity)
	settings.TrajectoryDB = filepath.Join(t.TempDir(), "trajectory.db")
	previous, current := shiftedPair(t, 4)
	// a blank frame has nothing to track, so the frame after it falls back to identity
	frames := append(blankFrames(t, 1), previous, current)
	app, _ := newTestApp(t, settings, frames...)

	_, err := app.Run(context.Background())
	require.NoError(t, err)

	samples, err := app.store.Samples(context.Background(), app.RunID())
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, trajectory.StatusReference, samples[0].Status)
	assert.Equal(t, trajectory.StatusIdentity, samples[1].Status)
	assert.Equal(t, 1.0, samples[1].A)
	assert.Zero(t, samples[1].PathX)
	assert.Equal(t, trajectory.StatusStabilized, samples[2].Status)
	assert.InDelta(t, 4, samples[2].TX, 0.5)
	assert.InDelta(t, 4, samples[2].PathX, 0.5)
	assert.Positive(t, samples[2].ElapsedMs)
}

func TestRunEmptySource(t *testing.T) {
	app, sink := newTestApp(t, testSettings(OnFailureIdentity))

	summary, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Frames)
	assert.Empty(t, sink.frames)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	previous, current := shiftedPair(t, 2)
	source := &sliceSource{
		frames: []gocv.Mat{previous, current, current, current},
		onRead: func(i int) {
			if i == 2 {
				cancel()
			}
		},
	}
	app, err := newApplication(testSettings(OnFailureIdentity), source, nil)
	require.NoError(t, err)
	sink := &sliceSink{}
	app.sink = sink
	defer app.Close()

	summary, err := app.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
	assert.Len(t, sink.frames, 2)
}

func TestNewApplicationRejectsBadEstimator(t *testing.T) {
	settings := testSettings(OnFailureIdentity)
	settings.Estimator.Method = "unknown"
	_, err := newApplication(settings, &sliceSource{}, nil)
	assert.Error(t, err)
}
