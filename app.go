package fieldstab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/genert/fieldstab/trajectory"
)

const keyEscape = 27

var errStopRequested = errors.New("stop requested")

// Application Main engine: pulls frames from a source, stabilizes each one against
// the previous raw frame and fans the result out to the output file, the preview and
// the trajectory store
type Application struct {
	settings    *AppSettings
	stabilizer  *Stabilizer
	singularity *MaskPipeline
	source      FrameSource
	sink        FrameSink
	store       *trajectory.Store
	logger      *zap.Logger
	runID       string

	window *gocv.Window
	server *PreviewServer

	stats RunStats
	path  Transform
}

// NewApp opens the configured source (and trajectory store) and prepares the pipeline.
func NewApp(settings *AppSettings, logger *zap.Logger) (*Application, error) {
	source, err := OpenSource(settings, logger)
	if err != nil {
		return nil, err
	}
	app, err := newApplication(settings, source, logger)
	if err != nil {
		source.Close()
		return nil, err
	}
	return app, nil
}

func newApplication(settings *AppSettings, source FrameSource, logger *zap.Logger) (*Application, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	estimator, err := NewEstimator(settings.Estimator)
	if err != nil {
		return nil, err
	}
	stabilizer, err := NewStabilizer(settings.Stabilization, estimator, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{
		settings:    settings,
		stabilizer:  stabilizer,
		singularity: SingularityPipeline(settings.Stabilization),
		source:      source,
		logger:      logger,
		runID:       runID,
		path:        Identity(),
	}
	if settings.TrajectoryDB != "" {
		app.store, err = trajectory.Open(settings.TrajectoryDB)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// RunID identifies this run in logs and in the trajectory store.
func (app *Application) RunID() string {
	return app.runID
}

// Run processes the source until it is exhausted, ctx is cancelled or ESC is pressed
// in the preview window. The first frame is only used as reference and written unchanged.
func (app *Application) Run(ctx context.Context) (RunSummary, error) {
	settings := app.settings

	/* Open imshow() GUI if needed */
	if settings.MjpegSettings.ImshowEnable {
		app.logger.Info("press 'ESC' to stop imshow()")
		app.window = gocv.NewWindow("fieldstab")
		app.window.ResizeWindow(settings.MjpegSettings.ReducedWidth, settings.MjpegSettings.ReducedHeight)
		defer app.window.Close()
	}

	/* Preview stream and metrics share one server */
	if settings.MjpegSettings.Enable || settings.MetricsEnable {
		app.server = StartPreviewServer(settings.MjpegSettings.Port, settings.MjpegSettings.Enable, settings.MetricsEnable, app.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = app.server.Shutdown(shutdownCtx)
		}()
	}

	fd := NewFrameData()
	defer fd.Close()

	if err := app.source.Read(ctx, &fd.Previous); err != nil {
		if errors.Is(err, ErrEndOfStream) {
			app.logger.Warn("source delivered no frame")
			return app.stats.Summary(), nil
		}
		return app.stats.Summary(), errors.Wrap(err, "read first frame")
	}
	app.logger.Info("stabilization started",
		zap.Int("width", fd.Previous.Cols()),
		zap.Int("height", fd.Previous.Rows()),
	)

	frameNumber := 1
	app.stats.AddReference()
	if err := app.write(fd.Previous); err != nil {
		return app.stats.Summary(), err
	}
	app.record(ctx, trajectory.Sample{Frame: frameNumber, Status: trajectory.StatusReference}, Identity())

	for {
		err := app.source.Read(ctx, &fd.Current)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			app.logger.Info("interrupted, stopping at frame boundary", zap.Int("frame", frameNumber))
			break
		}
		if err != nil {
			return app.stats.Summary(), errors.Wrapf(err, "read frame %d", frameNumber+1)
		}
		frameNumber++

		err = app.step(ctx, fd, frameNumber)
		if errors.Is(err, errStopRequested) {
			break
		}
		if err != nil {
			return app.stats.Summary(), err
		}
		fd.Advance()
	}

	summary := app.stats.Summary()
	app.logger.Info("stabilization ended",
		zap.Int("frames", summary.Frames),
		zap.Int("stabilized", summary.Stabilized),
		zap.Int("identity", summary.Identity),
		zap.Int("dropped", summary.Dropped),
	)
	return summary, nil
}

func (app *Application) step(ctx context.Context, fd *FrameData, frameNumber int) error {
	res, err := app.stabilizer.Stabilize(fd.Previous, fd.Current)
	if err != nil {
		if !errors.Is(err, ErrNoTransform) {
			return errors.Wrapf(err, "frame %d", frameNumber)
		}
		return app.handleFailure(ctx, fd, frameNumber, err)
	}
	defer res.Close()

	StabilizeDuration.Observe(res.Elapsed.Seconds())
	FramesTotal.WithLabelValues(trajectory.StatusStabilized).Inc()
	tx, ty := res.Transform.Translation()
	CameraTranslation.WithLabelValues("x").Set(tx)
	CameraTranslation.WithLabelValues("y").Set(ty)

	app.path = app.path.Compose(res.Transform)
	app.stats.AddStabilized(res.Transform, res.Elapsed)
	app.record(ctx, trajectory.Sample{
		Frame:     frameNumber,
		Status:    trajectory.StatusStabilized,
		ElapsedMs: float64(res.Elapsed) / float64(time.Millisecond),
	}, res.Transform)

	if err := app.observeSingularities(res.Frame); err != nil {
		app.logger.Warn("singularity mask failed", zap.Int("frame", frameNumber), zap.Error(err))
	}
	if err := app.write(res.Frame); err != nil {
		return err
	}
	return app.preview(fd, res.Frame)
}

// handleFailure applies the configured policy to a frame without transform.
func (app *Application) handleFailure(ctx context.Context, fd *FrameData, frameNumber int, cause error) error {
	EstimationFailuresTotal.Inc()
	policy := app.settings.OnEstimationFailure
	app.logger.Warn("no transform found",
		zap.Int("frame", frameNumber),
		zap.String("policy", policy),
		zap.Error(cause),
	)

	switch policy {
	case OnFailureAbort:
		return errors.Wrapf(cause, "frame %d", frameNumber)
	case OnFailureDrop:
		FramesTotal.WithLabelValues(trajectory.StatusDropped).Inc()
		app.stats.AddFailure(policy)
		app.record(ctx, trajectory.Sample{Frame: frameNumber, Status: trajectory.StatusDropped}, Identity())
		return nil
	}

	FramesTotal.WithLabelValues(trajectory.StatusIdentity).Inc()
	app.stats.AddFailure(policy)
	app.record(ctx, trajectory.Sample{Frame: frameNumber, Status: trajectory.StatusIdentity}, Identity())
	if err := app.write(fd.Current); err != nil {
		return err
	}
	return app.preview(fd, fd.Current)
}

func (app *Application) observeSingularities(stabilized gocv.Mat) error {
	mask, err := app.singularity.Build(stabilized)
	if err != nil {
		return err
	}
	defer mask.Close()
	total := mask.Rows() * mask.Cols()
	if total > 0 {
		SingularityCoverage.Set(float64(gocv.CountNonZero(mask)) / float64(total))
	}
	return nil
}

func (app *Application) write(frame gocv.Mat) error {
	out := app.settings.OutputSettings
	if app.sink == nil && out.Path != "" {
		fps := 0.0
		if cs, ok := app.source.(*captureSource); ok {
			fps = cs.FPS()
		}
		sink, err := OpenVideoSink(out.Path, out.Codec, fps, frame.Cols(), frame.Rows())
		if err != nil {
			return err
		}
		app.sink = sink
	}
	if app.sink == nil {
		return nil
	}
	return errors.Wrap(app.sink.Write(frame), "write frame")
}

func (app *Application) preview(fd *FrameData, shown gocv.Mat) error {
	settings := app.settings.MjpegSettings
	streaming := app.server != nil && app.server.Stream != nil
	if app.window == nil && !streaming {
		return nil
	}
	if err := fd.Preprocess(shown, settings.ReducedWidth, settings.ReducedHeight); err != nil {
		return errors.Wrap(err, "preview")
	}

	if app.window != nil {
		app.window.IMShow(fd.Preview)
		if app.window.WaitKey(1) == keyEscape {
			return errStopRequested
		}
	}

	if streaming {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, fd.Preview)
		if err != nil {
			app.logger.Warn("error while encoding to JPG (mjpeg)", zap.Error(err))
			return nil
		}
		app.server.Stream.UpdateJPEG(buf.GetBytes())
		buf.Close()
	}
	return nil
}

// record stores a sample with the frame's transform and the cumulative path.
func (app *Application) record(ctx context.Context, s trajectory.Sample, t Transform) {
	if app.store == nil {
		return
	}
	s.RunID = app.runID
	s.A, s.B, s.TX, s.C, s.D, s.TY = t.A, t.B, t.TX, t.C, t.D, t.TY
	s.PathX, s.PathY = app.path.Translation()
	s.PathAngle = app.path.Rotation()
	if err := app.store.Record(ctx, s); err != nil {
		app.logger.Warn("failed to record trajectory sample", zap.Int("frame", s.Frame), zap.Error(err))
	}
}

// Close Free underlying resources
func (app *Application) Close() {
	if app.source != nil {
		if err := app.source.Close(); err != nil {
			app.logger.Warn("closing source", zap.Error(err))
		}
	}
	if app.sink != nil {
		if err := app.sink.Close(); err != nil {
			app.logger.Warn("closing output", zap.Error(err))
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warn("closing trajectory store", zap.Error(err))
		}
	}
}
