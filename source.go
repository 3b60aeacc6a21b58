package fieldstab

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mike1808/h264decoder/decoder"
	"github.com/pkg/errors"
	"github.com/projecthunt/reuseable"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	cameraPacketSize   = 1514
	cameraHeaderLength = 72
	cameraRetryDelay   = 400 * time.Millisecond
)

// FrameSource delivers same-sized BGR frames one at a time. Read returns
// ErrEndOfStream once the source is exhausted.
type FrameSource interface {
	Read(ctx context.Context, dst *gocv.Mat) error
	Close() error
}

// FrameSink consumes stabilized frames.
type FrameSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// OpenSource opens the source selected in settings.
func OpenSource(settings *AppSettings, logger *zap.Logger) (FrameSource, error) {
	switch settings.Source {
	case SourceWebcam:
		logger.Info("starting to capture webcam", zap.Int("device", settings.VideoCaptureDeviceSettings.DeviceID))
		vc, err := gocv.VideoCaptureDevice(settings.VideoCaptureDeviceSettings.DeviceID)
		if err != nil {
			return nil, errors.Wrap(err, "Can't open video capture")
		}
		return &captureSource{capture: vc}, nil
	case SourceVideo:
		logger.Info("starting to capture video", zap.String("path", settings.VideoSettings.Source))
		vc, err := gocv.OpenVideoCapture(settings.VideoSettings.Source)
		if err != nil {
			return nil, errors.Wrap(err, "Can't open video capture")
		}
		return &captureSource{capture: vc}, nil
	case SourceCamera:
		addr := fmt.Sprintf("%s:%d", settings.CameraSettings.Address, settings.CameraSettings.Port)
		logger.Info("starting to listen for packets", zap.String("address", addr))
		return newCameraSource(addr, logger)
	}
	return nil, errors.Errorf("unknown source %q", settings.Source)
}

type captureSource struct {
	capture *gocv.VideoCapture
}

func (s *captureSource) Read(ctx context.Context, dst *gocv.Mat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok := s.capture.Read(dst); !ok || dst.Empty() {
		return ErrEndOfStream
	}
	return nil
}

// FPS returns the frame rate reported by the container, 0 when unknown.
func (s *captureSource) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

func (s *captureSource) Close() error {
	return s.capture.Close()
}

// cameraSource Decodes an H.264 elementary stream sent over UDP, one NAL unit per
// datagram behind a fixed-size header
type cameraSource struct {
	conn    net.PacketConn
	decoder *decoder.H264Decoder
	buf     []byte
	logger  *zap.Logger
}

func newCameraSource(addr string, logger *zap.Logger) (*cameraSource, error) {
	pc, err := reuseable.ListenPacket("udp4", addr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open video capture")
	}
	d, err := decoder.New(decoder.PixelFormatBGR)
	if err != nil {
		pc.Close()
		return nil, errors.Wrap(err, "failed to create H264 decoder")
	}
	return &cameraSource{conn: pc, decoder: d, buf: make([]byte, cameraPacketSize), logger: logger}, nil
}

func (s *cameraSource) Read(ctx context.Context, dst *gocv.Mat) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}
		n, _, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return errors.Wrap(err, "failed to read from buffer")
		}
		if n < cameraHeaderLength {
			s.logger.Debug("short packet, skipping", zap.Int("bytes", n))
			continue
		}

		frames, err := s.decoder.Decode(s.buf[cameraHeaderLength:n])
		if err != nil {
			s.logger.Warn("failed to decode frame", zap.Error(err))
			if !sleepContext(ctx, cameraRetryDelay) {
				return ctx.Err()
			}
			continue
		}
		if len(frames) == 0 {
			continue
		}

		f := frames[0]
		m, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
		if err != nil {
			return errors.Wrap(err, "failed to load image")
		}
		m.CopyTo(dst)
		m.Close()
		return nil
	}
}

func (s *cameraSource) Close() error {
	s.decoder.Close()
	return s.conn.Close()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// videoSink Writes frames to a video file
type videoSink struct {
	writer *gocv.VideoWriter
}

// OpenVideoSink creates path with the given fourcc codec.
func OpenVideoSink(path, codec string, fps float64, width, height int) (FrameSink, error) {
	if fps <= 0 {
		fps = 25
	}
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open video writer %s", path)
	}
	return &videoSink{writer: w}, nil
}

func (s *videoSink) Write(frame gocv.Mat) error {
	return s.writer.Write(frame)
}

func (s *videoSink) Close() error {
	return s.writer.Close()
}
