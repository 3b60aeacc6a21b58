package fieldstab

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	SourceVideo  = "video"
	SourceWebcam = "webcam"
	SourceCamera = "camera"

	// OnFailureIdentity emits the current frame unchanged
	OnFailureIdentity = "identity"
	// OnFailureDrop leaves the frame out of the output
	OnFailureDrop = "drop"
	// OnFailureAbort stops the run
	OnFailureAbort = "abort"

	envPrefix = "FIELDSTAB_"
)

// AppSettings Settings for application
type AppSettings struct {
	Source                     string                     `json:"source" toml:"source" env:"SOURCE"`
	CameraSettings             CameraSettings             `json:"camera_settings" toml:"camera_settings" envPrefix:"CAMERA_"`
	VideoCaptureDeviceSettings VideoCaptureDeviceSettings `json:"video_capture_device" toml:"video_capture_device" envPrefix:"DEVICE_"`
	VideoSettings              VideoSettings              `json:"video_settings" toml:"video_settings" envPrefix:"VIDEO_"`
	MjpegSettings              MjpegSettings              `json:"mjpeg_settings" toml:"mjpeg_settings" envPrefix:"MJPEG_"`
	OutputSettings             OutputSettings             `json:"output_settings" toml:"output_settings" envPrefix:"OUTPUT_"`
	Stabilization              Config                     `json:"stabilization" toml:"stabilization"`
	Estimator                  EstimatorSettings          `json:"estimator" toml:"estimator" envPrefix:"ESTIMATOR_"`
	OnEstimationFailure        string                     `json:"on_estimation_failure" toml:"on_estimation_failure" env:"ON_ESTIMATION_FAILURE"`
	TrajectoryDB               string                     `json:"trajectory_db" toml:"trajectory_db" env:"TRAJECTORY_DB"`
	MetricsEnable              bool                       `json:"metrics_enable" toml:"metrics_enable" env:"METRICS_ENABLE"`
	LogLevel                   string                     `json:"log_level" toml:"log_level" env:"LOG_LEVEL"`
}

// MjpegSettings settings for the live preview
type MjpegSettings struct {
	ImshowEnable  bool `json:"imshow_enable" toml:"imshow_enable" env:"IMSHOW_ENABLE"`
	Enable        bool `json:"enable" toml:"enable" env:"ENABLE"`
	Port          int  `json:"port" toml:"port" env:"PORT"`
	ReducedWidth  int  `json:"reduced_width" toml:"reduced_width" env:"REDUCED_WIDTH"`
	ReducedHeight int  `json:"reduced_height" toml:"reduced_height" env:"REDUCED_HEIGHT"`
}

// CameraSettings settings for camera settings
type CameraSettings struct {
	Address string `json:"address" toml:"address" env:"ADDRESS"`
	Port    int    `json:"port" toml:"port" env:"PORT"`
}

// VideoCaptureDeviceSettings settings for device settings
type VideoCaptureDeviceSettings struct {
	DeviceID int `json:"device_id" toml:"device_id" env:"ID"`
}

// VideoSettings settings for file input
type VideoSettings struct {
	Source string `json:"source" toml:"source" env:"SOURCE"`
}

// OutputSettings settings for the stabilized video file. Empty path disables writing.
type OutputSettings struct {
	Path  string `json:"path" toml:"path" env:"PATH"`
	Codec string `json:"codec" toml:"codec" env:"CODEC"`
}

// DefaultSettings returns the settings a configuration file is layered onto.
func DefaultSettings() AppSettings {
	return AppSettings{
		Source:              SourceVideo,
		MjpegSettings:       MjpegSettings{Port: 8090, ReducedWidth: 640, ReducedHeight: 360},
		OutputSettings:      OutputSettings{Codec: "MJPG"},
		Stabilization:       DefaultConfig(),
		Estimator:           DefaultEstimatorSettings(),
		OnEstimationFailure: OnFailureIdentity,
		LogLevel:            "info",
	}
}

// NewSettings Create new AppSettings from content of configuration file (.json or .toml)
// and FIELDSTAB_* environment variables. An empty fileName uses defaults and environment only.
func NewSettings(fileName string) (*AppSettings, error) {
	settings := DefaultSettings()

	if fileName != "" {
		content, err := os.ReadFile(fileName)
		if err != nil {
			return nil, errors.Wrap(err, "Can't read settings file")
		}
		switch strings.ToLower(filepath.Ext(fileName)) {
		case ".toml":
			err = toml.Unmarshal(content, &settings)
		default:
			err = json.Unmarshal(content, &settings)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse settings file %s", fileName)
		}
	}

	if err := env.ParseWithOptions(&settings, env.Options{Prefix: envPrefix}); err != nil {
		return nil, errors.Wrap(err, "Can't apply environment overrides")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks the settings are consistent with the selected source
func (s *AppSettings) Validate() error {
	switch s.Source {
	case SourceVideo:
		if s.VideoSettings.Source == "" {
			return errors.New("field 'video_settings.source' has not been provided in configuration file")
		}
	case SourceWebcam:
	case SourceCamera:
		if s.CameraSettings.Port <= 0 {
			return errors.New("field 'camera_settings.port' must be positive")
		}
	case "":
		return errors.New("source setting is empty")
	default:
		return errors.Errorf("unknown source %q", s.Source)
	}

	switch s.OnEstimationFailure {
	case OnFailureIdentity, OnFailureDrop, OnFailureAbort:
	default:
		return errors.Errorf("unknown on_estimation_failure policy %q", s.OnEstimationFailure)
	}

	if _, err := NewEstimator(s.Estimator); err != nil {
		return err
	}
	if len(s.OutputSettings.Codec) != 4 && s.OutputSettings.Path != "" {
		return errors.Errorf("output codec must be a fourcc, got %q", s.OutputSettings.Codec)
	}
	return errors.Wrap(s.Stabilization.Validate(), "stabilization")
}
