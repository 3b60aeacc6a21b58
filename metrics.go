package fieldstab

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldstab_frames_total",
		Help: "Frames handled, by outcome (stabilized, identity, dropped)",
	}, []string{"outcome"})

	EstimationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldstab_estimation_failures_total",
		Help: "Frame pairs for which no rigid transform was found",
	})

	StabilizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldstab_stabilize_duration_seconds",
		Help:    "Time spent conditioning, estimating and warping one frame pair",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	CameraTranslation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fieldstab_camera_translation_pixels",
		Help: "Translation of the last estimated transform",
	}, []string{"axis"})

	SingularityCoverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldstab_singularity_mask_coverage_ratio",
		Help: "Share of the last stabilized frame excluded from singularity detection",
	})
)
