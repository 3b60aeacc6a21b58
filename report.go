package fieldstab

import (
	"fmt"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/gonum/stat"
)

// RunStats Accumulates per-frame outcomes of a run
type RunStats struct {
	Frames     int
	Stabilized int
	Identity   int
	Dropped    int

	dx, dy, angle, elapsed []float64
}

// RunSummary Aggregates of a run
type RunSummary struct {
	Frames, Stabilized, Identity, Dropped int

	MeanDX, StdDX       float64
	MeanDY, StdDY       float64
	MeanAngle, StdAngle float64 // degrees
	MeanElapsed         time.Duration
}

// AddStabilized records a frame aligned with t.
func (s *RunStats) AddStabilized(t Transform, elapsed time.Duration) {
	s.Frames++
	s.Stabilized++
	tx, ty := t.Translation()
	s.dx = append(s.dx, tx)
	s.dy = append(s.dy, ty)
	s.angle = append(s.angle, t.Rotation()*180/math.Pi)
	s.elapsed = append(s.elapsed, elapsed.Seconds())
}

// AddFailure records a frame for which no transform was found, handled per policy.
func (s *RunStats) AddFailure(policy string) {
	s.Frames++
	if policy == OnFailureDrop {
		s.Dropped++
		return
	}
	s.Identity++
}

// AddReference records the first frame of the stream, written unchanged.
func (s *RunStats) AddReference() {
	s.Frames++
}

// Summary computes the aggregates over the stabilized frames.
func (s *RunStats) Summary() RunSummary {
	sum := RunSummary{
		Frames:     s.Frames,
		Stabilized: s.Stabilized,
		Identity:   s.Identity,
		Dropped:    s.Dropped,
	}
	if len(s.dx) == 0 {
		return sum
	}
	sum.MeanDX, sum.StdDX = meanStd(s.dx)
	sum.MeanDY, sum.StdDY = meanStd(s.dy)
	sum.MeanAngle, sum.StdAngle = meanStd(s.angle)
	sum.MeanElapsed = time.Duration(stat.Mean(s.elapsed, nil) * float64(time.Second))
	return sum
}

func meanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

// Render formats the summary as a table
func (sum RunSummary) Render() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"frames", sum.Frames},
		{"stabilized", sum.Stabilized},
		{"identity fallback", sum.Identity},
		{"dropped", sum.Dropped},
		{"dx (px)", fmt.Sprintf("%.2f ± %.2f", sum.MeanDX, sum.StdDX)},
		{"dy (px)", fmt.Sprintf("%.2f ± %.2f", sum.MeanDY, sum.StdDY)},
		{"rotation (deg)", fmt.Sprintf("%.3f ± %.3f", sum.MeanAngle, sum.StdAngle)},
		{"mean time / frame", sum.MeanElapsed.Round(time.Microsecond).String()},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}
