package fieldstab

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MorphKind Refinement applied to a layer's source mask
type MorphKind int

const (
	MorphErode MorphKind = iota
	MorphDilate
	// MorphInvert replaces every value v by 255-v
	MorphInvert
)

// MorphOp One refinement step
type MorphOp struct {
	Kind   MorphKind
	Radius int
}

// Predicate Which pixels of a refined layer a rule applies to
type Predicate int

const (
	// WhereSet pixels above Config.RelevantAbove
	WhereSet Predicate = iota
	// WhereUnset pixels below Config.IrrelevantBelow
	WhereUnset
)

// Rule What a layer does to the composite where its predicate holds
type Rule int

const (
	// RuleInclude sets the composite
	RuleInclude Rule = iota
	// RuleExclude clears the composite
	RuleExclude
)

// Tint Per-channel recolouring of a layer's set pixels in the debug view, in BGR
// order: v' = v*Gain + Offset. The zero Tint leaves pixels alone.
type Tint struct {
	Gain   [3]float64
	Offset [3]float64
}

// pull moves channel ch a ratio of the way towards target, leaving the others as is.
func pull(ch int, target, ratio float64) Tint {
	t := Tint{Gain: [3]float64{1, 1, 1}}
	t.Gain[ch] = 1 - ratio
	t.Offset[ch] = target * ratio
	return t
}

// Layer One entry of a mask pipeline: a source mask, its refinements and the rule
// it contributes to the composite.
type Layer struct {
	Name   string
	Source func(frame gocv.Mat) gocv.Mat
	Ops    []MorphOp
	Where  Predicate
	Rule   Rule
	Tint   Tint
}

// MaskPipeline Layers evaluated in order on an all-unset composite; a later layer
// wins over an earlier one on the same pixel.
type MaskPipeline struct {
	Layers          []Layer
	RelevantAbove   uint8
	IrrelevantBelow uint8
}

// StabilizationPipeline excludes movers and the overlay from motion estimation while
// leaving the field and the stands usable. offset moves the overlay panel, use
// Config.BorderOffset() on bordered frames.
func StabilizationPipeline(cfg Config, offset image.Point) *MaskPipeline {
	return &MaskPipeline{
		RelevantAbove:   cfg.RelevantAbove,
		IrrelevantBelow: cfg.IrrelevantBelow,
		Layers: []Layer{
			{
				Name:   "field",
				Source: grassSource(cfg),
				// dilation first swallows field lines, erosion then pulls the field
				// away from players standing on its edge
				Ops:   []MorphOp{{MorphDilate, cfg.FieldDilation}, {MorphErode, cfg.FieldErosion}},
				Where: WhereUnset,
				Rule:  RuleInclude,
				Tint:  pull(1, 255, 0.7),
			},
			publicLayer(cfg, RuleExclude),
			overlayLayer(cfg, offset),
		},
	}
}

// SingularityPipeline excludes the stands, the overlay and a band along the frame
// edges from feature detection. Players stay usable.
func SingularityPipeline(cfg Config) *MaskPipeline {
	return &MaskPipeline{
		RelevantAbove:   cfg.RelevantAbove,
		IrrelevantBelow: cfg.IrrelevantBelow,
		Layers: []Layer{
			publicLayer(cfg, RuleInclude),
			overlayLayer(cfg, image.Point{}),
			{
				Name: "border",
				Source: func(frame gocv.Mat) gocv.Mat {
					return BorderMask(frame.Rows(), frame.Cols(), cfg.SingularityBorder)
				},
				Where: WhereSet,
				Rule:  RuleInclude,
				Tint:  pull(0, 255, 0.5),
			},
		},
	}
}

// BuildStabilizationMask returns the mask of pixels to keep out of motion estimation.
func BuildStabilizationMask(frame gocv.Mat, cfg Config, offset image.Point) (gocv.Mat, error) {
	return StabilizationPipeline(cfg, offset).Build(frame)
}

// BuildSingularityMask returns the mask of pixels to keep out of singularity detection.
func BuildSingularityMask(frame gocv.Mat, cfg Config) (gocv.Mat, error) {
	return SingularityPipeline(cfg).Build(frame)
}

// Build evaluates every layer on frame and returns the composite.
func (p *MaskPipeline) Build(frame gocv.Mat) (gocv.Mat, error) {
	sources, err := p.refine(frame)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer closeAll(sources)
	return p.composite(frame, sources), nil
}

// Visualize returns the composite and a copy of frame with every layer's set pixels tinted.
func (p *MaskPipeline) Visualize(frame gocv.Mat) (gocv.Mat, gocv.Mat, error) {
	sources, err := p.refine(frame)
	if err != nil {
		return gocv.NewMat(), gocv.NewMat(), err
	}
	defer closeAll(sources)

	display := frame.Clone()
	for i, layer := range p.Layers {
		set := p.predicate(sources[i], WhereSet)
		tintRegion(&display, set, layer.Tint)
		set.Close()
	}
	return p.composite(frame, sources), display, nil
}

func (p *MaskPipeline) refine(frame gocv.Mat) ([]gocv.Mat, error) {
	if frame.Empty() {
		return nil, errors.Wrap(ErrEmptyFrame, "build mask")
	}
	sources := make([]gocv.Mat, 0, len(p.Layers))
	for _, layer := range p.Layers {
		m := layer.Source(frame)
		if !sameSize(m, frame) {
			m.Close()
			closeAll(sources)
			return nil, errors.Wrapf(ErrDimensionMismatch, "layer %q produced %dx%d for a %dx%d frame",
				layer.Name, m.Cols(), m.Rows(), frame.Cols(), frame.Rows())
		}
		for _, op := range layer.Ops {
			switch op.Kind {
			case MorphErode:
				Erode(&m, op.Radius)
			case MorphDilate:
				Dilate(&m, op.Radius)
			case MorphInvert:
				gocv.BitwiseNot(m, &m)
			}
		}
		sources = append(sources, m)
	}
	return sources, nil
}

func (p *MaskPipeline) composite(frame gocv.Mat, sources []gocv.Mat) gocv.Mat {
	final := zeroMat(frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	for i, layer := range p.Layers {
		hit := p.predicate(sources[i], layer.Where)
		switch layer.Rule {
		case RuleInclude:
			gocv.BitwiseOr(final, hit, &final)
		case RuleExclude:
			gocv.BitwiseNot(hit, &hit)
			gocv.BitwiseAnd(final, hit, &final)
		}
		hit.Close()
	}
	return final
}

// predicate returns a 0/255 mask of the pixels of src matching where.
func (p *MaskPipeline) predicate(src gocv.Mat, where Predicate) gocv.Mat {
	dst := gocv.NewMat()
	switch where {
	case WhereUnset:
		// v < IrrelevantBelow  <=>  !(v > IrrelevantBelow-1)
		gocv.Threshold(src, &dst, float32(p.IrrelevantBelow)-1, 255, gocv.ThresholdBinaryInv)
	default:
		gocv.Threshold(src, &dst, float32(p.RelevantAbove), 255, gocv.ThresholdBinary)
	}
	return dst
}

func grassSource(cfg Config) func(gocv.Mat) gocv.Mat {
	return func(frame gocv.Mat) gocv.Mat {
		return DetectBackground(frame, cfg.Grass)
	}
}

// publicLayer marks the stands: stray grass-coloured pixels are eroded away, the
// surviving field is dilated to blanket everything on it, and the result is inverted.
func publicLayer(cfg Config, rule Rule) Layer {
	return Layer{
		Name:   "public",
		Source: grassSource(cfg),
		Ops: []MorphOp{
			{MorphErode, cfg.PublicErosion},
			{MorphDilate, cfg.PublicDilation},
			{Kind: MorphInvert},
		},
		Where: WhereSet,
		Rule:  rule,
		Tint:  Tint{Gain: [3]float64{0.2, 0.2, 0.2}, Offset: [3]float64{204, 204, 204}},
	}
}

func overlayLayer(cfg Config, offset image.Point) Layer {
	return Layer{
		Name: "overlay",
		Source: func(frame gocv.Mat) gocv.Mat {
			return DetectOverlayPanel(frame, cfg.Overlay, offset)
		},
		Where: WhereSet,
		Rule:  RuleInclude,
		Tint:  Tint{Gain: [3]float64{0.6, 0.6, 0.2}, Offset: [3]float64{0, 0, 200}},
	}
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
