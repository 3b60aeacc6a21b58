package fieldstab

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var overlayRect = image.Rect(80, 40, 370, 80)

func buildStabilization(t *testing.T, frame gocv.Mat, offset image.Point) gocv.Mat {
	t.Helper()
	mask, err := BuildStabilizationMask(frame, DefaultConfig(), offset)
	require.NoError(t, err)
	t.Cleanup(func() { mask.Close() })
	return mask
}

func buildSingularity(t *testing.T, frame gocv.Mat) gocv.Mat {
	t.Helper()
	mask, err := BuildSingularityMask(frame, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { mask.Close() })
	return mask
}

func TestStabilizationMaskUniformField(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)

	mask := buildStabilization(t, frame, image.Point{})

	assert.Equal(t, overlayRect.Dx()*overlayRect.Dy(), gocv.CountNonZero(mask))
	assert.Equal(t, overlayRect.Dx()*overlayRect.Dy(), countInRect(mask, overlayRect))
}

func TestStabilizationMaskOverlayOffset(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)

	mask := buildStabilization(t, frame, image.Pt(30, 30))

	moved := overlayRect.Add(image.Pt(30, 30))
	assert.Equal(t, moved.Dx()*moved.Dy(), countInRect(mask, moved))
	assert.Equal(t, moved.Dx()*moved.Dy(), gocv.CountNonZero(mask))
}

func TestStabilizationMaskExcludesPlayer(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)
	fillRect(&frame, image.Rect(230, 170, 250, 190), kitRed)

	mask := buildStabilization(t, frame, image.Point{})

	// dilation by 1 then erosion by 5 grows the 20px player to 28px
	player := image.Rect(226, 166, 254, 194)
	assert.Equal(t, player.Dx()*player.Dy(), countInRect(mask, player))
	assert.Equal(t, player.Dx()*player.Dy()+overlayRect.Dx()*overlayRect.Dy(), gocv.CountNonZero(mask))
	requireMaskValue(t, mask, 100, 300, 0)
}

// The stands are left usable for estimation: only the strip where the field
// meets them is excluded.
func TestStabilizationMaskKeepsStands(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)
	fillRect(&frame, image.Rect(0, 0, testCols/2, testRows), crowdGray)

	mask := buildStabilization(t, frame, image.Point{})

	requireMaskValue(t, mask, 100, 200, 0)
	requireMaskValue(t, mask, 224, 200, 0)
	requireMaskValue(t, mask, 225, 200, 255)
	requireMaskValue(t, mask, 243, 200, 255)
	requireMaskValue(t, mask, 244, 200, 0)
	requireMaskValue(t, mask, 300, 200, 0)
}

func TestStabilizationMaskAllStands(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, crowdGray)

	mask := buildStabilization(t, frame, image.Point{})

	// nothing is grass, so everything reads as stands and only the overlay is excluded
	assert.Equal(t, overlayRect.Dx()*overlayRect.Dy(), gocv.CountNonZero(mask))
}

// A blob wider than twice the public dilation leaves a hole that the stands layer
// claims, so its centre is not excluded.
func TestStabilizationMaskLargeBlobCentreCountsAsStands(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)
	fillRect(&frame, image.Rect(210, 150, 270, 210), kitRed)

	mask := buildStabilization(t, frame, image.Point{})

	requireMaskValue(t, mask, 215, 180, 255)
	requireMaskValue(t, mask, 240, 180, 0)
	assert.Zero(t, countInRect(mask, image.Rect(225, 165, 255, 195)))
}

func TestOverlayDominance(t *testing.T) {
	textured := fieldTexture(testRows, testCols, 3)
	defer textured.Close()

	frames := map[string]gocv.Mat{
		"grass":    solidFrame(t, testRows, testCols, grassLight),
		"stands":   solidFrame(t, testRows, testCols, crowdGray),
		"red":      solidFrame(t, testRows, testCols, kitRed),
		"black":    solidFrame(t, testRows, testCols, gocv.NewScalar(0, 0, 0, 0)),
		"textured": textured,
	}
	want := overlayRect.Dx() * overlayRect.Dy()
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			stab := buildStabilization(t, frame, image.Point{})
			assert.Equal(t, want, countInRect(stab, overlayRect))

			sing := buildSingularity(t, frame)
			assert.Equal(t, want, countInRect(sing, overlayRect))
		})
	}
}

func TestSingularityMaskUniformField(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)

	mask := buildSingularity(t, frame)

	b := DefaultConfig().SingularityBorder
	inner := (testRows - 2*b) * (testCols - 2*b)
	// the overlay lies inside the top band
	assert.Equal(t, testRows*testCols-inner, gocv.CountNonZero(mask))
	assert.Zero(t, countInRect(mask, image.Rect(b, b, testCols-b, testRows-b)))
}

func TestSingularityMaskKeepsPlayers(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)
	fillRect(&frame, image.Rect(230, 170, 250, 190), kitRed)

	mask := buildSingularity(t, frame)

	requireMaskValue(t, mask, 240, 180, 0)
}

func TestSingularityMaskExcludesStands(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, crowdGray)

	mask := buildSingularity(t, frame)

	assert.Equal(t, testRows*testCols, gocv.CountNonZero(mask))
}

func TestMaskPipelineLaterLayerWins(t *testing.T) {
	frame := solidFrame(t, 100, 100, crowdGray)
	rectSource := func(r image.Rectangle) func(gocv.Mat) gocv.Mat {
		return func(f gocv.Mat) gocv.Mat {
			m := zeroMat(f.Rows(), f.Cols(), gocv.MatTypeCV8U)
			fillRect(&m, r, gocv.NewScalar(255, 0, 0, 0))
			return m
		}
	}
	p := &MaskPipeline{
		RelevantAbove:   250,
		IrrelevantBelow: 10,
		Layers: []Layer{
			{Name: "all", Source: rectSource(image.Rect(0, 0, 100, 100)), Where: WhereSet, Rule: RuleInclude},
			{Name: "hole", Source: rectSource(image.Rect(20, 20, 80, 80)), Where: WhereSet, Rule: RuleExclude},
			{Name: "island", Source: rectSource(image.Rect(40, 40, 60, 60)), Where: WhereSet, Rule: RuleInclude},
		},
	}

	mask, err := p.Build(frame)
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, 100*100-60*60+20*20, gocv.CountNonZero(mask))
	requireMaskValue(t, mask, 10, 10, 255)
	requireMaskValue(t, mask, 30, 30, 0)
	requireMaskValue(t, mask, 50, 50, 255)
}

func TestMaskPipelineWhereUnset(t *testing.T) {
	frame := solidFrame(t, 50, 50, crowdGray)
	p := &MaskPipeline{
		RelevantAbove:   250,
		IrrelevantBelow: 10,
		Layers: []Layer{{
			Name: "soft",
			Source: func(f gocv.Mat) gocv.Mat {
				m := zeroMat(f.Rows(), f.Cols(), gocv.MatTypeCV8U)
				fillRect(&m, image.Rect(0, 0, 50, 10), gocv.NewScalar(9, 0, 0, 0))
				fillRect(&m, image.Rect(0, 10, 50, 20), gocv.NewScalar(10, 0, 0, 0))
				fillRect(&m, image.Rect(0, 20, 50, 50), gocv.NewScalar(128, 0, 0, 0))
				return m
			},
			Where: WhereUnset,
			Rule:  RuleInclude,
		}},
	}

	mask, err := p.Build(frame)
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, 50*10, gocv.CountNonZero(mask))
}

func TestMaskPipelineRejectsMisSizedLayer(t *testing.T) {
	frame := solidFrame(t, 50, 50, crowdGray)
	p := &MaskPipeline{Layers: []Layer{{
		Name:   "wrong",
		Source: func(gocv.Mat) gocv.Mat { return zeroMat(10, 10, gocv.MatTypeCV8U) },
	}}}

	_, err := p.Build(frame)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMaskPipelineEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := BuildStabilizationMask(empty, DefaultConfig(), image.Point{})
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestVisualizeMatchesBuild(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, grassLight)
	fillRect(&frame, image.Rect(230, 170, 250, 190), kitRed)
	p := StabilizationPipeline(DefaultConfig(), image.Point{})

	built, err := p.Build(frame)
	require.NoError(t, err)
	defer built.Close()
	mask, display, err := p.Visualize(frame)
	require.NoError(t, err)
	defer mask.Close()
	defer display.Close()

	assert.True(t, matsEqual(t, built, mask))
	assert.True(t, sameSize(frame, display))
	// the overlay is tinted, the source frame is untouched
	assert.Positive(t, differingPixels(t, frame, display))
	assert.Equal(t, grassLight.Val2, float64(frame.GetVecbAt(60, 100)[1]))
}

func TestVisualizeStabilizationTints(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, gocv.NewScalar(40, 155, 40, 0))
	mask, display, err := StabilizationPipeline(DefaultConfig(), image.Point{}).Visualize(frame)
	require.NoError(t, err)
	defer mask.Close()
	defer display.Close()

	// field: green pulled 70% towards 255
	assert.Equal(t, []uint8{40, 225, 40}, []uint8(display.GetVecbAt(200, 300)))
	// overlay on top of the field tint: red pulled 80% towards 250, green and blue at 60%
	assert.Equal(t, []uint8{24, 135, 208}, []uint8(display.GetVecbAt(60, 200)))
}

func TestVisualizeSingularityTints(t *testing.T) {
	frame := solidFrame(t, testRows, testCols, gocv.NewScalar(105, 105, 105, 0))
	mask, display, err := SingularityPipeline(DefaultConfig()).Visualize(frame)
	require.NoError(t, err)
	defer mask.Close()
	defer display.Close()

	// stands: every channel pulled 80% towards white
	assert.Equal(t, []uint8{225, 225, 225}, []uint8(display.GetVecbAt(200, 240)))
	// border band: only blue moves, halfway to 255
	assert.Equal(t, []uint8{240, 225, 225}, []uint8(display.GetVecbAt(200, 20)))
}

func TestTintZeroValueIsNoop(t *testing.T) {
	frame := solidFrame(t, 20, 20, gocv.NewScalar(10, 20, 30, 0))
	mask := zeroMat(20, 20, gocv.MatTypeCV8U)
	defer mask.Close()
	mask.SetTo(gocv.NewScalar(255, 0, 0, 0))
	before := frame.Clone()
	defer before.Close()

	tintRegion(&frame, mask, Tint{})
	assert.True(t, matsEqual(t, before, frame))
}
