package fieldstab

import (
	"image"

	"github.com/pkg/errors"
)

// HSVRange Inclusive lower/upper corners of an HSV box (OpenCV scale: H 0-180, S and V 0-255)
type HSVRange struct {
	Low  [3]float64 `json:"low" toml:"low"`
	High [3]float64 `json:"high" toml:"high"`
}

// OverlayPanel Fixed rectangle covered by broadcast graphics (scoreboard, clock)
type OverlayPanel struct {
	Left   int `json:"left" toml:"left"`
	Top    int `json:"top" toml:"top"`
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

// Rect returns the panel rectangle moved by offset.
func (o OverlayPanel) Rect(offset image.Point) image.Rectangle {
	return image.Rect(o.Left, o.Top, o.Left+o.Width, o.Top+o.Height).Add(offset)
}

// Config Constants of the masking and stabilization pipeline
type Config struct {
	// Black margin added around frames before estimation, split half and half per side
	BorderWidth  int `json:"border_width" toml:"border_width"`
	BorderHeight int `json:"border_height" toml:"border_height"`

	FieldDilation  int `json:"field_dilation" toml:"field_dilation"`
	FieldErosion   int `json:"field_erosion" toml:"field_erosion"`
	PublicErosion  int `json:"public_erosion" toml:"public_erosion"`
	PublicDilation int `json:"public_dilation" toml:"public_dilation"`

	SingularityBorder int `json:"singularity_border" toml:"singularity_border"`

	// Side of the box blur used by conditioning
	BlurSize int `json:"blur_size" toml:"blur_size"`

	// Mask values above RelevantAbove are "set", values below IrrelevantBelow are "unset"
	RelevantAbove   uint8 `json:"relevant_above" toml:"relevant_above"`
	IrrelevantBelow uint8 `json:"irrelevant_below" toml:"irrelevant_below"`

	Grass   HSVRange     `json:"grass" toml:"grass"`
	Overlay OverlayPanel `json:"overlay" toml:"overlay"`
}

// DefaultConfig returns the calibration of the reference broadcast framing.
func DefaultConfig() Config {
	return Config{
		BorderWidth:       60,
		BorderHeight:      60,
		FieldDilation:     1,
		FieldErosion:      5,
		PublicErosion:     5,
		PublicDilation:    20,
		SingularityBorder: 80,
		BlurSize:          30,
		RelevantAbove:     250,
		IrrelevantBelow:   10,
		Grass: HSVRange{
			Low:  [3]float64{35, 50, 100},
			High: [3]float64{70, 255, 200},
		},
		Overlay: OverlayPanel{Left: 80, Top: 40, Width: 290, Height: 40},
	}
}

// BorderOffset returns where the original frame starts inside a bordered frame.
func (c Config) BorderOffset() image.Point {
	return image.Pt(c.BorderWidth/2, c.BorderHeight/2)
}

// Validate checks that every constant is usable by the pipeline
func (c Config) Validate() error {
	if c.BorderWidth < 0 || c.BorderHeight < 0 {
		return errors.Errorf("border must not be negative, got %dx%d", c.BorderWidth, c.BorderHeight)
	}
	radii := map[string]int{
		"field_dilation":     c.FieldDilation,
		"field_erosion":      c.FieldErosion,
		"public_erosion":     c.PublicErosion,
		"public_dilation":    c.PublicDilation,
		"singularity_border": c.SingularityBorder,
	}
	for name, v := range radii {
		if v < 0 {
			return errors.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	if c.BlurSize < 1 {
		return errors.Errorf("blur_size must be at least 1, got %d", c.BlurSize)
	}
	if c.IrrelevantBelow > c.RelevantAbove {
		return errors.Errorf("irrelevant_below (%d) is above relevant_above (%d)", c.IrrelevantBelow, c.RelevantAbove)
	}
	for i := range c.Grass.Low {
		if c.Grass.Low[i] > c.Grass.High[i] {
			return errors.Errorf("grass range is inverted on channel %d", i)
		}
	}
	if c.Overlay.Width <= 0 || c.Overlay.Height <= 0 {
		return errors.Errorf("overlay panel is empty (%dx%d)", c.Overlay.Width, c.Overlay.Height)
	}
	return nil
}
