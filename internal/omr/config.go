package omr

import (
	"fmt"
	"math"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/imaging"
	"github.com/ironsheep/omr-mcp/internal/sheet"
)

// Size is a template size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config describes the printed template and the recognition thresholds.
type Config struct {
	NumQuestions         int     `json:"num_questions"`
	ChoicesPerQuestion   int     `json:"choices_per_question"`
	TemplateSize         Size    `json:"template_size"`
	Margin               int     `json:"margin"`
	AlignmentSquareSize  int     `json:"alignment_square_size"`
	MarkThreshold        float64 `json:"mark_threshold"`
	UseAdaptiveThreshold bool    `json:"use_adaptive_threshold"`
	RemoveShadows        bool    `json:"remove_shadows"`

	// HeaderHeight reserves a band below the top markers for the title and
	// sheet code. The answer grid starts below it.
	HeaderHeight int `json:"header_height"`

	// CellPadding shrinks every sampled cell on each side so printed grid
	// lines are not counted as ink.
	CellPadding int `json:"cell_padding"`

	GlobalThreshold     int `json:"global_threshold"`
	AdaptiveBlockRadius int `json:"adaptive_block_radius"`
	AdaptiveOffset      int `json:"adaptive_offset"`
	MinMarkerArea       int `json:"min_marker_area"`
}

// DefaultConfig returns the settings for the standard 800x1000 sheet with
// ten questions of four choices.
func DefaultConfig() Config {
	return Config{
		NumQuestions:        10,
		ChoicesPerQuestion:  4,
		TemplateSize:        Size{Width: 800, Height: 1000},
		Margin:              40,
		AlignmentSquareSize: 40,
		MarkThreshold:       0.15,
		RemoveShadows:       true,
		CellPadding:         3,
		GlobalThreshold:     200,
		AdaptiveBlockRadius: 25,
		AdaptiveOffset:      10,
		MinMarkerArea:       300,
	}
}

// Validate reports the first structural problem as a ConfigError.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return newError(ConfigError, err)
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.TemplateSize.Width <= 0 || c.TemplateSize.Height <= 0:
		return fmt.Errorf("template_size must be positive, got %dx%d", c.TemplateSize.Width, c.TemplateSize.Height)
	case math.IsNaN(c.MarkThreshold) || c.MarkThreshold <= 0 || c.MarkThreshold > 1:
		return fmt.Errorf("mark_threshold must be in (0, 1], got %v", c.MarkThreshold)
	case c.GlobalThreshold < 1 || c.GlobalThreshold > 254:
		return fmt.Errorf("global_threshold must be in [1, 254], got %d", c.GlobalThreshold)
	case c.AdaptiveBlockRadius <= 0:
		return fmt.Errorf("adaptive_block_radius must be positive, got %d", c.AdaptiveBlockRadius)
	case c.AdaptiveOffset < 0:
		return fmt.Errorf("adaptive_offset must not be negative, got %d", c.AdaptiveOffset)
	case c.MinMarkerArea <= 0:
		return fmt.Errorf("min_marker_area must be positive, got %d", c.MinMarkerArea)
	}
	return c.Layout().Validate()
}

// Layout returns the grid geometry of the template.
func (c Config) Layout() sheet.Layout {
	return sheet.Layout{
		Width:        c.TemplateSize.Width,
		Height:       c.TemplateSize.Height,
		Margin:       c.Margin,
		SquareSize:   c.AlignmentSquareSize,
		HeaderHeight: c.HeaderHeight,
		Questions:    c.NumQuestions,
		Choices:      c.ChoicesPerQuestion,
		Padding:      c.CellPadding,
	}
}

// BinarizeOptions returns the binarizer settings.
func (c Config) BinarizeOptions() imaging.BinarizeOptions {
	opts := imaging.DefaultBinarizeOptions()
	if c.UseAdaptiveThreshold {
		opts.Mode = imaging.ModeAdaptive
	}
	opts.Level = uint8(c.GlobalThreshold)
	opts.BlockRadius = c.AdaptiveBlockRadius
	opts.Offset = c.AdaptiveOffset
	return opts
}

// MarkerOptions returns the marker detector settings.
func (c Config) MarkerOptions() detection.MarkerOptions {
	opts := detection.DefaultMarkerOptions()
	opts.MinArea = c.MinMarkerArea
	return opts
}

// workingSize is the largest image the pipeline processes before
// downscaling: 1.5 times the template in each direction.
func (c Config) workingSize() (int, int) {
	return c.TemplateSize.Width * 3 / 2, c.TemplateSize.Height * 3 / 2
}
