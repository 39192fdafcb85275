package server

import (
	"image"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/imaging"
	"github.com/ironsheep/omr-mcp/internal/ocr"
	"github.com/ironsheep/omr-mcp/internal/omr"
	"github.com/ironsheep/omr-mcp/internal/sheet"
	"github.com/ironsheep/omr-mcp/internal/sheetcode"
)

// rect is an image.Rectangle in tool output.
type rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func rectOf(r image.Rectangle) rect {
	return rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// namedCorner is a selected alignment marker with its role.
type namedCorner struct {
	Corner string           `json:"corner"`
	Marker detection.Marker `json:"marker"`
}

func namedCorners(corners []detection.Marker) []namedCorner {
	if len(corners) != 4 {
		return nil
	}
	out := make([]namedCorner, 4)
	for i, m := range corners {
		out[i] = namedCorner{Corner: geometry.CornerNames[i], Marker: m}
	}
	return out
}

// sheetResult is the omr_process_sheet output.
type sheetResult struct {
	Success bool           `json:"success"`
	Stage   omr.Stage      `json:"stage"`
	Answers []sheet.Answer `json:"answers"`
	Error   *omr.Error     `json:"error,omitempty"`

	WorkingScale      float64       `json:"working_scale"`
	Corners           []namedCorner `json:"markers,omitempty"`
	Homography        [][]float64   `json:"homography,omitempty"`
	ReprojectionError float64       `json:"reprojection_error"`

	// FillRatios is indexed [question][choice].
	FillRatios [][]float64 `json:"fill_ratios,omitempty"`

	Images map[string]*imaging.EncodedImage `json:"images,omitempty"`
}

func newSheetResult(res *omr.Result) *sheetResult {
	d := res.Diagnostics
	out := &sheetResult{
		Success:           res.Success,
		Stage:             res.Stage,
		Answers:           res.Answers,
		Error:             res.Err,
		WorkingScale:      d.WorkingScale,
		Corners:           namedCorners(d.Corners),
		ReprojectionError: d.ReprojectionError,
		FillRatios:        fillRatios(d.Cells),
	}
	if d.Aligned != nil {
		out.Homography = d.Homography.Rows()
	}
	return out
}

func fillRatios(states []sheet.MarkState) [][]float64 {
	if len(states) == 0 {
		return nil
	}
	questions, choices := 0, 0
	for _, st := range states {
		if st.Cell.Question+1 > questions {
			questions = st.Cell.Question + 1
		}
		if st.Cell.Choice+1 > choices {
			choices = st.Cell.Choice + 1
		}
	}
	out := make([][]float64, questions)
	for q := range out {
		out[q] = make([]float64, choices)
	}
	for _, st := range states {
		out[st.Cell.Question][st.Cell.Choice] = st.FillRatio
	}
	return out
}

// overlayCells converts the cell states of a run for RenderOverlay.
func overlayCells(res *omr.Result) []imaging.OverlayCell {
	cells := make([]imaging.OverlayCell, len(res.Diagnostics.Cells))
	for i, st := range res.Diagnostics.Cells {
		invalid := true
		if q := st.Cell.Question; q < len(res.Answers) {
			invalid = !res.Answers[q].Valid
		}
		cells[i] = imaging.OverlayCell{
			Rect:     st.Cell.Rect(),
			Question: st.Cell.Question,
			Choice:   st.Cell.Choice,
			Marked:   st.Marked,
			Invalid:  invalid,
		}
	}
	return cells
}

// diagnosticImages encodes the intermediate images that the run produced.
func diagnosticImages(res *omr.Result) (map[string]*imaging.EncodedImage, error) {
	d := res.Diagnostics
	images := make(map[string]*imaging.EncodedImage)
	for name, img := range map[string]*image.Gray{
		"shadow_removed": d.ShadowRemoved,
		"aligned":        d.Aligned,
		"binary":         d.Binary,
	} {
		if img == nil {
			continue
		}
		enc, err := imaging.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		images[name] = enc
	}

	if d.Aligned != nil && len(d.Cells) > 0 {
		overlay, err := imaging.RenderOverlay(d.Aligned, overlayCells(res), imaging.DefaultOverlayOptions())
		if err != nil {
			return nil, err
		}
		enc, err := imaging.EncodePNG(overlay)
		if err != nil {
			return nil, err
		}
		images["overlay"] = enc
	}
	return images, nil
}

// markerResult is the omr_detect_markers output.
type markerResult struct {
	Aligned           bool               `json:"aligned"`
	Error             *omr.Error         `json:"error,omitempty"`
	WorkingScale      float64            `json:"working_scale"`
	Candidates        []detection.Marker `json:"candidates"`
	Corners           []namedCorner      `json:"corners,omitempty"`
	Homography        [][]float64        `json:"homography,omitempty"`
	ReprojectionError float64            `json:"reprojection_error"`
}

func newMarkerResult(res *omr.Result) *markerResult {
	d := res.Diagnostics
	out := &markerResult{
		Aligned:           d.Aligned != nil,
		WorkingScale:      d.WorkingScale,
		Candidates:        d.Markers,
		Corners:           namedCorners(d.Corners),
		ReprojectionError: d.ReprojectionError,
	}
	if out.Candidates == nil {
		out.Candidates = []detection.Marker{}
	}
	if out.Aligned {
		out.Homography = d.Homography.Rows()
	} else {
		out.Error = res.Err
	}
	return out
}

// cellGridResult is the omr_cell_grid output.
type cellGridResult struct {
	Layout     sheet.Layout       `json:"layout"`
	GridArea   rect               `json:"grid_area"`
	HeaderArea rect               `json:"header_area"`
	Cells      []sheet.CellRegion `json:"cells"`
}

// overlayResult is the omr_render_overlay output.
type overlayResult struct {
	Success bool                  `json:"success"`
	Answers []sheet.Answer        `json:"answers"`
	Overlay *imaging.EncodedImage `json:"overlay"`
}

// headerResult is the omr_read_header output.
type headerResult struct {
	HeaderArea rect            `json:"header_area"`
	Code       *sheetcode.Code `json:"code"`
	CodeError  string          `json:"code_error,omitempty"`
	Title      *ocr.Result     `json:"title,omitempty"`
	TitleError string          `json:"title_error,omitempty"`
}

// thresholdResult is the omr_threshold output.
type thresholdResult struct {
	Level        int                   `json:"level"`
	DarkFraction float64               `json:"dark_fraction"`
	Image        *imaging.EncodedImage `json:"image"`
}

// edgeResult is the omr_detect_edges output.
type edgeResult struct {
	Aligned       bool                  `json:"aligned"`
	LowThreshold  float64               `json:"low_threshold"`
	HighThreshold float64               `json:"high_threshold"`
	EdgeFraction  float64               `json:"edge_fraction"`
	Image         *imaging.EncodedImage `json:"image"`
}

// bubble is a detected circle, with the answer cell that contains its
// center on an aligned sheet.
type bubble struct {
	detection.Circle
	Filled   bool `json:"filled"`
	Question *int `json:"question,omitempty"`
	Choice   *int `json:"choice,omitempty"`
}

// bubbleResult is the omr_detect_bubbles output.
type bubbleResult struct {
	Aligned bool     `json:"aligned"`
	Count   int      `json:"count"`
	Filled  int      `json:"filled"`
	Bubbles []bubble `json:"bubbles"`
}

func newBubbleResult(circles []detection.Circle, cells []sheet.CellRegion, aligned bool, filledRatio float64) *bubbleResult {
	out := &bubbleResult{Aligned: aligned, Count: len(circles), Bubbles: make([]bubble, len(circles))}
	for i, c := range circles {
		b := bubble{Circle: c, Filled: c.FillRatio >= filledRatio}
		if b.Filled {
			out.Filled++
		}
		at := image.Pt(int(c.Center.X), int(c.Center.Y))
		for _, cell := range cells {
			if at.In(cell.Rect()) {
				q, ch := cell.Question, cell.Choice
				b.Question, b.Choice = &q, &ch
				break
			}
		}
		out.Bubbles[i] = b
	}
	return out
}
