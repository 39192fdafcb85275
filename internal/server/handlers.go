package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/imaging"
	"github.com/ironsheep/omr-mcp/internal/ocr"
	"github.com/ironsheep/omr-mcp/internal/omr"
	"github.com/ironsheep/omr-mcp/internal/sheet"
	"github.com/ironsheep/omr-mcp/internal/sheetcode"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_process_sheet").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// A sheet that cannot be read or recognized is a normal result with
// success=false. Unusable arguments, exceeded time budgets and failures of
// the inspection tools return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if s.settings.Debug() {
			log.Printf("tool %s failed: %v", params.Name, err)
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": s.mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "omr_image_info":
		return s.handleImageInfo(args)
	case "omr_process_sheet":
		return s.handleProcessSheet(args)
	case "omr_detect_markers":
		return s.handleDetectMarkers(args)
	case "omr_cell_grid":
		return s.handleCellGrid(args)
	case "omr_render_overlay":
		return s.handleRenderOverlay(args)
	case "omr_read_header":
		return s.handleReadHeader(args)
	case "omr_threshold":
		return s.handleThreshold(args)
	case "omr_detect_edges":
		return s.handleDetectEdges(args)
	case "omr_detect_bubbles":
		return s.handleDetectBubbles(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string, logging the cause in
// debug mode.
func (s *Server) mustMarshalJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil && s.settings.Debug() {
		log.Printf("failed to marshal tool result %T: %v", v, err)
	}
	return string(b)
}

// unmarshalArgs accepts a missing arguments object as empty.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// sheetConfig overlays the per-call config on the server defaults.
func (s *Server) sheetConfig(raw json.RawMessage) (omr.Config, error) {
	cfg := omr.DefaultConfig()
	cfg.RemoveShadows = s.settings.RemoveShadows
	cfg.UseAdaptiveThreshold = s.settings.AdaptiveThreshold
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var errPathRequired = errors.New("path is required")

// loadImage reads a sheet through the cache, clearing it first when it has
// reached the configured limit.
func (s *Server) loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, errPathRequired
	}
	if s.settings.CacheLimit > 0 && s.cache.Len() >= s.settings.CacheLimit {
		s.cache.Clear()
	}
	return s.cache.Load(path)
}

// loadSheet reads the sheet for a recognition tool. Only a missing path is
// a protocol error; a file that cannot be read or decoded comes back as a
// failed Result with an InputError.
func (s *Server) loadSheet(path string) (image.Image, *omr.Result, error) {
	if path == "" {
		return nil, nil, errPathRequired
	}
	img, err := s.loadImage(path)
	if err != nil {
		return nil, omr.Failed(omr.NewInputError(err)), nil
	}
	return img, nil, nil
}

// process runs the pipeline with a wall-clock budget. The budget is caller
// policy: when it expires the call returns at once and the pipeline stops
// at its next stage boundary.
func (s *Server) process(img image.Image, cfg omr.Config, timeoutMS int) (*omr.Result, error) {
	if timeoutMS <= 0 {
		timeoutMS = s.settings.TimeoutMS
	}
	if timeoutMS <= 0 {
		return s.processor.Process(img, cfg), nil
	}

	budget := time.Duration(timeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	type outcome struct {
		res *omr.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.processor.ProcessContext(ctx, img, cfg)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("sheet processing exceeded %v: %w", budget, o.err)
		}
		return o.res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("sheet processing exceeded %v: %w", budget, ctx.Err())
	}
}

// === Image Information ===

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errPathRequired
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Sheet Recognition ===

type processSheetArgs struct {
	Path          string          `json:"path"`
	Config        json.RawMessage `json:"config"`
	TimeoutMS     int             `json:"timeout_ms"`
	IncludeImages *bool           `json:"include_images"`
}

func (s *Server) handleProcessSheet(args json.RawMessage) (interface{}, error) {
	var a processSheetArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.sheetConfig(a.Config)
	if err != nil {
		return nil, err
	}
	img, failed, err := s.loadSheet(a.Path)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return newSheetResult(failed), nil
	}

	res, err := s.process(img, cfg, a.TimeoutMS)
	if err != nil {
		return nil, err
	}

	include := s.settings.IncludeImages
	if a.IncludeImages != nil {
		include = *a.IncludeImages
	}
	out := newSheetResult(res)
	if include {
		images, err := diagnosticImages(res)
		if err != nil {
			return nil, err
		}
		out.Images = images
	}
	return out, nil
}

func (s *Server) handleDetectMarkers(args json.RawMessage) (interface{}, error) {
	var a processSheetArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.sheetConfig(a.Config)
	if err != nil {
		return nil, err
	}
	img, failed, err := s.loadSheet(a.Path)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return newMarkerResult(failed), nil
	}
	res, err := s.process(img, cfg, a.TimeoutMS)
	if err != nil {
		return nil, err
	}
	return newMarkerResult(res), nil
}

type cellGridArgs struct {
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleCellGrid(args json.RawMessage) (interface{}, error) {
	var a cellGridArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.sheetConfig(a.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout := cfg.Layout()
	cells, err := sheet.MapCells(layout)
	if err != nil {
		return nil, err
	}
	return &cellGridResult{
		Layout:     layout,
		GridArea:   rectOf(layout.GridArea()),
		HeaderArea: rectOf(layout.HeaderArea()),
		Cells:      cells,
	}, nil
}

type renderOverlayArgs struct {
	Path         string          `json:"path"`
	Config       json.RawMessage `json:"config"`
	TimeoutMS    int             `json:"timeout_ms"`
	MarkedColor  string          `json:"marked_color"`
	InvalidColor string          `json:"invalid_color"`
	OutlineColor string          `json:"outline_color"`
	Opacity      *float64        `json:"opacity"`
	Labels       *bool           `json:"labels"`
}

func (s *Server) handleRenderOverlay(args json.RawMessage) (interface{}, error) {
	var a renderOverlayArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.sheetConfig(a.Config)
	if err != nil {
		return nil, err
	}

	opts := imaging.DefaultOverlayOptions()
	if a.MarkedColor != "" {
		opts.MarkedColor = a.MarkedColor
	}
	if a.InvalidColor != "" {
		opts.InvalidColor = a.InvalidColor
	}
	if a.OutlineColor != "" {
		opts.OutlineColor = a.OutlineColor
	}
	if a.Opacity != nil {
		opts.Opacity = *a.Opacity
	}
	if a.Labels != nil {
		opts.Labels = *a.Labels
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.process(img, cfg, a.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if res.Diagnostics.Aligned == nil {
		return nil, fmt.Errorf("cannot render overlay: %w", res.Err)
	}

	overlay, err := imaging.RenderOverlay(res.Diagnostics.Aligned, overlayCells(res), opts)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(overlay)
	if err != nil {
		return nil, err
	}
	return &overlayResult{
		Success: res.Success,
		Answers: res.Answers,
		Overlay: encoded,
	}, nil
}

type readHeaderArgs struct {
	Path      string          `json:"path"`
	Config    json.RawMessage `json:"config"`
	TimeoutMS int             `json:"timeout_ms"`
	OCR       *bool           `json:"ocr"`
	Language  string          `json:"language"`
}

func (s *Server) handleReadHeader(args json.RawMessage) (interface{}, error) {
	var a readHeaderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.sheetConfig(a.Config)
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout()
	header := layout.HeaderArea()
	if header.Empty() {
		return nil, sheetcode.ErrNoHeader
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.process(img, cfg, a.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if res.Diagnostics.Aligned == nil {
		return nil, fmt.Errorf("cannot read header: %w", res.Err)
	}
	aligned := res.Diagnostics.Aligned

	out := &headerResult{HeaderArea: rectOf(header)}
	if code, err := sheetcode.ReadHeader(aligned, layout); err != nil {
		out.CodeError = err.Error()
	} else {
		out.Code = code
	}

	if a.OCR == nil || *a.OCR {
		lang := a.Language
		if lang == "" {
			lang = s.settings.OCRLanguage
		}
		title, err := ocr.ReadRegion(aligned, titleArea(header), ocr.Options{
			Language:   lang,
			Scale:      2,
			SingleLine: true,
		})
		if err != nil {
			out.TitleError = err.Error()
		} else {
			out.Title = title
		}
	}
	return out, nil
}

// titleArea is the header band left of the square reserved for the QR code.
func titleArea(header image.Rectangle) image.Rectangle {
	r := header
	r.Max.X -= header.Dy()
	if r.Dx() < 1 {
		r.Max.X = r.Min.X + 1
	}
	return r
}

type thresholdArgs struct {
	Path  string `json:"path"`
	Level *int   `json:"level"`
}

func (s *Server) handleThreshold(args json.RawMessage) (interface{}, error) {
	var a thresholdArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	level := imaging.LegacyThresholdLevel
	if a.Level != nil {
		level = *a.Level
	}
	if level < 0 || level > 255 {
		return nil, fmt.Errorf("level must be in [0, 255], got %d", level)
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	bin := imaging.SimpleThreshold(img, uint8(level))
	encoded, err := imaging.EncodePNG(bin)
	if err != nil {
		return nil, err
	}
	dark := 0
	for _, v := range bin.Pix {
		if v < 128 {
			dark++
		}
	}
	return &thresholdResult{
		Level:        level,
		DarkFraction: float64(dark) / float64(len(bin.Pix)),
		Image:        encoded,
	}, nil
}

// === Shape Inspection ===

// inspectionImage returns the grayscale image the shape tools work on: the
// aligned sheet by default, or the loaded image as is when aligned is false.
func (s *Server) inspectionImage(path string, raw json.RawMessage, timeoutMS int, aligned *bool) (*image.Gray, omr.Config, bool, error) {
	cfg, err := s.sheetConfig(raw)
	if err != nil {
		return nil, cfg, false, err
	}
	img, err := s.loadImage(path)
	if err != nil {
		return nil, cfg, false, err
	}
	if aligned != nil && !*aligned {
		return imaging.ToGray(img), cfg, false, nil
	}
	res, err := s.process(img, cfg, timeoutMS)
	if err != nil {
		return nil, cfg, false, err
	}
	if res.Diagnostics.Aligned == nil {
		return nil, cfg, false, fmt.Errorf("cannot align sheet: %w", res.Err)
	}
	return res.Diagnostics.Aligned, cfg, true, nil
}

type detectEdgesArgs struct {
	Path       string          `json:"path"`
	Config     json.RawMessage `json:"config"`
	TimeoutMS  int             `json:"timeout_ms"`
	Aligned    *bool           `json:"aligned"`
	Low        *float64        `json:"low_threshold"`
	High       *float64        `json:"high_threshold"`
	BlurRadius *float64        `json:"blur_radius"`
}

func (s *Server) handleDetectEdges(args json.RawMessage) (interface{}, error) {
	var a detectEdgesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	opts := imaging.DefaultEdgeOptions()
	if a.Low != nil {
		opts.Low = *a.Low
	}
	if a.High != nil {
		opts.High = *a.High
	}
	if a.BlurRadius != nil {
		opts.BlurRadius = *a.BlurRadius
	}
	if opts.Low < 0 || opts.High < opts.Low {
		return nil, fmt.Errorf("thresholds must satisfy 0 <= low <= high, got %v and %v", opts.Low, opts.High)
	}
	if opts.BlurRadius < 0 {
		return nil, fmt.Errorf("blur_radius must not be negative, got %v", opts.BlurRadius)
	}
	if a.Path == "" {
		return nil, errPathRequired
	}

	gray, _, aligned, err := s.inspectionImage(a.Path, a.Config, a.TimeoutMS, a.Aligned)
	if err != nil {
		return nil, err
	}
	edges := imaging.DetectEdges(gray, opts)
	encoded, err := imaging.EncodePNG(edges)
	if err != nil {
		return nil, err
	}
	return &edgeResult{
		Aligned:       aligned,
		LowThreshold:  opts.Low,
		HighThreshold: opts.High,
		EdgeFraction:  imaging.EdgeFraction(edges),
		Image:         encoded,
	}, nil
}

type detectBubblesArgs struct {
	Path        string          `json:"path"`
	Config      json.RawMessage `json:"config"`
	TimeoutMS   int             `json:"timeout_ms"`
	Aligned     *bool           `json:"aligned"`
	MinRadius   *int            `json:"min_radius"`
	MaxRadius   *int            `json:"max_radius"`
	MinDistance *float64        `json:"min_distance"`
	MinVotes    *int            `json:"min_votes"`
	MinSupport  *float64        `json:"min_support"`
	FilledRatio *float64        `json:"filled_ratio"`
}

// defaultFilledRatio is the dark share inside a bubble at which it counts
// as filled.
const defaultFilledRatio = 0.5

func (s *Server) handleDetectBubbles(args json.RawMessage) (interface{}, error) {
	var a detectBubblesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errPathRequired
	}
	gray, cfg, aligned, err := s.inspectionImage(a.Path, a.Config, a.TimeoutMS, a.Aligned)
	if err != nil {
		return nil, err
	}

	var cells []sheet.CellRegion
	opts := detection.DefaultCircleOptions()
	if aligned {
		// Aligned sheets are in template coordinates, where a bubble fits
		// inside a padded cell.
		if cells, err = sheet.MapCells(cfg.Layout()); err != nil {
			return nil, err
		}
		opts.MaxRadius, opts.MinRadius = bubbleRadii(cells)
	}
	if a.MinRadius != nil {
		opts.MinRadius = *a.MinRadius
	}
	if a.MaxRadius != nil {
		opts.MaxRadius = *a.MaxRadius
	}
	if a.MinDistance != nil {
		opts.MinDistance = *a.MinDistance
	}
	if a.MinVotes != nil {
		opts.MinVotes = *a.MinVotes
	}
	if a.MinSupport != nil {
		opts.MinSupport = *a.MinSupport
	}
	filledRatio := defaultFilledRatio
	if a.FilledRatio != nil {
		filledRatio = *a.FilledRatio
	}
	if filledRatio <= 0 || filledRatio > 1 {
		return nil, fmt.Errorf("filled_ratio must be in (0, 1], got %v", filledRatio)
	}

	circles, err := detection.DetectCircles(gray, opts)
	if err != nil {
		return nil, err
	}
	return newBubbleResult(circles, cells, aligned, filledRatio), nil
}

// bubbleRadii returns the search range for bubbles drawn inside cells: up
// to half the shorter side of the smallest cell, down to half of that.
func bubbleRadii(cells []sheet.CellRegion) (maxRadius, minRadius int) {
	side := 0
	for _, c := range cells {
		m := c.W
		if c.H < m {
			m = c.H
		}
		if side == 0 || m < side {
			side = m
		}
	}
	maxRadius = side / 2
	if maxRadius < 2 {
		maxRadius = 2
	}
	return maxRadius, maxRadius / 2
}
