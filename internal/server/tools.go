package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the sheet image (PNG, JPEG or GIF)",
	}
}

func alignedProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Work on the sheet aligned to the template. false uses the image as loaded",
		"default":     true,
	}
}

// configProperty describes the per-call sheet configuration. Omitted fields
// keep their defaults.
func configProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Sheet template and recognition settings. Omitted fields keep their defaults.",
		"properties": map[string]interface{}{
			"num_questions": map[string]interface{}{
				"type":        "integer",
				"description": "Number of questions (grid columns)",
				"default":     10,
			},
			"choices_per_question": map[string]interface{}{
				"type":        "integer",
				"description": "Choices per question (grid rows)",
				"default":     4,
			},
			"template_size": map[string]interface{}{
				"type":        "object",
				"description": "Canonical template size in pixels",
				"properties": map[string]interface{}{
					"width":  map[string]interface{}{"type": "integer", "default": 800},
					"height": map[string]interface{}{"type": "integer", "default": 1000},
				},
			},
			"margin": map[string]interface{}{
				"type":        "integer",
				"description": "Outer margin before the alignment squares",
				"default":     40,
			},
			"alignment_square_size": map[string]interface{}{
				"type":        "integer",
				"description": "Side of each corner alignment square",
				"default":     40,
			},
			"mark_threshold": map[string]interface{}{
				"type":        "number",
				"description": "Fraction of dark pixels at which a cell counts as marked, in (0, 1]",
				"default":     0.15,
			},
			"use_adaptive_threshold": map[string]interface{}{
				"type":        "boolean",
				"description": "Compare pixels to their neighborhood mean instead of a global level",
				"default":     false,
			},
			"remove_shadows": map[string]interface{}{
				"type":        "boolean",
				"description": "Flatten uneven lighting before alignment",
				"default":     true,
			},
			"header_height": map[string]interface{}{
				"type":        "integer",
				"description": "Height of the title/QR band below the top markers",
				"default":     0,
			},
			"cell_padding": map[string]interface{}{
				"type":        "integer",
				"description": "Pixels trimmed from each side of a cell before sampling",
				"default":     3,
			},
			"global_threshold": map[string]interface{}{
				"type":        "integer",
				"description": "Gray level above which a pixel is paper (global mode)",
				"default":     200,
			},
			"adaptive_block_radius": map[string]interface{}{
				"type":        "integer",
				"description": "Half-size of the adaptive mean window",
				"default":     25,
			},
			"adaptive_offset": map[string]interface{}{
				"type":        "integer",
				"description": "Subtracted from the adaptive mean",
				"default":     10,
			},
			"min_marker_area": map[string]interface{}{
				"type":        "integer",
				"description": "Smallest alignment square area in working pixels",
				"default":     300,
			},
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "omr_image_info",
			Description: "Load a sheet image and return its dimensions, format and channel count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_process_sheet",
			Description: "Recognize the marked answers on a photographed or scanned answer sheet. Returns one answer per question: the chosen choice index, or null when the question is blank or has more than one mark.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"config": configProperty(),
					"timeout_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Wall-clock budget in milliseconds. 0 uses the server default",
						"default":     0,
					},
					"include_images": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the shadow-removed, aligned, binary and overlay images as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_detect_markers",
			Description: "Find the corner alignment squares on a sheet. Returns all candidates, the selected corners and the alignment homography, or why alignment failed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"config": configProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_cell_grid",
			Description: "Compute the answer cell rectangles of a template in canonical coordinates. Needs no image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"config": configProperty(),
				},
			},
		},
		{
			Name:        "omr_render_overlay",
			Description: "Recognize a sheet and return the aligned image with every cell outlined and marked cells tinted (green for valid answers, red for blank or multiple marks) as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"config": configProperty(),
					"marked_color": map[string]interface{}{
						"type":        "string",
						"description": "Fill for marked cells of valid questions (#RRGGBB)",
						"default":     "#2ca02c",
					},
					"invalid_color": map[string]interface{}{
						"type":        "string",
						"description": "Fill for marked cells of invalid questions (#RRGGBB)",
						"default":     "#d62728",
					},
					"outline_color": map[string]interface{}{
						"type":        "string",
						"description": "Cell outline color (#RRGGBB)",
						"default":     "#1f77b4",
					},
					"opacity": map[string]interface{}{
						"type":        "number",
						"description": "Fill opacity from 0 to 1",
						"default":     0.45,
					},
					"labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw question numbers above each column",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_read_header",
			Description: "Align a sheet and read its header band: the QR sheet code and, with Tesseract installed, the printed title. Requires config.header_height > 0.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"config": configProperty(),
					"ocr": map[string]interface{}{
						"type":        "boolean",
						"description": "Also read the printed title with Tesseract",
						"default":     true,
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Empty uses the server default",
						"default":     "eng",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_threshold",
			Description: "Apply a plain global threshold to an image and return the black and white result as base64 PNG. Useful to check how a capture binarizes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"level": map[string]interface{}{
						"type":        "integer",
						"description": "Threshold level from 0 to 255",
						"default":     127,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_detect_edges",
			Description: "Run Canny edge detection on the aligned sheet (or the raw image with aligned=false) and return the edge map as base64 PNG with the fraction of edge pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"config":  configProperty(),
					"aligned": alignedProperty(),
					"low_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Gradient magnitude above which a pixel connected to a strong edge is kept",
						"default":     50,
					},
					"high_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Gradient magnitude above which a pixel is a strong edge",
						"default":     150,
					},
					"blur_radius": map[string]interface{}{
						"type":        "number",
						"description": "Gaussian blur radius applied first. 0 disables it",
						"default":     1,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_detect_bubbles",
			Description: "Find printed answer bubbles (circles) on the aligned sheet with a Hough transform. Returns each circle's center, radius and fill ratio, whether it is filled, and on an aligned sheet the question and choice it belongs to.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"config":  configProperty(),
					"aligned": alignedProperty(),
					"min_radius": map[string]interface{}{
						"type":        "integer",
						"description": "Smallest radius searched. Defaults to a quarter of the smallest cell side on an aligned sheet, else 10",
					},
					"max_radius": map[string]interface{}{
						"type":        "integer",
						"description": "Largest radius searched. Defaults to half the smallest cell side on an aligned sheet, else 100",
					},
					"min_distance": map[string]interface{}{
						"type":        "number",
						"description": "Smallest distance between two circle centers",
						"default":     20,
					},
					"min_votes": map[string]interface{}{
						"type":        "integer",
						"description": "Accumulator votes a center needs",
						"default":     30,
					},
					"min_support": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of the circumference that must be covered by edges",
						"default":     0.75,
					},
					"filled_ratio": map[string]interface{}{
						"type":        "number",
						"description": "Dark fraction inside a bubble at which it counts as filled",
						"default":     0.5,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
