// Package server implements the MCP (Model Context Protocol) server for
// answer-sheet recognition.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - omr_image_info: Load a sheet image and describe it
//   - omr_process_sheet: Full recognition, one answer per question
//   - omr_detect_markers: Corner marker candidates and the alignment homography
//   - omr_cell_grid: Answer cell rectangles of a template (no image)
//   - omr_render_overlay: Aligned sheet with tinted cells, for review
//   - omr_read_header: QR sheet code and printed title from the header band
//   - omr_threshold: Plain global threshold of an image
//   - omr_detect_edges: Canny edge map of the aligned sheet
//   - omr_detect_bubbles: Printed answer bubbles found with a Hough transform
//
// Every sheet tool accepts an optional "config" object with the fields of
// omr.Config. Omitted fields keep their defaults; remove_shadows and
// use_adaptive_threshold default to the server settings.
//
// # Errors
//
// A sheet that cannot be read or recognized is not a protocol error:
// omr_process_sheet and omr_detect_markers return success=false (or
// aligned=false) with an error object whose kind is InputError, ConfigError
// or AlignmentError. A missing path, malformed arguments and exceeded time
// budgets are returned as JSON-RPC errors with code -32000, as are load
// failures in the inspection tools.
//
// # Image Caching
//
// Decoded images are cached by path so that several tools can inspect the
// same scan without decoding it again. The cache is cleared when it reaches
// OMR_MCP_CACHE_LIMIT entries.
//
// # Usage
//
//	srv := server.New()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
