// Package imaging provides the pixel-level stages of sheet recognition.
//
// It loads and caches scans, normalizes uneven illumination, binarizes
// sheets, finds Canny edges and renders review overlays. Everything here works on standard
// image.Image values; grayscale stages return zero-origin *image.Gray images
// whose Pix slice has no row padding.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles follow the
// image.Rectangle convention: Min is inclusive, Max is exclusive.
//
// # Binary Images
//
// Binarize produces exactly two levels. MarkLevel (0) is ink and
// BackgroundLevel (255) is paper. Downstream classification counts pixels
// below 128 as ink.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless, never mutates its inputs and can be called concurrently.
package imaging
