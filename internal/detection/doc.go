// Package detection finds the alignment markers printed in the four corners
// of an answer sheet, and the round answer bubbles printed inside its cells.
//
// DetectMarkers turns a grayscale sheet into marker candidates: dark,
// solid, roughly square connected components. SelectCorners then keeps the
// one candidate nearest each corner of the candidates' extent and checks
// that the four agree in size and enclose every other candidate.
//
// DetectCircles finds bubbles with a gradient Hough transform over the
// Canny edges of the sheet.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// Marker centers are centroids in continuous coordinates, so the pixel at
// (x, y) contributes the point (x+0.5, y+0.5).
//
// # Limitations
//
// Markers must be darker than the surrounding paper and separated from
// other ink by a few pixels. Sheets photographed at more than about 45
// degrees of rotation produce the wrong corner roles.
package detection
