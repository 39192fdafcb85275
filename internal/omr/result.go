package omr

import (
	"image"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/sheet"
)

// Stage is the last pipeline step a run reached.
type Stage int

const (
	StageFailed Stage = iota
	StageLoaded
	StageShadowRemoved
	StageAligned
	StageBinarized
	StageClassified
	StageValidated
)

var stageNames = map[Stage]string{
	StageFailed:        "failed",
	StageLoaded:        "loaded",
	StageShadowRemoved: "shadow_removed",
	StageAligned:       "aligned",
	StageBinarized:     "binarized",
	StageClassified:    "classified",
	StageValidated:     "validated",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one run. On success Answers has one entry per
// question; on failure Err explains why and Answers is nil.
type Result struct {
	Success     bool
	Stage       Stage
	Answers     []sheet.Answer
	Diagnostics Diagnostics
	Err         *Error
}

// Diagnostics holds the intermediate products of a run. Fields stay zero
// for stages that were not reached.
type Diagnostics struct {
	// WorkingScale is working size / input size.
	WorkingScale float64

	ShadowRemoved *image.Gray
	Aligned       *image.Gray
	Binary        *image.Gray

	// Markers are all candidates; Corners the selected four, in
	// geometry.TopLeft order, in working image coordinates.
	Markers []detection.Marker
	Corners []detection.Marker

	Homography        geometry.Homography
	ReprojectionError float64

	Cells []sheet.MarkState
}

func (r *Result) failed(err *Error) *Result {
	r.Success = false
	r.Stage = StageFailed
	r.Answers = nil
	r.Err = err
	return r
}

// Failed returns the Result of a run that stopped before its first stage.
func Failed(err *Error) *Result {
	return (&Result{}).failed(err)
}
