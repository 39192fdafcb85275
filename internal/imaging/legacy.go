package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/segment"
)

// LegacyThresholdLevel is the cutoff the old single-call threshold helper
// used when no level was given.
const LegacyThresholdLevel = 127

// SimpleThreshold is the old fixed-level threshold helper, kept for callers
// that still binarize without the sheet pipeline. Pixels ranked at or above
// level become white, everything else black.
//
// It is not used by the recognition pipeline and carries none of its
// guarantees; use Binarize for sheet images.
func SimpleThreshold(img image.Image, level uint8) *image.Gray {
	return ToGray(segment.Threshold(img, level))
}
