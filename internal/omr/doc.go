// Package omr runs optical mark recognition on a photographed or scanned
// multiple-choice answer sheet.
//
// A sheet carries four solid corner markers and a grid of answer cells,
// one column per question and one row per choice. Process normalizes the
// illumination, finds the markers, warps the sheet onto its canonical
// template frame, binarizes it, measures every cell and resolves each
// question to a single choice or to no answer.
//
// # Stages
//
// A run moves through Loaded, ShadowRemoved (when enabled), Aligned,
// Binarized, Classified and Validated. Configuration and input problems
// stop a run before Loaded; marker and homography problems stop it at the
// alignment step. Every later stage always succeeds.
//
// # Errors
//
// Failures are returned inside the Result as an *Error whose Kind is
// InputError, ConfigError or AlignmentError. Use errors.Is with ErrInput,
// ErrConfig or ErrAlignment to branch on the kind.
//
// # Thread Safety
//
// Process keeps no package state and never mutates its input image, so
// sheets may be processed concurrently.
package omr
