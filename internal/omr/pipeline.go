package omr

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/imaging"
	"github.com/ironsheep/omr-mcp/internal/sheet"
)

// Processor runs the recognition pipeline. The zero value is ready to use.
type Processor struct {
	// Logger receives one line per stage when set.
	Logger *log.Logger
}

// Process runs the pipeline with a silent Processor.
func Process(img image.Image, cfg Config) *Result {
	var p Processor
	return p.Process(img, cfg)
}

// Process recognizes the answers on one sheet image.
//
// The image is never modified. Images larger than 1.5 times the template
// are reduced first so that the fixed size filters keep their meaning.
func (p *Processor) Process(img image.Image, cfg Config) *Result {
	res, _ := p.ProcessContext(context.Background(), img, cfg)
	return res
}

// ProcessContext is Process with cancellation. ctx is checked between
// stages; once it is done the run stops and the context error is returned
// with a nil Result. Recognition failures are never returned as errors.
func (p *Processor) ProcessContext(ctx context.Context, img image.Image, cfg Config) (*Result, error) {
	res, err := p.run(ctx, img, cfg)
	if err != nil {
		p.logf("stopped after %s: %v", res.Stage, err)
		return nil, fmt.Errorf("stopped after stage %s: %w", res.Stage, err)
	}
	return res, nil
}

func (p *Processor) run(ctx context.Context, img image.Image, cfg Config) (*Result, error) {
	res := &Result{}

	if err := cfg.Validate(); err != nil {
		return res.failed(err.(*Error)), nil
	}
	if err := imaging.CheckImage(img); err != nil {
		return res.failed(newError(InputError, err)), nil
	}
	res.Stage = StageLoaded

	maxW, maxH := cfg.workingSize()
	working, scale := imaging.FitWorking(img, maxW, maxH)
	res.Diagnostics.WorkingScale = scale
	p.logf("loaded %dx%d image, working scale %.3f", img.Bounds().Dx(), img.Bounds().Dy(), scale)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var gray *image.Gray
	if cfg.RemoveShadows {
		gray = imaging.RemoveShadows(working)
		res.Diagnostics.ShadowRemoved = gray
		res.Stage = StageShadowRemoved
		p.logf("shadows removed")
	} else {
		gray = imaging.ToGray(working)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	aligned, err := p.align(gray, cfg, &res.Diagnostics)
	if err != nil {
		p.logf("alignment failed: %v", err)
		return res.failed(newError(AlignmentError, err)), nil
	}
	res.Diagnostics.Aligned = aligned
	res.Stage = StageAligned
	if err := ctx.Err(); err != nil {
		return res, err
	}

	bin := imaging.Binarize(aligned, cfg.BinarizeOptions())
	res.Diagnostics.Binary = bin
	res.Stage = StageBinarized
	p.logf("binarized with %s threshold", cfg.BinarizeOptions().Mode)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// The layout was validated above, so MapCells cannot fail here.
	cells, err := sheet.MapCells(cfg.Layout())
	if err != nil {
		return res.failed(newError(ConfigError, err)), nil
	}
	states, marked := sheet.Classify(bin, cells, cfg.NumQuestions, cfg.ChoicesPerQuestion, cfg.MarkThreshold)
	res.Diagnostics.Cells = states
	res.Stage = StageClassified

	res.Answers = sheet.ValidateAnswers(marked)
	res.Stage = StageValidated
	res.Success = true
	p.logf("answers %v", res.Answers)
	return res, nil
}

// align finds the corner markers in gray and warps it onto the template.
func (p *Processor) align(gray *image.Gray, cfg Config, diag *Diagnostics) (*image.Gray, error) {
	opts := cfg.MarkerOptions()
	cands := detection.DetectMarkers(gray, opts)
	diag.Markers = cands
	p.logf("%d marker candidates", len(cands))

	corners, err := detection.SelectCorners(cands, opts)
	if err != nil {
		return nil, err
	}
	diag.Corners = corners[:]

	src, err := geometry.AssignCorners(detection.Centers(corners[:]))
	if err != nil {
		return nil, err
	}
	dst := geometry.CanonicalCorners(cfg.TemplateSize.Width, cfg.TemplateSize.Height, cfg.Margin, cfg.AlignmentSquareSize)

	h, err := geometry.ComputeHomography(src[:], dst[:])
	if err != nil {
		return nil, err
	}
	diag.Homography = h
	diag.ReprojectionError = geometry.ReprojectionError(h, src[:], dst[:])
	p.logf("homography det %.4g, reprojection error %.3g px", h.Det(), diag.ReprojectionError)

	aligned, err := geometry.WarpGray(gray, h, cfg.TemplateSize.Width, cfg.TemplateSize.Height)
	if err != nil {
		return nil, fmt.Errorf("warp: %w", err)
	}
	return aligned, nil
}

func (p *Processor) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
