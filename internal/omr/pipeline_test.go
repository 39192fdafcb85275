package omr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/ironsheep/omr-mcp/internal/detection"
	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/sheet"
	"github.com/ironsheep/omr-mcp/internal/sheettest"
)

var groundTruth = []int{0, 3, 1, 2, 1, 0, 3, 2, 0, 1}

func renderSheet(t *testing.T, s sheettest.Sheet) *image.Gray {
	t.Helper()
	if s.Layout == (sheet.Layout{}) {
		s.Layout = sheettest.DefaultLayout()
	}
	img, err := sheettest.Render(s)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return img
}

func assertAnswers(t *testing.T, res *Result, want []sheet.Answer) {
	t.Helper()
	if !res.Success {
		t.Fatalf("processing failed at %s: %v", res.Stage, res.Err)
	}
	if res.Stage != StageValidated {
		t.Errorf("stage: got %s, want validated", res.Stage)
	}
	if len(res.Answers) != len(want) {
		t.Fatalf("expected %d answers, got %d", len(want), len(res.Answers))
	}
	for q := range want {
		if res.Answers[q] != want[q] {
			t.Errorf("question %d: got %s, want %s", q, res.Answers[q], want[q])
		}
	}
}

func chosen(choices []int) []sheet.Answer {
	out := make([]sheet.Answer, len(choices))
	for i, c := range choices {
		out[i] = sheet.Chosen(c)
	}
	return out
}

func TestProcess_GroundTruth(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...), GridLines: true})

	res := Process(img, DefaultConfig())
	assertAnswers(t, res, chosen(groundTruth))
	if res.Answers[2] != sheet.Chosen(1) {
		t.Errorf("answers[2]: got %s, want 1", res.Answers[2])
	}

	d := res.Diagnostics
	if d.ShadowRemoved == nil || d.Aligned == nil || d.Binary == nil {
		t.Error("diagnostic images missing")
	}
	if d.Aligned.Bounds() != image.Rect(0, 0, 800, 1000) {
		t.Errorf("aligned bounds: got %v", d.Aligned.Bounds())
	}
	if len(d.Cells) != 40 {
		t.Errorf("expected 40 cell states, got %d", len(d.Cells))
	}
	if d.WorkingScale != 1 {
		t.Errorf("working scale: got %v, want 1", d.WorkingScale)
	}
}

func TestProcess_BlankTemplateAlignsToIdentity(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{GridLines: true})

	res := Process(img, DefaultConfig())
	if !res.Success {
		t.Fatalf("processing failed: %v", res.Err)
	}
	d := res.Diagnostics
	if len(d.Markers) != 4 {
		t.Errorf("expected exactly 4 marker candidates, got %d", len(d.Markers))
	}
	if d.ReprojectionError > 1e-6 {
		t.Errorf("reprojection error %g", d.ReprojectionError)
	}
	id := geometry.Identity()
	for i, v := range d.Homography {
		tol := 0.01
		if i == 2 || i == 5 {
			tol = 0.5
		}
		if math.Abs(v-id[i]) > tol {
			t.Errorf("H[%d]: got %g, want about %g", i, v, id[i])
		}
	}
	for q, a := range res.Answers {
		if a.Valid {
			t.Errorf("question %d on a blank sheet: got %s", q, a)
		}
	}
}

func TestProcess_BlankAndDoubleMarks(t *testing.T) {
	marks := sheettest.Answers(groundTruth...)
	marks[5] = []int{0, 2}
	delete(marks, 7)
	img := renderSheet(t, sheettest.Sheet{Marks: marks})

	want := chosen(groundTruth)
	want[5] = sheet.None
	want[7] = sheet.None
	assertAnswers(t, Process(img, DefaultConfig()), want)
}

func TestProcess_Rotation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rotation sweep in short mode")
	}
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})

	for _, deg := range []float64{-15, -7, 4, 15} {
		rotated := sheettest.Rotate(img, deg)
		res := Process(rotated, DefaultConfig())
		if !res.Success {
			t.Errorf("%v degrees: failed: %v", deg, res.Err)
			continue
		}
		for q, want := range groundTruth {
			if res.Answers[q] != sheet.Chosen(want) {
				t.Errorf("%v degrees, question %d: got %s, want %d", deg, q, res.Answers[q], want)
			}
		}
	}
}

func TestProcess_ShadowGradient(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})
	shaded := sheettest.Shade(img, 0.5, 1.0)

	res := Process(shaded, DefaultConfig())
	assertAnswers(t, res, chosen(groundTruth))
}

func TestProcess_AdaptiveWithoutShadowRemoval(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})
	shaded := sheettest.Shade(img, 0.6, 1.0)

	cfg := DefaultConfig()
	cfg.RemoveShadows = false
	cfg.UseAdaptiveThreshold = true

	res := Process(shaded, cfg)
	assertAnswers(t, res, chosen(groundTruth))
	if res.Diagnostics.ShadowRemoved != nil {
		t.Error("shadow-removed image should be absent when disabled")
	}
}

func TestProcess_LargeInputIsReduced(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large image in short mode")
	}
	l := sheettest.DefaultLayout()
	l.Width, l.Height = 1600, 2000
	l.Margin, l.SquareSize = 80, 80
	img := renderSheet(t, sheettest.Sheet{Layout: l, Marks: sheettest.Answers(groundTruth...)})

	res := Process(img, DefaultConfig())
	assertAnswers(t, res, chosen(groundTruth))
	if res.Diagnostics.WorkingScale != 0.75 {
		t.Errorf("working scale: got %v, want 0.75", res.Diagnostics.WorkingScale)
	}
}

func TestProcess_MissingMarker(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{})
	draw.Draw(img, image.Rect(720, 920, 760, 960), image.NewUniform(color.White), image.Point{}, draw.Src)

	res := Process(img, DefaultConfig())
	if res.Success {
		t.Fatal("processing should fail without the bottom-right marker")
	}
	if res.Stage != StageFailed {
		t.Errorf("stage: got %s, want failed", res.Stage)
	}
	if !errors.Is(res.Err, ErrAlignment) {
		t.Fatalf("got %v, want an AlignmentError", res.Err)
	}
	if !strings.Contains(res.Err.Message, "3 of 4 markers detected") {
		t.Errorf("message %q should report the marker count", res.Err.Message)
	}
	if res.Answers != nil {
		t.Error("failed result should carry no answers")
	}
	if len(res.Diagnostics.Markers) != 3 {
		t.Errorf("diagnostics should keep the 3 candidates, got %d", len(res.Diagnostics.Markers))
	}
}

func TestProcess_MissingMarkerWithSquareMarks(t *testing.T) {
	// Marks the size of a corner square pass every marker filter, so the
	// bottom-right quadrant is never empty.
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...), MarkHeight: 0.2})
	draw.Draw(img, image.Rect(720, 920, 760, 960), image.NewUniform(color.White), image.Point{}, draw.Src)

	res := Process(img, DefaultConfig())
	if res.Success {
		t.Fatalf("processing should fail without the bottom-right marker, got answers %v", res.Answers)
	}
	if !errors.Is(res.Err, ErrAlignment) {
		t.Fatalf("got %v, want an AlignmentError", res.Err)
	}
	if !errors.Is(res.Err, detection.ErrAmbiguousMarkers) {
		t.Errorf("got %v, want the selection to be rejected as ambiguous", res.Err)
	}
	if len(res.Diagnostics.Markers) <= 4 {
		t.Errorf("the marks should be marker candidates, got %d candidates", len(res.Diagnostics.Markers))
	}
	if res.Diagnostics.Aligned != nil {
		t.Error("no aligned image should be produced")
	}
}

func TestProcess_SquareMarks(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...), MarkHeight: 0.2})

	// A 40x40 mark covers about 13% of its padded cell.
	cfg := DefaultConfig()
	cfg.MarkThreshold = 0.1

	res := Process(img, cfg)
	assertAnswers(t, res, chosen(groundTruth))
	if n := len(res.Diagnostics.Markers); n != 4+len(groundTruth) {
		t.Errorf("expected the marks among the candidates, got %d candidates", n)
	}
}

func TestProcess_ConfigErrors(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{})

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero questions", func(c *Config) { c.NumQuestions = 0 }},
		{"negative choices", func(c *Config) { c.ChoicesPerQuestion = -2 }},
		{"zero threshold", func(c *Config) { c.MarkThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.MarkThreshold = 1.5 }},
		{"NaN threshold", func(c *Config) { c.MarkThreshold = math.NaN() }},
		{"negative margin", func(c *Config) { c.Margin = -1 }},
		{"zero square", func(c *Config) { c.AlignmentSquareSize = 0 }},
		{"tiny template", func(c *Config) { c.TemplateSize = Size{Width: 100, Height: 100} }},
		{"degenerate cells", func(c *Config) { c.NumQuestions = 200 }},
		{"global threshold", func(c *Config) { c.GlobalThreshold = 255 }},
		{"marker area", func(c *Config) { c.MinMarkerArea = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			res := Process(img, cfg)
			if res.Success || res.Stage != StageFailed {
				t.Fatalf("expected failure, got success=%v stage=%s", res.Success, res.Stage)
			}
			if !errors.Is(res.Err, ErrConfig) {
				t.Errorf("got %v, want a ConfigError", res.Err)
			}
			if errors.Is(res.Err, ErrAlignment) {
				t.Error("ConfigError must not match ErrAlignment")
			}
		})
	}
}

func TestProcess_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil", nil},
		{"zero area", image.NewGray(image.Rect(0, 0, 0, 0))},
		{"zero height", image.NewRGBA(image.Rect(0, 0, 10, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Process(tt.img, DefaultConfig())
			if res.Success {
				t.Fatal("expected failure")
			}
			if !errors.Is(res.Err, ErrInput) {
				t.Errorf("got %v, want an InputError", res.Err)
			}
		})
	}
}

func TestProcess_DoesNotMutateInput(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})
	before := append([]uint8(nil), img.Pix...)

	Process(img, DefaultConfig())
	if !bytes.Equal(before, img.Pix) {
		t.Error("Process modified its input image")
	}
}

func TestProcessor_Logs(t *testing.T) {
	var buf bytes.Buffer
	p := Processor{Logger: log.New(&buf, "", 0)}

	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})
	if res := p.Process(img, DefaultConfig()); !res.Success {
		t.Fatalf("processing failed: %v", res.Err)
	}
	if !strings.Contains(buf.String(), "marker candidates") {
		t.Errorf("log output missing marker count:\n%s", buf.String())
	}
}

// cancelOnWrite cancels a context as soon as the processor logs a line.
type cancelOnWrite struct {
	cancel context.CancelFunc
	buf    bytes.Buffer
}

func (w *cancelOnWrite) Write(p []byte) (int, error) {
	w.cancel()
	return w.buf.Write(p)
}

func TestProcessContext_StopsBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &cancelOnWrite{cancel: cancel}
	p := Processor{Logger: log.New(w, "", 0)}

	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})
	res, err := p.ProcessContext(ctx, img, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("a stopped run should return no result")
	}
	if !strings.Contains(err.Error(), "loaded") {
		t.Errorf("error %q should name the last stage", err)
	}
	if strings.Contains(w.buf.String(), "shadows removed") {
		t.Errorf("shadow removal ran after cancellation:\n%s", w.buf.String())
	}
}

func TestProcessContext_Background(t *testing.T) {
	img := renderSheet(t, sheettest.Sheet{Marks: sheettest.Answers(groundTruth...)})

	var p Processor
	res, err := p.ProcessContext(context.Background(), img, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertAnswers(t, res, chosen(groundTruth))
}

func TestProcessContext_FailureIsNotAnError(t *testing.T) {
	var p Processor
	res, err := p.ProcessContext(context.Background(), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("recognition failures belong in the result, got %v", err)
	}
	if !errors.Is(res.Err, ErrInput) {
		t.Errorf("got %v, want an InputError", res.Err)
	}
}
