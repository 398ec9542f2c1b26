package stamp

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/blue-scarf/paystamp/internal/document"
)

// RenderFailure reports a stamp that could not be drawn.
type RenderFailure struct {
	Reason string
	Cause  error
}

func (e *RenderFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render stamp: %s: %v", e.Reason, e.Cause)
	}
	return "render stamp: " + e.Reason
}

func (e *RenderFailure) Unwrap() error { return e.Cause }

// Composer draws approval blocks onto page images. Rendering is
// deterministic: the same stamp on the same page always produces identical
// pixels, so re-stamping is safe.
type Composer struct {
	font   *truetype.Font
	logger *slog.Logger
}

// NewComposer builds a Composer with the embedded Go Regular typeface.
func NewComposer(logger *slog.Logger) (*Composer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, &RenderFailure{Reason: "load typeface", Cause: err}
	}
	return &Composer{font: f, logger: logger}, nil
}

// Layout is the computed placement of one block on one page.
type Layout struct {
	Box      image.Rectangle
	FontSize float64
	Replaced bool
}

// Compose draws the stamp onto the given page of a clone of doc and returns
// the clone; the input document is never modified. When prior is non-nil the
// block covers that region; otherwise it lands in the top-right corner of
// the page inside a fixed margin. All drawing is clipped to the block box.
func (c *Composer) Compose(doc *document.Document, page int, s Stamp, prior *image.Rectangle) (*document.Document, *Layout, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, &RenderFailure{Reason: "invalid stamp", Cause: err}
	}
	src, err := doc.Page(page)
	if err != nil {
		return nil, nil, &RenderFailure{Reason: "page lookup", Cause: err}
	}

	out := doc.Clone()
	img, _ := out.Page(page)
	dc := gg.NewContextForImage(img)

	layout := c.layout(dc, img.Bounds(), s, prior)
	c.draw(dc, layout, s)

	if err := out.ReplacePage(page, dc.Image()); err != nil {
		return nil, nil, &RenderFailure{Reason: "replace page", Cause: err}
	}
	c.logger.Info("stamp.ok",
		"page", page,
		"commitment_id", s.CommitmentID,
		"box", layout.Box.String(),
		"replaced_prior", layout.Replaced,
		"page_width", src.Bounds().Dx())
	return out, layout, nil
}

const (
	lineSpacing = 1.4
	padRatio    = 0.6 // padding as a fraction of font size
	edgeRatio   = 0.03
)

func (c *Composer) layout(dc *gg.Context, bounds image.Rectangle, s Stamp, prior *image.Rectangle) *Layout {
	// Font scales with the page so the block stays legible on scans of any
	// resolution; floor keeps it readable on small previews.
	size := float64(bounds.Dx()) / 55
	if size < 11 {
		size = 11
	}
	dc.SetFontFace(c.face(size))

	maxW := 0.0
	for _, line := range s.Lines() {
		if w, _ := dc.MeasureString(line); w > maxW {
			maxW = w
		}
	}
	pad := size * padRatio
	lineH := size * lineSpacing
	boxW := int(maxW + 2*pad)
	boxH := int(lineH*float64(blockLineCount) + 2*pad)

	var origin image.Point
	replaced := false
	if prior != nil && !prior.Empty() {
		origin = prior.Min
		replaced = true
	} else {
		margin := int(float64(bounds.Dx()) * edgeRatio)
		origin = image.Pt(bounds.Max.X-margin-boxW, bounds.Min.Y+margin)
	}
	box := image.Rect(origin.X, origin.Y, origin.X+boxW, origin.Y+boxH)

	// Keep the block on the page even when a detected region hugs an edge.
	if box.Max.X > bounds.Max.X {
		box = box.Sub(image.Pt(box.Max.X-bounds.Max.X, 0))
	}
	if box.Max.Y > bounds.Max.Y {
		box = box.Sub(image.Pt(0, box.Max.Y-bounds.Max.Y))
	}
	if box.Min.X < bounds.Min.X {
		box = box.Add(image.Pt(bounds.Min.X-box.Min.X, 0))
	}
	if box.Min.Y < bounds.Min.Y {
		box = box.Add(image.Pt(0, bounds.Min.Y-box.Min.Y))
	}

	return &Layout{Box: box, FontSize: size, Replaced: replaced}
}

func (c *Composer) draw(dc *gg.Context, layout *Layout, s Stamp) {
	box := layout.Box
	size := layout.FontSize
	pad := size * padRatio
	lineH := size * lineSpacing

	dc.Push()
	dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
	dc.Clip()

	// White ground wipes whatever sat under the block, prior stamp included.
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(box.Min.X)+1, float64(box.Min.Y)+1, float64(box.Dx())-2, float64(box.Dy())-2)
	dc.Stroke()

	dc.SetFontFace(c.face(size))
	x := float64(box.Min.X) + pad
	y := float64(box.Min.Y) + pad + size
	for _, line := range s.Lines() {
		dc.DrawString(line, x, y)
		y += lineH
	}

	dc.ResetClip()
	dc.Pop()
}

func (c *Composer) face(size float64) font.Face {
	return truetype.NewFace(c.font, &truetype.Options{Size: size})
}
