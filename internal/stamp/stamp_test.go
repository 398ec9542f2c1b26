package stamp

import (
	"bytes"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-scarf/paystamp/internal/document"
	"github.com/blue-scarf/paystamp/internal/extract"
)

func testStamp() Stamp {
	return Stamp{
		CommitmentID:   "RES-OAKHS-13",
		CostCode:       "23-3000",
		AmountDueCents: 693000,
		RetainageCents: 77000,
		Approver:       "Dana Whitfield",
		Date:           time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testDoc(t *testing.T, w, h int) *document.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{200, 200, 200, 255}), imaging.PNG))
	doc, err := document.Decode("app.png", buf.Bytes())
	require.NoError(t, err)
	return doc
}

func TestStampLines(t *testing.T) {
	assert.Equal(t, []string{
		"COM: RES-OAKHS-13",
		"C.C: 23-3000",
		"DUE: $6,930.00",
		"RET: $770.00",
		"By: Dana Whitfield",
		"Date: 10/31/2025",
	}, testStamp().Lines())
}

func TestStampValidate(t *testing.T) {
	require.NoError(t, testStamp().Validate())

	for name, mutate := range map[string]func(*Stamp){
		"commitment": func(s *Stamp) { s.CommitmentID = "" },
		"cost code":  func(s *Stamp) { s.CostCode = "" },
		"approver":   func(s *Stamp) { s.Approver = "" },
		"date":       func(s *Stamp) { s.Date = time.Time{} },
	} {
		t.Run(name, func(t *testing.T) {
			s := testStamp()
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestDetectRegion(t *testing.T) {
	lines := []extract.Line{
		{Text: "CURRENT PAYMENT DUE $6,930.00", Box: &extract.Box{X: 50, Y: 400, W: 300, H: 20}},
		{Text: "COM: RES-OAKHS-13", Box: &extract.Box{X: 700, Y: 40, W: 160, H: 18}},
		{Text: "C.C: 23-3000", Box: &extract.Box{X: 700, Y: 64, W: 120, H: 18}},
		{Text: "DUE: $6,930.00", Box: &extract.Box{X: 700, Y: 88, W: 140, H: 18}},
	}
	r, ok := DetectRegion(lines)
	require.True(t, ok)
	assert.Equal(t, 700, r.Min.X)
	assert.Equal(t, 40, r.Min.Y)
	assert.GreaterOrEqual(t, r.Max.Y, 106)

	_, ok = DetectRegion([]extract.Line{{Text: "COM: X-1"}})
	assert.False(t, ok, "no geometry means no region")

	_, ok = DetectRegion(lines[:1])
	assert.False(t, ok)
}

func TestCompose(t *testing.T) {
	c, err := NewComposer(nil)
	require.NoError(t, err)
	doc := testDoc(t, 1200, 900)

	out, layout, err := c.Compose(doc, 0, testStamp(), nil)
	require.NoError(t, err)
	require.NotNil(t, layout)
	assert.False(t, layout.Replaced)

	stamped, err := out.Page(0)
	require.NoError(t, err)
	orig, err := doc.Page(0)
	require.NoError(t, err)

	// The source document is untouched.
	r, _, _, _ := orig.At(layout.Box.Min.X+2, layout.Box.Min.Y+2).RGBA()
	assert.Equal(t, uint32(0xc8c8), r)

	// Pixels outside the block keep their value; the border inside is black.
	r, _, _, _ = stamped.At(layout.Box.Min.X-5, layout.Box.Min.Y+5).RGBA()
	assert.Equal(t, uint32(0xc8c8), r)
	r, g, b, _ := stamped.At(layout.Box.Min.X+1, layout.Box.Min.Y+1).RGBA()
	assert.Less(t, r, uint32(0x3000))
	assert.Less(t, g, uint32(0x3000))
	assert.Less(t, b, uint32(0x3000))

	// The block sits in the top-right corner inside the page.
	assert.Greater(t, layout.Box.Min.X, 600)
	assert.LessOrEqual(t, layout.Box.Max.X, 1200)
	assert.LessOrEqual(t, layout.Box.Max.Y, 900)
}

func TestCompose_Deterministic(t *testing.T) {
	c, err := NewComposer(nil)
	require.NoError(t, err)
	doc := testDoc(t, 800, 600)

	first, _, err := c.Compose(doc, 0, testStamp(), nil)
	require.NoError(t, err)
	second, _, err := c.Compose(doc, 0, testStamp(), nil)
	require.NoError(t, err)

	a, err := first.EncodePNG(0)
	require.NoError(t, err)
	b, err := second.EncodePNG(0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompose_ReplacesPriorRegion(t *testing.T) {
	c, err := NewComposer(nil)
	require.NoError(t, err)
	doc := testDoc(t, 1200, 900)

	prior := image.Rect(100, 100, 360, 240)
	out, layout, err := c.Compose(doc, 0, testStamp(), &prior)
	require.NoError(t, err)
	assert.True(t, layout.Replaced)
	assert.Equal(t, prior.Min, layout.Box.Min)

	// Re-stamping over the new block keeps it in place.
	again, layout2, err := c.Compose(out, 0, testStamp(), &layout.Box)
	require.NoError(t, err)
	assert.Equal(t, layout.Box, layout2.Box)

	a, err := out.EncodePNG(0)
	require.NoError(t, err)
	b, err := again.EncodePNG(0)
	require.NoError(t, err)
	assert.Equal(t, a, b, "re-stamping identical content is a no-op on pixels")
}

func TestCompose_Failures(t *testing.T) {
	c, err := NewComposer(nil)
	require.NoError(t, err)
	doc := testDoc(t, 400, 300)

	var rf *RenderFailure
	_, _, err = c.Compose(doc, 3, testStamp(), nil)
	require.ErrorAs(t, err, &rf)

	s := testStamp()
	s.CommitmentID = ""
	_, _, err = c.Compose(doc, 0, s, nil)
	require.ErrorAs(t, err, &rf)
}
