package document

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngPage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	doc, err := Decode("app.png",
		pngPage(t, 80, 100, color.White),
		pngPage(t, 80, 100, color.Black))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, "app.png", doc.Name())

	p, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 80, p.Bounds().Dx())

	_, err = doc.Page(2)
	assert.Error(t, err)
	_, err = doc.Page(-1)
	assert.Error(t, err)
}

func TestDecode_Rejections(t *testing.T) {
	var de *DecodeError

	_, err := Decode("app.pdf", pngPage(t, 10, 10, color.White))
	require.ErrorAs(t, err, &de)

	_, err = Decode("app.png", []byte("not an image"))
	require.ErrorAs(t, err, &de)

	_, err = Decode("app.png")
	require.ErrorAs(t, err, &de)
}

func TestClone_IsIndependent(t *testing.T) {
	doc, err := Decode("app.png", pngPage(t, 10, 10, color.White))
	require.NoError(t, err)

	clone := doc.Clone()
	mutated := imaging.New(10, 10, color.Black)
	require.NoError(t, clone.ReplacePage(0, mutated))

	orig, err := doc.Page(0)
	require.NoError(t, err)
	r, g, b, _ := orig.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestEncodeAndPreview(t *testing.T) {
	doc, err := Decode("app.png", pngPage(t, 400, 200, color.White))
	require.NoError(t, err)

	raw, err := doc.EncodePNG(0)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())

	prev, err := doc.PreviewPNG(0, 100)
	require.NoError(t, err)
	img, err = imaging.Decode(bytes.NewReader(prev))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	// Narrow pages come back unscaled.
	prev, err = doc.PreviewPNG(0, 4000)
	require.NoError(t, err)
	img, err = imaging.Decode(bytes.NewReader(prev))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
}
