// Package document models an uploaded pay application as an ordered set of
// page images. Pages are kept decoded in memory for the life of a session;
// stamping mutates a clone, never the original upload.
package document

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/blue-scarf/paystamp/constants"
)

// Document is an in-memory pay application. Page order follows upload order.
type Document struct {
	pages []image.Image
	name  string
}

// DecodeError reports an upload that could not be read as a page image.
type DecodeError struct {
	Name  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode page %q: %v", e.Name, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode builds a Document from uploaded page files. The extension gate runs
// before decoding so an unsupported format is rejected by name, not by a
// confusing codec error.
func Decode(name string, pages ...[]byte) (*Document, error) {
	if len(pages) == 0 {
		return nil, &DecodeError{Name: name, Cause: fmt.Errorf("no pages")}
	}
	if !constants.ExtAllowed(name) {
		return nil, &DecodeError{Name: name, Cause: fmt.Errorf("unsupported extension %q", filepath.Ext(name))}
	}

	doc := &Document{name: name, pages: make([]image.Image, 0, len(pages))}
	for i, raw := range pages {
		img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
		if err != nil {
			return nil, &DecodeError{Name: fmt.Sprintf("%s[%d]", name, i), Cause: err}
		}
		doc.pages = append(doc.pages, img)
	}
	return doc, nil
}

// Name returns the upload filename.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the image for a zero-based page index.
func (d *Document) Page(i int) (image.Image, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", i, len(d.pages))
	}
	return d.pages[i], nil
}

// ReplacePage swaps in a new image for a zero-based page index.
func (d *Document) ReplacePage(i int, img image.Image) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("page %d out of range [0,%d)", i, len(d.pages))
	}
	d.pages[i] = img
	return nil
}

// Clone returns a deep copy. Page pixel data is duplicated so drawing on the
// clone leaves the original untouched.
func (d *Document) Clone() *Document {
	out := &Document{name: d.name, pages: make([]image.Image, len(d.pages))}
	for i, p := range d.pages {
		out.pages[i] = imaging.Clone(p)
	}
	return out
}

// EncodePNG renders one page as PNG bytes.
func (d *Document) EncodePNG(i int) ([]byte, error) {
	img, err := d.Page(i)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", i, err)
	}
	return buf.Bytes(), nil
}

// PreviewPNG renders one page scaled to fit maxWidth, preserving aspect
// ratio. Pages already narrower than maxWidth are returned at full size.
func (d *Document) PreviewPNG(i, maxWidth int) ([]byte, error) {
	img, err := d.Page(i)
	if err != nil {
		return nil, err
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview %d: %w", i, err)
	}
	return buf.Bytes(), nil
}
