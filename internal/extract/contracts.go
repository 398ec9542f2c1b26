package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextExtractor is the external text-extraction collaborator: page image
// bytes in, recognized lines out. Its failure modes (empty text, garbage)
// are the parser's input, not something this core can influence.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) (RawExtraction, error)
}

// Box is a line's position on the page in pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Line is one recognized text line. Confidence and Box are optional; a zero
// Confidence means the collaborator reported none.
type Line struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence,omitempty"`
	Box        *Box    `json:"box,omitempty"`
}

// RawExtraction is the recognized content of one document, immutable once
// received. Lines keep page order.
type RawExtraction struct {
	Lines    []Line        `json:"lines"`
	Method   string        `json:"method"` // e.g. "azure-ocr", "inline-text"
	Language string        `json:"language,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Text joins all recognized lines with newlines.
func (r RawExtraction) Text() string {
	var b strings.Builder
	for i, l := range r.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

// Empty reports whether no usable text was recognized.
func (r RawExtraction) Empty() bool {
	for _, l := range r.Lines {
		if strings.TrimSpace(l.Text) != "" {
			return false
		}
	}
	return true
}

// FromText builds a RawExtraction from plain newline-separated text, with no
// position metadata. Used by the batch CLI and by tests.
func FromText(text string) RawExtraction {
	var lines []Line
	for _, s := range strings.Split(text, "\n") {
		lines = append(lines, Line{Text: s})
	}
	return RawExtraction{Lines: lines, Method: "inline-text"}
}

// ExtractionError is a structural collaborator failure: the session cannot
// proceed and the document must be re-uploaded.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("text extraction failed: %s: %v", e.Reason, e.Cause)
	}
	return "text extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Cause }
