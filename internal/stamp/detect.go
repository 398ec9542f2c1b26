package stamp

import (
	"image"
	"strings"

	"github.com/blue-scarf/paystamp/internal/extract"
)

// A prior approval block always opens with the "COM:" line. Its box anchors
// the whole region; the block spans that box plus the lines stacked under it.

// blockLineCount matches the number of entries Lines() renders.
const blockLineCount = 6

// DetectRegion locates an existing approval block among recognized lines and
// returns the rectangle it occupies. ok is false when the page carries no
// readable block or the recognizer supplied no geometry.
func DetectRegion(lines []extract.Line) (image.Rectangle, bool) {
	for i, ln := range lines {
		if ln.Box == nil || !strings.Contains(strings.ToUpper(ln.Text), "COM:") {
			continue
		}
		r := image.Rect(ln.Box.X, ln.Box.Y, ln.Box.X+ln.Box.W, ln.Box.Y+ln.Box.H)

		// Grow over the following lines that sit below and roughly share
		// the left edge; the block is a tight vertical stack.
		remaining := blockLineCount - 1
		for _, next := range lines[i+1:] {
			if remaining == 0 {
				break
			}
			if next.Box == nil {
				continue
			}
			nb := image.Rect(next.Box.X, next.Box.Y, next.Box.X+next.Box.W, next.Box.Y+next.Box.H)
			if nb.Min.Y < r.Min.Y {
				continue
			}
			if abs(nb.Min.X-r.Min.X) > ln.Box.H*4 || nb.Min.Y-r.Max.Y > ln.Box.H*3 {
				continue
			}
			r = r.Union(nb)
			remaining--
		}
		return r, true
	}
	return image.Rectangle{}, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
