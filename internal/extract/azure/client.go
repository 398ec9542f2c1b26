// Package azure adapts the Azure Computer Vision printed-text OCR API to the
// extract.TextExtractor contract.
package azure

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/extract"
)

// Client calls the Azure Computer Vision OCR endpoint.
type Client struct {
	client  *computervision.BaseClient
	enhance bool
	logger  *slog.Logger
}

// NewClient creates an OCR client for the given endpoint and key. When
// enhance is set, page images are contrast/sharpness boosted before upload.
func NewClient(endpoint, apiKey string, enhance bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Client{
		client:  &client,
		enhance: enhance,
		logger:  logger,
	}
}

// Extract runs printed-text OCR on one page image and returns positioned
// lines in reading order.
func (c *Client) Extract(ctx context.Context, image []byte) (extract.RawExtraction, error) {
	start := time.Now()

	payload := image
	if c.enhance {
		enhanced, err := EnhanceForOCR(image)
		if err != nil {
			c.logger.Warn("ocr.enhance.failed", "error", err)
		} else {
			payload = enhanced
		}
	}

	imageReader := io.NopCloser(bytes.NewReader(payload))
	result, err := c.client.RecognizePrintedTextInStream(
		ctx,
		true,
		imageReader,
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return extract.RawExtraction{}, &extract.ExtractionError{Reason: "azure ocr call", Cause: err}
	}

	raw := extract.RawExtraction{
		Lines:    linesFromOCRResult(result),
		Method:   "azure-ocr",
		Language: string(computervision.En),
		Duration: time.Since(start),
	}
	if raw.Empty() {
		return raw, &extract.ExtractionError{Reason: "no text recognized"}
	}

	c.logger.Info("ocr.extract.ok",
		"session_id", common.SessionIDFromContext(ctx),
		"req_id", common.RequestIDFromContext(ctx),
		"lines", len(raw.Lines),
		"elapsed_ms", raw.Duration.Milliseconds(),
	)
	return raw, nil
}

// linesFromOCRResult flattens regions into ordered lines with positions.
func linesFromOCRResult(result computervision.OcrResult) []extract.Line {
	var lines []extract.Line
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			var text strings.Builder
			if line.Words != nil {
				for _, word := range *line.Words {
					if word.Text == nil {
						continue
					}
					if text.Len() > 0 {
						text.WriteByte(' ')
					}
					text.WriteString(*word.Text)
				}
			}

			out := extract.Line{Text: text.String()}
			if line.BoundingBox != nil {
				if box := parseBoundingBox(*line.BoundingBox); box != nil {
					out.Box = box
				}
			}
			lines = append(lines, out)
		}
	}
	return lines
}

// parseBoundingBox parses the API's "x,y,w,h" box string.
func parseBoundingBox(s string) *extract.Box {
	parts := strings.Split(s, ",")
	if len(parts) < 4 {
		return nil
	}
	vals := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return nil
		}
		vals[i] = v
	}
	return &extract.Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
}
