// Package export produces register workbooks of processed pay applications,
// one row per session, for handoff to accounting.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/blue-scarf/paystamp/internal/money"
	"github.com/blue-scarf/paystamp/internal/pipeline"
)

// Service renders session registers. It reads through the session store and
// never mutates sessions.
type Service struct {
	store  *pipeline.Store
	logger *slog.Logger
}

// NewService builds a Service. A nil logger falls back to slog.Default().
func NewService(store *pipeline.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

var headers = []string{
	"Document",
	"State",
	"Vendor",
	"Commitment",
	"Cost Code",
	"Application No",
	"Period To",
	"Amount Due",
	"Retainage",
	"Stamped At",
}

// rows flattens every session into register rows, newest first.
func (s *Service) rows(ctx context.Context) ([][]string, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		sess, err := s.store.Get(ctx, sum.ID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sum.ID, err)
		}

		row := []string{sess.DocumentName, string(sess.State)}
		if sess.Fields != nil {
			row = append(row,
				sess.Fields.VendorName,
				sess.SelectedCommitmentID,
				sess.SelectedCostCode,
				sess.Fields.ApplicationNumber,
				sess.Fields.PeriodTo,
				money.FormatUSD(sess.Fields.AmountDueCents),
				money.FormatUSD(sess.Fields.RetainageCents),
			)
		} else {
			row = append(row, "", sess.SelectedCommitmentID, sess.SelectedCostCode, "", "", "", "")
		}
		if sess.StampedAt != nil {
			row = append(row, sess.StampedAt.Format(time.RFC3339))
		} else {
			row = append(row, "")
		}
		out = append(out, row)
	}
	return out, nil
}

// RegisterXLSX returns the register as an XLSX workbook.
func (s *Service) RegisterXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Applications"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	hdr := make([]any, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 30) // document
	_ = f.SetColWidth(sheet, "C", "C", 32) // vendor
	_ = f.SetColWidth(sheet, "D", "E", 16)
	_ = f.SetColWidth(sheet, "H", "I", 14) // amounts
	_ = f.SetColWidth(sheet, "J", "J", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// RegisterCSV returns the register as CSV.
func (s *Service) RegisterCSV(ctx context.Context) ([]byte, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	s.logger.Info("export.csv.ok", "rows", len(rows))
	return buf.Bytes(), nil
}
