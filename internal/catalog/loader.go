package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// The reference table must carry exactly these columns, in any order.
var expectedColumns = []string{"Number", "Vendor", "Cost Code"}

var ErrSchema = errors.New("reference table schema mismatch")

// LoadFile loads the reference table from a CSV or XLSX file.
func LoadFile(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported reference table format: %s", filepath.Ext(path))
	}
}

// LoadCSV reads the reference table from CSV. The header row must name the
// three expected columns; any malformed row is a load-time error.
func LoadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	row := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++
		rec, err := recordFromRow(fields, idx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadXLSX reads the reference table from the first sheet of a workbook.
func LoadXLSX(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrSchema)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrSchema)
	}

	idx, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var records []Record
	for i, fields := range rows[1:] {
		// excelize trims trailing empty cells; pad back to header width.
		for len(fields) < len(rows[0]) {
			fields = append(fields, "")
		}
		rec, err := recordFromRow(fields, idx, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// columnIndex maps expected column names to their positions, case-insensitive.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(expectedColumns))
	for i, h := range header {
		name := strings.TrimSpace(h)
		for _, want := range expectedColumns {
			if strings.EqualFold(name, want) {
				idx[want] = i
			}
		}
	}
	for _, want := range expectedColumns {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrSchema, want)
		}
	}
	return idx, nil
}

func recordFromRow(fields []string, idx map[string]int, row int) (Record, error) {
	get := func(col string) (string, error) {
		i := idx[col]
		if i >= len(fields) {
			return "", fmt.Errorf("%w: row %d missing column %q", ErrSchema, row, col)
		}
		return strings.TrimSpace(fields[i]), nil
	}

	num, err := get("Number")
	if err != nil {
		return Record{}, err
	}
	vendor, err := get("Vendor")
	if err != nil {
		return Record{}, err
	}
	code, err := get("Cost Code")
	if err != nil {
		return Record{}, err
	}
	return Record{CommitmentID: num, Vendor: vendor, CostCode: code}, nil
}
