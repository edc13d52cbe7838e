package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType  = "text/csv; charset=utf-8"
	ExportSheet     = "Results"
)

// ErrNothingToExport is returned when the panel has no table.
var ErrNothingToExport = fmt.Errorf("no table data to export")

// ExportXLSX writes the results table to a workbook with a bold header row.
// Numbers are stored as numbers.
func ExportXLSX(t domain.Table) ([]byte, error) {
	cols := t.Columns()
	if len(cols) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExportSheet, cell, c); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := f.SetCellStyle(ExportSheet, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	for rowIdx, r := range t {
		for i, c := range cols {
			v, ok := r.Get(c)
			if !ok || v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if err := f.SetCellValue(ExportSheet, cell, cellValue(v)); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string, bool, float64:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// ExportCSV writes the table with raw (unformatted) values.
func ExportCSV(w io.Writer, t domain.Table) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return ErrNothingToExport
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for _, r := range t {
		for i, c := range cols {
			rec[i] = ""
			if v, ok := r.Get(c); ok && v != nil {
				rec[i] = fmt.Sprint(cellValue(v))
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
