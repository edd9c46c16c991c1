package report

import (
	"context"
	"fmt"
	"os"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Output"

type XLSXWriter struct {
	dir string
}

func NewXLSXWriter(dir string) *XLSXWriter {
	return &XLSXWriter{dir: dir}
}

func (w *XLSXWriter) Write(ctx context.Context, requestID string, rows []domain.OutputRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for r, row := range rows {
		values := rowValues(row)
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if c == 0 {
				_ = f.SetCellValue(sheetName, cell, row.Index)
				continue
			}
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)  // index
	_ = f.SetColWidth(sheetName, "B", "B", 32) // title
	_ = f.SetColWidth(sheetName, "C", "D", 80) // urls

	path := w.Path(requestID)
	err := writeAtomic(w.dir, path, func(out *os.File) error {
		if _, err := f.WriteTo(out); err != nil {
			return fmt.Errorf("xlsx write: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (w *XLSXWriter) Path(requestID string) string {
	return reportPath(w.dir, requestID, FormatXLSX)
}

func (w *XLSXWriter) Dir() string {
	return w.dir
}

var _ port.ReportWriter = (*XLSXWriter)(nil)
