package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

type CSVWriter struct {
	dir string
}

func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

func (w *CSVWriter) Write(ctx context.Context, requestID string, rows []domain.OutputRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := w.Path(requestID)

	err := writeAtomic(w.dir, path, func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range rows {
			if err := cw.Write(rowValues(r)); err != nil {
				return fmt.Errorf("write row %d: %w", r.Index, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (w *CSVWriter) Path(requestID string) string {
	return reportPath(w.dir, requestID, FormatCSV)
}

func (w *CSVWriter) Dir() string {
	return w.dir
}

var _ port.ReportWriter = (*CSVWriter)(nil)
