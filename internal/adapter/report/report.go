// Package report writes the per-job output artifact, one file per request
// token, as CSV or XLSX.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/bnema/imgbatch/internal/validation"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var header = []string{"EntityID", "Product Name", "Input Image Urls", "Output Image Urls"}

const urlSeparator = ", "

// New returns the writer for format, storing files under dir.
func New(format Format, dir string) (port.ReportWriter, error) {
	switch format {
	case FormatCSV, "":
		return &CSVWriter{dir: dir}, nil
	case FormatXLSX:
		return &XLSXWriter{dir: dir}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

func fileName(requestID string, format Format) string {
	return validation.SanitizeFilename("output_" + requestID + "." + string(format))
}

func rowValues(r domain.OutputRow) []string {
	return []string{
		strconv.Itoa(r.Index),
		r.Title,
		strings.Join(r.InputImageURLs, urlSeparator),
		strings.Join(r.OutputImageURLs, urlSeparator),
	}
}

// writeAtomic fills a temp file in dir and renames it over path so readers
// never see a partial report.
func writeAtomic(dir, path string, fill func(f *os.File) error) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func reportPath(dir, requestID string, format Format) string {
	return filepath.Join(dir, fileName(requestID, format))
}
