package service

import (
	"context"
	"fmt"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

// Aggregator turns a drained job into its report. Completed entities are
// numbered 1..n in submission order; failed ones are left out.
type Aggregator struct {
	writer port.ReportWriter
}

func NewAggregator(writer port.ReportWriter) *Aggregator {
	return &Aggregator{writer: writer}
}

func (a *Aggregator) Emit(ctx context.Context, requestID string, records []*domain.EntityRecord) (string, error) {
	if !domain.AllTerminal(records) {
		return "", fmt.Errorf("request %s: report requested before every entity finished", requestID)
	}

	rows := domain.BuildOutputRows(records)
	path, err := a.writer.Write(ctx, requestID, rows)
	if err != nil {
		return "", fmt.Errorf("write report for %s: %w", requestID, err)
	}
	return path, nil
}
