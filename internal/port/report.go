package port

import (
	"context"

	"github.com/bnema/imgbatch/internal/domain"
)

type ReportWriter interface {
	Write(ctx context.Context, requestID string, rows []domain.OutputRow) (path string, err error)
	Path(requestID string) string
	Dir() string
}

type Notifier interface {
	Notify(ctx context.Context, endpoint, requestID string, status domain.JobStatus) error
}
