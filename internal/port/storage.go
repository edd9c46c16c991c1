package port

import (
	"context"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
)

type StatusStore interface {
	// Persist upserts a record keyed by (request id, entity id). A stored
	// terminal record is never overwritten.
	Persist(ctx context.Context, rec *domain.EntityRecord) error
	// Query returns every record for requestID ordered by manifest position,
	// or domain.ErrNotFound when there are none.
	Query(ctx context.Context, requestID string) ([]*domain.EntityRecord, error)
	// DeleteExpired removes terminal records last updated before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
