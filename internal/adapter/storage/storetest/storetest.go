// Package storetest holds behaviour every port.StatusStore must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRecord builds a pending record for requestID at position.
func NewRecord(requestID string, entityID int64, position int, urls ...string) *domain.EntityRecord {
	return domain.NewEntityRecord(requestID, domain.ManifestEntity{
		EntityID:  entityID,
		Title:     "Entity",
		ImageURLs: urls,
	}, position)
}

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) port.StatusStore) {
	ctx := context.Background()

	t.Run("query unknown request returns not found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Query(ctx, "missing")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("persist then query round trips", func(t *testing.T) {
		store := newStore(t)
		rec := NewRecord("req-a", 7, 0, "https://a.test/1.jpg", "https://a.test/2.jpg")
		rec.Title = "Runner, \"red\""

		require.NoError(t, store.Persist(ctx, rec))

		got, err := store.Query(ctx, "req-a")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(7), got[0].EntityID)
		assert.Equal(t, "Runner, \"red\"", got[0].Title)
		assert.Equal(t, domain.EntityStatusPending, got[0].Status)
		assert.Equal(t, rec.InputImageURLs, got[0].InputImageURLs)
		assert.Empty(t, got[0].OutputImageURLs)
		assert.WithinDuration(t, rec.CreatedAt, got[0].CreatedAt, time.Millisecond)
	})

	t.Run("query is ordered by position and scoped to request", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Persist(ctx, NewRecord("req-b", 30, 2, "c")))
		require.NoError(t, store.Persist(ctx, NewRecord("req-b", 10, 0, "a")))
		require.NoError(t, store.Persist(ctx, NewRecord("req-b", 20, 1, "b")))
		require.NoError(t, store.Persist(ctx, NewRecord("req-other", 10, 0, "x")))

		got, err := store.Query(ctx, "req-b")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int64{10, 20, 30}, []int64{got[0].EntityID, got[1].EntityID, got[2].EntityID})
	})

	t.Run("status advances and records outputs", func(t *testing.T) {
		store := newStore(t)
		rec := NewRecord("req-c", 1, 0, "a", "b")
		require.NoError(t, store.Persist(ctx, rec))

		require.NoError(t, rec.MarkInProgress())
		require.NoError(t, store.Persist(ctx, rec.Clone()))
		require.NoError(t, rec.MarkComplete([]string{"https://i.imgur.com/a.jpg"}))
		require.NoError(t, store.Persist(ctx, rec.Clone()))

		got, err := store.Query(ctx, "req-c")
		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusComplete, got[0].Status)
		assert.Equal(t, []string{"https://i.imgur.com/a.jpg"}, got[0].OutputImageURLs)
	})

	t.Run("terminal rows are never overwritten", func(t *testing.T) {
		store := newStore(t)
		rec := NewRecord("req-d", 1, 0, "a")
		require.NoError(t, rec.MarkFailed(errors.New("boom")))
		require.NoError(t, store.Persist(ctx, rec))

		stale := NewRecord("req-d", 1, 0, "a")
		require.NoError(t, stale.MarkInProgress())
		err := store.Persist(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		other := NewRecord("req-d", 1, 0, "a")
		require.NoError(t, other.MarkComplete([]string{"x"}))
		err = store.Persist(ctx, other)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := store.Query(ctx, "req-d")
		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusFailed, got[0].Status)
		assert.Equal(t, "boom", got[0].ErrorMessage)
		assert.Empty(t, got[0].OutputImageURLs)
	})

	t.Run("status never moves backwards", func(t *testing.T) {
		store := newStore(t)
		rec := NewRecord("req-e", 1, 0, "a")
		require.NoError(t, rec.MarkInProgress())
		require.NoError(t, store.Persist(ctx, rec))

		err := store.Persist(ctx, NewRecord("req-e", 1, 0, "a"))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := store.Query(ctx, "req-e")
		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusInProgress, got[0].Status)
	})

	t.Run("concurrent writers on distinct entities", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Persist(ctx, NewRecord("req-f", int64(i), i, "u")))
			}(i)
		}
		wg.Wait()

		got, err := store.Query(ctx, "req-f")
		require.NoError(t, err)
		assert.Len(t, got, 10)
	})

	t.Run("delete expired removes only old terminal rows", func(t *testing.T) {
		store := newStore(t)
		old := time.Now().UTC().Add(-48 * time.Hour)

		done := NewRecord("req-g", 1, 0, "a")
		require.NoError(t, done.MarkComplete(nil))
		done.UpdatedAt = old
		require.NoError(t, store.Persist(ctx, done))

		stuck := NewRecord("req-g", 2, 1, "b")
		stuck.UpdatedAt = old
		require.NoError(t, store.Persist(ctx, stuck))

		fresh := NewRecord("req-g", 3, 2, "c")
		require.NoError(t, fresh.MarkFailed(nil))
		require.NoError(t, store.Persist(ctx, fresh))

		n, err := store.DeleteExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := store.Query(ctx, "req-g")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].EntityID)
		assert.Equal(t, int64(3), got[1].EntityID)
	})
}
