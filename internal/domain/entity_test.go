package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(urls ...string) *EntityRecord {
	return NewEntityRecord("req-1", ManifestEntity{EntityID: 7, Title: "Shoe", ImageURLs: urls}, 0)
}

func TestNewEntityRecord(t *testing.T) {
	urls := []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}
	rec := NewEntityRecord("req-1", ManifestEntity{EntityID: 7, Title: "Shoe", ImageURLs: urls}, 3)

	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, int64(7), rec.EntityID)
	assert.Equal(t, "Shoe", rec.Title)
	assert.Equal(t, 3, rec.Position)
	assert.Equal(t, EntityStatusPending, rec.Status)
	assert.Equal(t, urls, rec.InputImageURLs)
	assert.Empty(t, rec.OutputImageURLs)
	assert.False(t, rec.CreatedAt.IsZero())

	urls[0] = "mutated"
	assert.Equal(t, "https://img.example/a.jpg", rec.InputImageURLs[0], "inputs should be copied")
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from EntityStatus
		to   EntityStatus
		want bool
	}{
		{"pending to in-progress", EntityStatusPending, EntityStatusInProgress, true},
		{"pending to complete", EntityStatusPending, EntityStatusComplete, true},
		{"pending to failed", EntityStatusPending, EntityStatusFailed, true},
		{"in-progress to complete", EntityStatusInProgress, EntityStatusComplete, true},
		{"in-progress to failed", EntityStatusInProgress, EntityStatusFailed, true},
		{"in-progress to pending", EntityStatusInProgress, EntityStatusPending, false},
		{"pending to pending", EntityStatusPending, EntityStatusPending, false},
		{"complete to failed", EntityStatusComplete, EntityStatusFailed, false},
		{"failed to complete", EntityStatusFailed, EntityStatusComplete, false},
		{"complete to in-progress", EntityStatusComplete, EntityStatusInProgress, false},
		{"unknown status", EntityStatus("weird"), EntityStatusComplete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanOverwrite(t *testing.T) {
	assert.True(t, CanOverwrite(EntityStatusPending, EntityStatusPending))
	assert.True(t, CanOverwrite(EntityStatusPending, EntityStatusFailed))
	assert.True(t, CanOverwrite(EntityStatusInProgress, EntityStatusInProgress))
	assert.False(t, CanOverwrite(EntityStatusInProgress, EntityStatusPending))
	assert.False(t, CanOverwrite(EntityStatusComplete, EntityStatusComplete))
	assert.False(t, CanOverwrite(EntityStatusFailed, EntityStatusComplete))
	assert.False(t, CanOverwrite(EntityStatusPending, EntityStatus("")))
}

func TestEntityRecord_MarkComplete(t *testing.T) {
	rec := newTestRecord("a", "b", "c")
	require.NoError(t, rec.MarkInProgress())

	outputs := []string{"https://i.imgur.com/x.jpg", "https://i.imgur.com/y.jpg"}
	require.NoError(t, rec.MarkComplete(outputs))

	assert.Equal(t, EntityStatusComplete, rec.Status)
	assert.Equal(t, outputs, rec.OutputImageURLs)
	assert.LessOrEqual(t, len(rec.OutputImageURLs), len(rec.InputImageURLs))
}

func TestEntityRecord_MarkComplete_TooManyOutputs(t *testing.T) {
	rec := newTestRecord("a")

	err := rec.MarkComplete([]string{"x", "y"})

	assert.Error(t, err)
	assert.Equal(t, EntityStatusPending, rec.Status)
}

func TestEntityRecord_MarkFailed_ClearsOutputs(t *testing.T) {
	rec := newTestRecord("a", "b")
	rec.OutputImageURLs = []string{"partial"}

	require.NoError(t, rec.MarkFailed(errors.New("boom")))

	assert.Equal(t, EntityStatusFailed, rec.Status)
	assert.Empty(t, rec.OutputImageURLs)
	assert.Equal(t, "boom", rec.ErrorMessage)
}

func TestEntityRecord_TerminalIsFinal(t *testing.T) {
	rec := newTestRecord("a")
	require.NoError(t, rec.MarkComplete([]string{"x"}))

	err := rec.MarkFailed(errors.New("late"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, EntityStatusComplete, rec.Status)

	err = rec.MarkInProgress()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEntityRecord_Clone(t *testing.T) {
	rec := newTestRecord("a", "b")
	clone := rec.Clone()

	clone.InputImageURLs[0] = "changed"
	clone.OutputImageURLs = append(clone.OutputImageURLs, "x")

	assert.Equal(t, "a", rec.InputImageURLs[0])
	assert.Empty(t, rec.OutputImageURLs)
}

func TestBuildOutputRows_ReindexesCompleted(t *testing.T) {
	first := NewEntityRecord("req", ManifestEntity{EntityID: 40, Title: "A", ImageURLs: []string{"a"}}, 0)
	second := NewEntityRecord("req", ManifestEntity{EntityID: 12, Title: "B", ImageURLs: []string{"b"}}, 1)
	third := NewEntityRecord("req", ManifestEntity{EntityID: 99, Title: "C", ImageURLs: []string{"c"}}, 2)

	require.NoError(t, first.MarkComplete([]string{"A1"}))
	require.NoError(t, second.MarkFailed(errors.New("nope")))
	require.NoError(t, third.MarkComplete([]string{}))

	rows := BuildOutputRows([]*EntityRecord{first, second, third, nil})

	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, "A", rows[0].Title)
	assert.Equal(t, []string{"A1"}, rows[0].OutputImageURLs)
	assert.Equal(t, 2, rows[1].Index)
	assert.Equal(t, "C", rows[1].Title)
}

func TestIsImageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"download", ErrDownload, true},
		{"wrapped compress", errors.Join(errors.New("ctx"), ErrCompress), true},
		{"upload fatal", ErrUploadFatal, true},
		{"upload exhausted", ErrUploadExhausted, true},
		{"transient alone", ErrUploadTransient, false},
		{"persistence", ErrPersistence, false},
		{"unknown", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsImageError(tt.err))
		})
	}
}
