package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bnema/imgbatch/internal/adapter/report"
	"github.com/bnema/imgbatch/internal/adapter/storage/jsonfile"
	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubPipeline answers per entity id; unknown entities echo their inputs.
type stubPipeline struct {
	mu      sync.Mutex
	errs    map[int64]error
	panics  map[int64]bool
	outputs map[int64][]string
}

func (s *stubPipeline) Process(_ context.Context, rec *domain.EntityRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics[rec.EntityID] {
		panic("boom")
	}
	if err := s.errs[rec.EntityID]; err != nil {
		return nil, err
	}
	if out, ok := s.outputs[rec.EntityID]; ok {
		return out, nil
	}
	out := make([]string, len(rec.InputImageURLs))
	for i, u := range rec.InputImageURLs {
		out[i] = "hosted:" + u
	}
	return out, nil
}

type processorFixture struct {
	store    *jsonfile.Store
	reports  *report.CSVWriter
	notifier *mocks.NotifierMock
	bus      *EventBus
}

func newProcessorFixture(t *testing.T) processorFixture {
	store, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)
	return processorFixture{
		store:    store,
		reports:  report.NewCSVWriter(t.TempDir()),
		notifier: mocks.NewNotifierMock(t),
		bus:      NewEventBus(),
	}
}

func (f processorFixture) processor(p EntityProcessor, workers int) *JobProcessor {
	return NewJobProcessor(f.store, p, NewAggregator(f.reports), f.notifier, f.bus, workers)
}

func testManifest() *domain.Manifest {
	m := domain.NewManifest()
	m.Add(40, "Shoe", []string{"A", "B"})
	m.Add(12, "Hat", []string{"D"})
	m.Add(40, "Shoe", []string{"C"})
	return m
}

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func submitPending(t *testing.T, f processorFixture, job *domain.Job) {
	t.Helper()
	for _, rec := range job.Records {
		require.NoError(t, f.store.Persist(context.Background(), rec.Clone()))
	}
}

func TestJobProcessor_Run_AllComplete(t *testing.T) {
	f := newProcessorFixture(t)
	job := domain.NewJob(testManifest(), "https://hooks.test/done")
	submitPending(t, f, job)

	f.notifier.On("Notify", mock.Anything, "https://hooks.test/done", job.RequestID, domain.JobStatusComplete).
		Return(nil).Once()

	err := f.processor(&stubPipeline{}, 1).Run(context.Background(), job)
	require.NoError(t, err)

	records, err := f.store.Query(context.Background(), job.RequestID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.EntityStatusComplete, records[0].Status)
	assert.Equal(t, []string{"hosted:A", "hosted:B", "hosted:C"}, records[0].OutputImageURLs)
	assert.Equal(t, domain.EntityStatusComplete, records[1].Status)

	rows := readReport(t, f.reports.Path(job.RequestID))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "Shoe", "A, B, C", "hosted:A, hosted:B, hosted:C"}, rows[1])
	assert.Equal(t, []string{"2", "Hat", "D", "hosted:D"}, rows[2])
}

func TestJobProcessor_Run_FailedEntityLeftOutOfReport(t *testing.T) {
	f := newProcessorFixture(t)
	m := domain.NewManifest()
	m.Add(5, "First", []string{"a"})
	m.Add(6, "Broken", []string{"b"})
	m.Add(7, "Third", []string{"c"})
	job := domain.NewJob(m, "https://hooks.test/done")
	submitPending(t, f, job)

	f.notifier.On("Notify", mock.Anything, mock.Anything, job.RequestID, domain.JobStatusComplete).Return(nil).Once()

	pipeline := &stubPipeline{errs: map[int64]error{6: errors.New("unexpected")}}
	require.NoError(t, f.processor(pipeline, 1).Run(context.Background(), job))

	records, err := f.store.Query(context.Background(), job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityStatusFailed, records[1].Status)
	assert.Empty(t, records[1].OutputImageURLs)
	assert.Equal(t, "unexpected", records[1].ErrorMessage)

	rows := readReport(t, f.reports.Path(job.RequestID))
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "First", rows[1][1])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "Third", rows[2][1])
}

func TestJobProcessor_Run_PartialOutputs(t *testing.T) {
	f := newProcessorFixture(t)
	m := domain.NewManifest()
	m.Add(1, "Shoe", []string{"ok", "unreachable"})
	job := domain.NewJob(m, "")
	submitPending(t, f, job)

	pipeline := &stubPipeline{outputs: map[int64][]string{1: {"hosted:ok"}}}
	require.NoError(t, f.processor(pipeline, 1).Run(context.Background(), job))

	records, err := f.store.Query(context.Background(), job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityStatusComplete, records[0].Status)
	assert.Len(t, records[0].OutputImageURLs, 1)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobProcessor_Run_PanicFailsOnlyThatEntity(t *testing.T) {
	f := newProcessorFixture(t)
	job := domain.NewJob(testManifest(), "")
	submitPending(t, f, job)

	pipeline := &stubPipeline{panics: map[int64]bool{40: true}}
	require.NoError(t, f.processor(pipeline, 2).Run(context.Background(), job))

	records, err := f.store.Query(context.Background(), job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityStatusFailed, records[0].Status)
	assert.Contains(t, records[0].ErrorMessage, "panic")
	assert.Equal(t, domain.EntityStatusComplete, records[1].Status)
}

func TestJobProcessor_Run_WebhookFailureIsContained(t *testing.T) {
	f := newProcessorFixture(t)
	job := domain.NewJob(testManifest(), "https://hooks.test/down")
	submitPending(t, f, job)

	f.notifier.On("Notify", mock.Anything, "https://hooks.test/down", job.RequestID, domain.JobStatusComplete).
		Return(errors.New("connection refused")).Once()

	err := f.processor(&stubPipeline{}, 1).Run(context.Background(), job)

	assert.NoError(t, err)
	_, statErr := os.Stat(f.reports.Path(job.RequestID))
	assert.NoError(t, statErr)
}

func TestJobProcessor_Run_ReportFailureSkipsWebhook(t *testing.T) {
	store, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)
	writer := mocks.NewReportWriterMock(t)
	notifier := mocks.NewNotifierMock(t)
	job := domain.NewJob(testManifest(), "https://hooks.test/done")

	writer.On("Write", mock.Anything, job.RequestID, mock.Anything).Return("", errors.New("disk full")).Once()

	p := NewJobProcessor(store, &stubPipeline{}, NewAggregator(writer), notifier, nil, 1)
	err = p.Run(context.Background(), job)

	assert.Error(t, err)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobProcessor_Run_PublishesEvents(t *testing.T) {
	f := newProcessorFixture(t)
	job := domain.NewJob(testManifest(), "")
	submitPending(t, f, job)
	events := f.bus.Subscribe(job.RequestID)
	defer f.bus.Unsubscribe(job.RequestID, events)

	require.NoError(t, f.processor(&stubPipeline{}, 1).Run(context.Background(), job))

	var got []Event
	timeout := time.After(time.Second)
	for len(got) < 5 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("only received %d events", len(got))
		}
	}

	assert.Equal(t, Event{Type: EventTypeEntity, EntityID: 40, Status: "in-progress"}, got[0])
	assert.Equal(t, Event{Type: EventTypeEntity, EntityID: 40, Status: "complete"}, got[1])
	assert.Equal(t, Event{Type: EventTypeEntity, EntityID: 12, Status: "in-progress"}, got[2])
	assert.Equal(t, Event{Type: EventTypeEntity, EntityID: 12, Status: "complete"}, got[3])
	assert.Equal(t, Event{Type: EventTypeJob, Status: "complete"}, got[4])
}

func TestJobProcessor_Run_ConcurrentEntities(t *testing.T) {
	f := newProcessorFixture(t)
	m := domain.NewManifest()
	for i := int64(1); i <= 20; i++ {
		m.Add(i, "Item", []string{"u"})
	}
	job := domain.NewJob(m, "")
	submitPending(t, f, job)

	require.NoError(t, f.processor(&stubPipeline{}, 4).Run(context.Background(), job))

	records, err := f.store.Query(context.Background(), job.RequestID)
	require.NoError(t, err)
	require.Len(t, records, 20)
	for _, r := range records {
		assert.Equal(t, domain.EntityStatusComplete, r.Status)
	}

	rows := readReport(t, f.reports.Path(job.RequestID))
	require.Len(t, rows, 21)
	for i := 1; i <= 20; i++ {
		assert.Equal(t, []string{"Item"}, rows[i][1:2])
	}
}

func TestAggregator_Emit_RefusesUnfinishedJob(t *testing.T) {
	writer := mocks.NewReportWriterMock(t)
	job := domain.NewJob(testManifest(), "")

	_, err := NewAggregator(writer).Emit(context.Background(), job.RequestID, job.Records)

	assert.Error(t, err)
	writer.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
}
