package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/port"
)

type EntityProcessor interface {
	Process(ctx context.Context, rec *domain.EntityRecord) ([]string, error)
}

// JobProcessor runs a submitted job to the end: every entity through the
// pipeline, then the report, then the optional webhook.
type JobProcessor struct {
	store         port.StatusStore
	pipeline      EntityProcessor
	aggregator    *Aggregator
	notifier      port.Notifier
	events        EventPublisher
	entityWorkers int
}

func NewJobProcessor(
	store port.StatusStore,
	pipeline EntityProcessor,
	aggregator *Aggregator,
	notifier port.Notifier,
	events EventPublisher,
	entityWorkers int,
) *JobProcessor {
	if entityWorkers < 1 {
		entityWorkers = 1
	}
	return &JobProcessor{
		store:         store,
		pipeline:      pipeline,
		aggregator:    aggregator,
		notifier:      notifier,
		events:        events,
		entityWorkers: entityWorkers,
	}
}

// Run blocks until the job has drained. Entity failures are recorded on the
// entity; the returned error only covers the report step.
func (p *JobProcessor) Run(ctx context.Context, job *domain.Job) error {
	logger.Info.Printf("request %s: processing %d entities", job.RequestID, len(job.Records))

	// The recorder is the only store writer while the job runs. Its writes
	// outlive ctx so final statuses land even during shutdown.
	updates := make(chan *domain.EntityRecord, 2*len(job.Records))
	recorded := make(chan struct{})
	go func() {
		defer close(recorded)
		storeCtx := context.WithoutCancel(ctx)
		for rec := range updates {
			p.record(storeCtx, rec)
		}
	}()

	var g errgroup.Group
	g.SetLimit(p.entityWorkers)
	for _, rec := range job.Records {
		g.Go(func() error {
			p.processEntity(ctx, rec, updates)
			return nil
		})
	}
	_ = g.Wait()
	close(updates)
	<-recorded

	path, err := p.aggregator.Emit(context.WithoutCancel(ctx), job.RequestID, job.Records)
	if err != nil {
		p.publish(job.RequestID, Event{Type: EventTypeJob, Status: "failed", Message: "report could not be written"})
		return err
	}
	logger.Info.Printf("request %s: report written to %s", job.RequestID, path)
	p.publish(job.RequestID, Event{Type: EventTypeJob, Status: string(domain.JobStatusComplete)})

	if job.WebhookURL != "" && p.notifier != nil {
		if err := p.notifier.Notify(context.WithoutCancel(ctx), job.WebhookURL, job.RequestID, domain.JobStatusComplete); err != nil {
			logger.Warn.Printf("request %s: webhook %s failed: %v", job.RequestID, logger.SanitizeForLog(job.WebhookURL), err)
		} else {
			logger.Info.Printf("request %s: webhook delivered", job.RequestID)
		}
	}
	return nil
}

func (p *JobProcessor) processEntity(ctx context.Context, rec *domain.EntityRecord, updates chan<- *domain.EntityRecord) {
	if err := rec.MarkInProgress(); err != nil {
		logger.Error.Printf("request %s entity %d: %v", rec.RequestID, rec.EntityID, err)
		return
	}
	updates <- rec.Clone()

	outputs, err := p.runPipeline(ctx, rec)
	if err == nil {
		err = rec.MarkComplete(outputs)
	}
	if err != nil {
		logger.Error.Printf("request %s entity %d failed: %v", rec.RequestID, rec.EntityID, err)
		if markErr := rec.MarkFailed(err); markErr != nil {
			logger.Error.Printf("request %s entity %d: %v", rec.RequestID, rec.EntityID, markErr)
			return
		}
	} else {
		logger.Info.Printf("request %s entity %d complete: %d/%d images",
			rec.RequestID, rec.EntityID, len(rec.OutputImageURLs), len(rec.InputImageURLs))
	}
	updates <- rec.Clone()
}

func (p *JobProcessor) runPipeline(ctx context.Context, rec *domain.EntityRecord) (outputs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs, err = nil, fmt.Errorf("entity %d: panic: %v", rec.EntityID, r)
		}
	}()
	return p.pipeline.Process(ctx, rec.Clone())
}

func (p *JobProcessor) record(ctx context.Context, rec *domain.EntityRecord) {
	if err := p.store.Persist(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.Warn.Printf("request %s entity %d: stale write ignored: %v", rec.RequestID, rec.EntityID, err)
		} else {
			logger.Error.Printf("request %s entity %d: persist %s: %v", rec.RequestID, rec.EntityID, rec.Status, err)
		}
	}
	p.publish(rec.RequestID, Event{
		Type:     EventTypeEntity,
		EntityID: rec.EntityID,
		Status:   string(rec.Status),
		Message:  rec.ErrorMessage,
	})
}

func (p *JobProcessor) publish(requestID string, event Event) {
	if p.events != nil {
		p.events.Publish(requestID, event)
	}
}
