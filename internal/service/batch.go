package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/port"
)

type JobQueue interface {
	Enqueue(job *domain.Job) error
}

// BatchService is the entry point for submissions and status queries.
type BatchService struct {
	store      port.StatusStore
	queue      JobQueue
	reports    port.ReportWriter
	scratchDir string
	retention  time.Duration
}

func NewBatchService(store port.StatusStore, queue JobQueue, reports port.ReportWriter, scratchDir string, retention time.Duration) *BatchService {
	return &BatchService{
		store:      store,
		queue:      queue,
		reports:    reports,
		scratchDir: scratchDir,
		retention:  retention,
	}
}

// Submit records a pending entry for every entity, then queues the job and
// returns without waiting for any processing.
func (s *BatchService) Submit(ctx context.Context, manifest *domain.Manifest, webhookURL string) (*domain.Job, error) {
	if manifest.Len() == 0 {
		return nil, fmt.Errorf("%w: no entities", domain.ErrInvalidManifest)
	}

	job := domain.NewJob(manifest, webhookURL)
	for _, rec := range job.Records {
		if err := s.store.Persist(ctx, rec.Clone()); err != nil {
			logger.Error.Printf("request %s entity %d: persist pending: %v", job.RequestID, rec.EntityID, err)
		}
	}

	if err := s.queue.Enqueue(job); err != nil {
		s.abandon(ctx, job, err)
		return nil, fmt.Errorf("queue request %s: %w", job.RequestID, err)
	}

	logger.Info.Printf("request %s accepted: %d entities, %d images, webhook=%t",
		job.RequestID, manifest.Len(), manifest.ImageCount(), webhookURL != "")
	return job, nil
}

// abandon fails the records of a job that never reached the queue, so they
// can age out like any finished entity.
func (s *BatchService) abandon(ctx context.Context, job *domain.Job, cause error) {
	storeCtx := context.WithoutCancel(ctx)
	for _, rec := range job.Records {
		if err := rec.MarkFailed(cause); err != nil {
			logger.Error.Printf("request %s entity %d: %v", job.RequestID, rec.EntityID, err)
			continue
		}
		if err := s.store.Persist(storeCtx, rec.Clone()); err != nil {
			logger.Error.Printf("request %s entity %d: persist rejected: %v", job.RequestID, rec.EntityID, err)
		}
	}
	logger.Warn.Printf("request %s rejected: %v", job.RequestID, cause)
}

func (s *BatchService) Status(ctx context.Context, requestID string) ([]*domain.EntityRecord, error) {
	return s.store.Query(ctx, requestID)
}

// ReportPath returns the written report for requestID, or domain.ErrNotFound
// while the job is still running.
func (s *BatchService) ReportPath(requestID string) (string, error) {
	path := s.reports.Path(requestID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// Cleanup drops terminal records, scratch files and reports older than the
// retention period. It keeps going past individual failures.
func (s *BatchService) Cleanup(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-s.retention)

	var errs error
	n, err := s.store.DeleteExpired(ctx, cutoff)
	errs = multierr.Append(errs, err)
	if n > 0 {
		logger.Info.Printf("cleanup: removed %d expired records", n)
	}

	errs = multierr.Append(errs, removeOlderThan(s.scratchDir, cutoff))
	errs = multierr.Append(errs, removeOlderThan(s.reports.Dir(), cutoff))
	return errs
}

func removeOlderThan(dir string, cutoff time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var errs error
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = multierr.Append(errs, err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info.Printf("cleanup: removed %d files from %s", removed, dir)
	}
	return errs
}
