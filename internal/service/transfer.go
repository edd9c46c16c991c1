package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/bnema/imgbatch/internal/validation"
)

// RetryPolicy bounds upload attempts against an overloaded image host.
// The delay between attempts is fixed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 2 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), retry.NewConstant(delay))
}

// TransferWorker moves one image from its source URL to the image host:
// download, compress, upload.
type TransferWorker struct {
	fetcher    port.ImageFetcher
	compressor port.ImageCompressor
	host       port.ImageHost
	policy     RetryPolicy
}

func NewTransferWorker(fetcher port.ImageFetcher, compressor port.ImageCompressor, host port.ImageHost, policy RetryPolicy) *TransferWorker {
	return &TransferWorker{
		fetcher:    fetcher,
		compressor: compressor,
		host:       host,
		policy:     policy,
	}
}

// Transfer returns the hosted URL for url. A failed image comes back as one
// of the per-image errors (see domain.IsImageError); a cancelled context is
// returned as is.
func (w *TransferWorker) Transfer(ctx context.Context, requestID, url string) (string, error) {
	data, err := w.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", classify(ctx, err, domain.ErrDownload)
	}

	compressed, err := w.compressor.Compress(data, validation.ScratchName(requestID, url))
	if err != nil {
		return "", classify(ctx, err, domain.ErrCompress)
	}

	return w.upload(ctx, requestID, compressed)
}

func (w *TransferWorker) upload(ctx context.Context, requestID string, data []byte) (string, error) {
	var (
		link     string
		attempts int
	)

	err := retry.Do(ctx, w.policy.backoff(), func(ctx context.Context) error {
		attempts++
		l, err := w.host.Upload(ctx, data)
		if err != nil {
			if errors.Is(err, domain.ErrUploadTransient) {
				logger.Warn.Printf("request %s: upload attempt %d/%d: %v", requestID, attempts, w.policy.MaxAttempts, err)
				return retry.RetryableError(err)
			}
			return err
		}
		link = l
		return nil
	})
	if err == nil {
		return link, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, domain.ErrUploadTransient) {
		return "", fmt.Errorf("%w: %d attempts: %v", domain.ErrUploadExhausted, attempts, err)
	}
	return "", classify(ctx, err, domain.ErrUploadFatal)
}

// classify keeps already classified errors and tags anything else with the
// stage sentinel, so a misbehaving adapter cannot fail a whole entity.
func classify(ctx context.Context, err error, stage error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if domain.IsImageError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", stage, err)
}
