package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
)

type ImageTransferer interface {
	Transfer(ctx context.Context, requestID, url string) (string, error)
}

// EntityPipeline transfers every image of one entity. A failed image is
// dropped from the outputs; anything else fails the entity.
type EntityPipeline struct {
	transfer     ImageTransferer
	imageWorkers int
}

func NewEntityPipeline(transfer ImageTransferer, imageWorkers int) *EntityPipeline {
	if imageWorkers < 1 {
		imageWorkers = 1
	}
	return &EntityPipeline{
		transfer:     transfer,
		imageWorkers: imageWorkers,
	}
}

// Process returns the hosted URLs in input order. The result may be shorter
// than the input list, or empty.
func (p *EntityPipeline) Process(ctx context.Context, rec *domain.EntityRecord) (outputs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs, err = nil, fmt.Errorf("entity %d: panic: %v", rec.EntityID, r)
		}
	}()

	urls := rec.InputImageURLs
	links := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.imageWorkers)

	for i, url := range urls {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("image %d: panic: %v", i, r)
				}
			}()

			link, err := p.transfer.Transfer(gctx, rec.RequestID, url)
			if err != nil {
				if domain.IsImageError(err) {
					logger.Warn.Printf("request %s entity %d: skipping %s: %v",
						rec.RequestID, rec.EntityID, logger.SanitizeForLog(url), err)
					return nil
				}
				return fmt.Errorf("image %s: %w", logger.SanitizeForLog(url), err)
			}
			links[i] = link
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs = make([]string, 0, len(links))
	for _, l := range links {
		if l != "" {
			outputs = append(outputs, l)
		}
	}
	return outputs, nil
}
