package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/getsentry/sentry-go"

	"github.com/StoneRaptor5870/image-processor/internal/entities"
)

// ErrNoProducts means a request id has no catalog rows at all: either it was
// never ingested or ingestion persisted nothing. The run aborts without
// notifying.
var ErrNoProducts = errors.New("no products found for request")

type Catalog interface {
	ListProductsAfter(ctx context.Context, requestID string, afterID int64, limit int) ([]entities.Product, error)
	AllProcessed(ctx context.Context, requestID string) (bool, error)
	UpdateProductOutputs(ctx context.Context, productID int64, urls []string) error
	SetRequestStatus(ctx context.Context, requestID string, status entities.RequestStatus) error
}

type ImagePipeline interface {
	Process(ctx context.Context, url, productName string, idx int) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, requestID string) error
}

// Orchestrator drives the batch image processing of one request: it pages
// through the request's products, runs every input image through the
// pipeline exactly once per run, persists per-product results and signals
// completion once the scan is done.
type Orchestrator struct {
	catalog  Catalog
	pipeline ImagePipeline
	notifier Notifier

	pageSize     int
	imageWorkers int
}

func New(catalog Catalog, pipeline ImagePipeline, notifier Notifier, pageSize, imageWorkers int) *Orchestrator {
	if pageSize <= 0 {
		pageSize = 25
	}
	if imageWorkers <= 0 {
		imageWorkers = 4
	}
	return &Orchestrator{
		catalog:      catalog,
		pipeline:     pipeline,
		notifier:     notifier,
		pageSize:     pageSize,
		imageWorkers: imageWorkers,
	}
}

// Run processes every pending product of requestID. It is idempotent: a
// re-run skips products that were already attempted and a fully processed
// request only re-triggers the completion notification. Safe to invoke again
// after a crash at any point.
func (o *Orchestrator) Run(ctx context.Context, requestID string) error {
	allProcessed, err := o.catalog.AllProcessed(ctx, requestID)
	if err != nil {
		return fmt.Errorf("check processed state of %s: %w", requestID, err)
	}
	if allProcessed {
		// A previous run finished the images but may have crashed before
		// notifying. Completion is monotonic, so re-marking is harmless.
		log.Printf("[orchestrator] all products already processed for request %s, skipping to notification", requestID)
		o.complete(ctx, requestID)
		return nil
	}

	visited := make(map[int64]struct{})
	afterID := int64(0)
	firstPage := true

	for {
		page, err := o.catalog.ListProductsAfter(ctx, requestID, afterID, o.pageSize)
		if err != nil {
			return fmt.Errorf("list products of %s after id %d: %w", requestID, afterID, err)
		}

		if len(page) == 0 {
			if firstPage {
				log.Printf("[orchestrator] no products found for request %s", requestID)
				return fmt.Errorf("%w: %s", ErrNoProducts, requestID)
			}
			break
		}
		firstPage = false

		for _, product := range page {
			// Guard against a row surfacing twice across pages; pagination
			// runs over a table that other requests keep writing to.
			if _, seen := visited[product.ID]; seen {
				continue
			}
			visited[product.ID] = struct{}{}

			if product.Attempted {
				continue
			}

			outputs := o.processProduct(ctx, product)
			if err := o.catalog.UpdateProductOutputs(ctx, product.ID, outputs); err != nil {
				return fmt.Errorf("persist outputs of product %d: %w", product.ID, err)
			}
		}

		// A short page is necessarily the last one; skip the empty fetch.
		if len(page) < o.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	o.complete(ctx, requestID)
	log.Printf("[orchestrator] processing completed for request %s (%d products)", requestID, len(visited))
	return nil
}

// processProduct fans the product's images out over a bounded worker set and
// joins before returning, so the caller writes the product row exactly once
// with the complete result. The returned slice holds the successful locations
// in input order; per-image failures only mean absence from it.
func (o *Orchestrator) processProduct(ctx context.Context, product entities.Product) []string {
	if len(product.InputURLs) == 0 {
		log.Printf("[orchestrator] product %q has no parseable input urls, marking as attempted", product.Name)
		return nil
	}

	log.Printf("[orchestrator] processing %d images for product %q", len(product.InputURLs), product.Name)

	locations := make([]string, len(product.InputURLs))
	succeeded := make([]bool, len(product.InputURLs))

	sem := make(chan struct{}, o.imageWorkers)
	var wg sync.WaitGroup

	for i, url := range product.InputURLs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			location, err := o.pipeline.Process(ctx, url, product.Name, i)
			if err != nil {
				// Already logged and reported by the pipeline; the sibling
				// images keep going.
				return
			}
			locations[i] = location
			succeeded[i] = true
		}(i, url)
	}
	wg.Wait()

	outputs := make([]string, 0, len(locations))
	for i, ok := range succeeded {
		if ok {
			outputs = append(outputs, locations[i])
		}
	}

	if len(outputs) == 0 {
		log.Printf("[orchestrator] no images processed successfully for product %q", product.Name)
	}
	return outputs
}

// complete marks the request done and fires the completion notification.
// Notifier failures are logged and reported, never escalated: the request
// stays completed and a later re-run can re-trigger the notification.
func (o *Orchestrator) complete(ctx context.Context, requestID string) {
	if err := o.catalog.SetRequestStatus(ctx, requestID, entities.StatusCompleted); err != nil {
		log.Printf("[orchestrator] failed to mark request %s completed: %v", requestID, err)
		sentry.CaptureException(fmt.Errorf("mark request %s completed: %w", requestID, err))
	}

	if err := o.notifier.Notify(ctx, requestID); err != nil {
		log.Printf("[orchestrator] failed to send completion notification for request %s: %v", requestID, err)
		sentry.CaptureException(fmt.Errorf("notify completion of %s: %w", requestID, err))
	}
}
