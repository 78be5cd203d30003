package use_case

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/StoneRaptor5870/image-processor/internal/entities"
	"github.com/StoneRaptor5870/image-processor/internal/queue"
)

var ErrEmptyCatalog = errors.New("catalog contains no valid rows")

type Storage interface {
	CreateRequest(ctx context.Context, requestID string) error
	SetRequestStatus(ctx context.Context, requestID string, status entities.RequestStatus) error
	GetRequestStatus(ctx context.Context, requestID string) (entities.RequestStatus, error)
	InsertProducts(ctx context.Context, requestID string, products []entities.Product) error
	ListResults(ctx context.Context, requestID string) ([]entities.Product, error)
}

type StatusCache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Store(ctx context.Context, key string, ttl int, value interface{}) error
}

type BatchQueue interface {
	EnqueueProcess(ctx context.Context, job queue.ProcessJob) error
}

type useCase struct {
	storage   Storage
	cache     StatusCache
	producer  BatchQueue
	validator *validator.Validate
}

func New(storage Storage, cache StatusCache, producer BatchQueue) *useCase {
	return &useCase{
		storage:   storage,
		cache:     cache,
		producer:  producer,
		validator: validator.New(),
	}
}

// catalogRow mirrors one CSV line of the uploaded catalog.
type catalogRow struct {
	Serial         string
	ProductName    string `validate:"required,max=255"`
	InputImageURLs string `validate:"required"`
}

// IngestCatalog parses the uploaded CSV, persists its products and the
// request record, and enqueues the batch-processing trigger. It returns the
// generated request id; processing itself happens in the background worker.
func (c *useCase) IngestCatalog(ctx context.Context, file io.Reader) (string, error) {
	requestID := uuid.NewString()

	rows, err := parseCatalog(file)
	if err != nil {
		return "", err
	}

	products := make([]entities.Product, 0, len(rows))
	for _, row := range rows {
		if err := c.validator.Struct(row); err != nil {
			// Skip invalid rows, as the reference ingestion does.
			log.Printf("[ingest] skipping invalid catalog row %q: %v", row.Serial, err)
			continue
		}
		products = append(products, entities.Product{
			Name:      row.ProductName,
			InputURLs: splitCSVList(row.InputImageURLs),
		})
	}
	if len(products) == 0 {
		return "", ErrEmptyCatalog
	}

	if err := c.storage.InsertProducts(ctx, requestID, products); err != nil {
		return "", err
	}
	if err := c.storage.CreateRequest(ctx, requestID); err != nil {
		return "", err
	}

	if err := c.ProcessBatch(ctx, requestID); err != nil {
		// The request exists either way; a later manual trigger can pick it
		// up, so ingestion still succeeds.
		log.Printf("[ingest] failed to enqueue processing for request %s: %v", requestID, err)
	}

	return requestID, nil
}

// ProcessBatch triggers asynchronous processing of a request. It returns as
// soon as the job is queued.
func (c *useCase) ProcessBatch(ctx context.Context, requestID string) error {
	return c.producer.EnqueueProcess(ctx, queue.ProcessJob{RequestID: requestID})
}

// GetStatus reports the request's lifecycle state. Completed is terminal, so
// it is served from cache once seen.
func (c *useCase) GetStatus(ctx context.Context, requestID string) (entities.RequestStatus, error) {
	if cached, err := c.cache.Get(ctx, requestID); err == nil {
		if s, ok := cached.(string); ok && s == string(entities.StatusCompleted) {
			return entities.StatusCompleted, nil
		}
	}

	status, err := c.storage.GetRequestStatus(ctx, requestID)
	if err != nil {
		return "", err
	}

	if status == entities.StatusCompleted {
		if err := c.cache.Store(ctx, requestID, statusCacheTTLSeconds, string(status)); err != nil {
			log.Printf("[status] failed to cache status of %s: %v", requestID, err)
		}
	}
	return status, nil
}

const statusCacheTTLSeconds = 3600

// CompleteRequest marks a request completed; used by the webhook receiver.
func (c *useCase) CompleteRequest(ctx context.Context, requestID string) error {
	return c.storage.SetRequestStatus(ctx, requestID, entities.StatusCompleted)
}

// ExportResults writes the processed catalog as CSV, one row per product with
// its input and output image URL lists.
func (c *useCase) ExportResults(ctx context.Context, requestID string, w io.Writer) error {
	products, err := c.storage.ListResults(ctx, requestID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"product_name", "input_image_urls", "output_image_urls"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		record := []string{p.Name, strings.Join(p.InputURLs, ","), strings.Join(p.OutputURLs, ",")}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row for product %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseCatalog reads the upload's CSV rows. Expected header columns:
// "S. No.", "Product Name", "Input Image Urls" (matched case-insensitively).
func parseCatalog(file io.Reader) ([]catalogRow, error) {
	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[normalizeHeader(name)] = i
	}
	index := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	serialIdx, nameIdx, urlsIdx := index("s no"), index("product name"), index("input image urls")
	if nameIdx < 0 {
		return nil, errors.New(`csv is missing the "Product Name" column`)
	}
	if urlsIdx < 0 {
		return nil, errors.New(`csv is missing the "Input Image Urls" column`)
	}

	var rows []catalogRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rows = append(rows, catalogRow{
			Serial:         field(record, serialIdx),
			ProductName:    field(record, nameIdx),
			InputImageURLs: field(record, urlsIdx),
		})
	}
	return rows, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, ".", "")
	return strings.Join(strings.Fields(name), " ")
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func splitCSVList(joined string) []string {
	var urls []string
	for _, part := range strings.Split(joined, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
