package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/StoneRaptor5870/image-processor/internal/entities"
)

var ErrRequestNotFound = errors.New("request not found")

type dbStorage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

func (s *dbStorage) CreateRequest(ctx context.Context, requestID string) error {
	_, err := s.dbpool.Exec(ctx,
		`INSERT INTO requests (request_id, status) VALUES ($1, $2)`,
		requestID, entities.StatusPending)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", requestID, err)
	}
	return nil
}

func (s *dbStorage) GetRequestStatus(ctx context.Context, requestID string) (entities.RequestStatus, error) {
	var status entities.RequestStatus
	err := s.dbpool.QueryRow(ctx,
		`SELECT status FROM requests WHERE request_id = $1`, requestID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRequestNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status of %s: %w", requestID, err)
	}
	return status, nil
}

// SetRequestStatus is monotonic for completion: marking a request completed
// never reverts, re-marking is a no-op that still reports success.
func (s *dbStorage) SetRequestStatus(ctx context.Context, requestID string, status entities.RequestStatus) error {
	tag, err := s.dbpool.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE request_id = $2`,
		status, requestID)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// InsertProducts bulk-inserts catalog rows in a single round trip.
func (s *dbStorage) InsertProducts(ctx context.Context, requestID string, products []entities.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(
			`INSERT INTO products (request_id, product_name, input_image_urls) VALUES ($1, $2, $3)`,
			requestID, p.Name, joinURLs(p.InputURLs))
	}

	results := s.dbpool.SendBatch(ctx, batch)
	defer results.Close()

	for range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert products for %s: %w", requestID, err)
		}
	}
	return nil
}

// ListProductsAfter returns up to limit products of a request with id greater
// than afterID, ordered by id. Keyset pagination keeps a long scan stable
// against concurrent inserts, unlike a raw OFFSET cursor.
func (s *dbStorage) ListProductsAfter(ctx context.Context, requestID string, afterID int64, limit int) ([]entities.Product, error) {
	rows, err := s.dbpool.Query(ctx,
		`SELECT id, request_id, product_name, input_image_urls, output_image_urls
		 FROM products
		 WHERE request_id = $1 AND id > $2
		 ORDER BY id
		 LIMIT $3`,
		requestID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list products for %s: %w", requestID, err)
	}
	defer rows.Close()

	var products []entities.Product
	for rows.Next() {
		var (
			p      entities.Product
			input  string
			output *string
		)
		if err := rows.Scan(&p.ID, &p.RequestID, &p.Name, &input, &output); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		p.InputURLs = splitURLs(input)
		if output != nil {
			p.Attempted = true
			p.OutputURLs = splitURLs(*output)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products for %s: %w", requestID, err)
	}

	return products, nil
}

// AllProcessed reports whether every product of the request has been
// attempted. A request with no products at all reports false, so callers can
// still distinguish the never-ingested case.
func (s *dbStorage) AllProcessed(ctx context.Context, requestID string) (bool, error) {
	var total, unprocessed int64
	err := s.dbpool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE output_image_urls IS NULL)
		 FROM products WHERE request_id = $1`,
		requestID).Scan(&total, &unprocessed)
	if err != nil {
		return false, fmt.Errorf("count unprocessed for %s: %w", requestID, err)
	}
	return total > 0 && unprocessed == 0, nil
}

// UpdateProductOutputs records the result of an attempt. An empty urls slice
// is persisted as an empty string rather than NULL: NULL means "never
// attempted", empty string means "attempted, every image failed".
func (s *dbStorage) UpdateProductOutputs(ctx context.Context, productID int64, urls []string) error {
	_, err := s.dbpool.Exec(ctx,
		`UPDATE products SET output_image_urls = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		joinURLs(urls), productID)
	if err != nil {
		return fmt.Errorf("update outputs of product %d: %w", productID, err)
	}
	return nil
}

// ListResults returns every product of a request for the results export.
func (s *dbStorage) ListResults(ctx context.Context, requestID string) ([]entities.Product, error) {
	var all []entities.Product
	afterID := int64(0)
	for {
		page, err := s.ListProductsAfter(ctx, requestID, afterID, resultsPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		afterID = page[len(page)-1].ID
	}
}

const resultsPageSize = 500

func joinURLs(urls []string) string {
	return strings.Join(urls, ",")
}

func splitURLs(joined string) []string {
	var urls []string
	for _, part := range strings.Split(joined, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
