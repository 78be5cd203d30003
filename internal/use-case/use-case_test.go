package use_case

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/StoneRaptor5870/image-processor/internal/entities"
	"github.com/StoneRaptor5870/image-processor/internal/queue"
)

type fakeStorage struct {
	requests map[string]entities.RequestStatus
	products map[string][]entities.Product
	results  []entities.Product
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		requests: make(map[string]entities.RequestStatus),
		products: make(map[string][]entities.Product),
	}
}

func (f *fakeStorage) CreateRequest(_ context.Context, requestID string) error {
	f.requests[requestID] = entities.StatusPending
	return nil
}

func (f *fakeStorage) SetRequestStatus(_ context.Context, requestID string, status entities.RequestStatus) error {
	if _, ok := f.requests[requestID]; !ok {
		return errors.New("request not found")
	}
	f.requests[requestID] = status
	return nil
}

func (f *fakeStorage) GetRequestStatus(_ context.Context, requestID string) (entities.RequestStatus, error) {
	status, ok := f.requests[requestID]
	if !ok {
		return "", errors.New("request not found")
	}
	return status, nil
}

func (f *fakeStorage) InsertProducts(_ context.Context, requestID string, products []entities.Product) error {
	f.products[requestID] = append(f.products[requestID], products...)
	return nil
}

func (f *fakeStorage) ListResults(_ context.Context, _ string) ([]entities.Product, error) {
	return f.results, nil
}

type fakeCache struct {
	values map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{values: make(map[string]string)} }

func (f *fakeCache) Get(_ context.Context, key string) (interface{}, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (f *fakeCache) Store(_ context.Context, key string, _ int, value interface{}) error {
	f.values[key] = value.(string)
	return nil
}

type fakeQueue struct {
	jobs []queue.ProcessJob
	err  error
}

func (f *fakeQueue) EnqueueProcess(_ context.Context, job queue.ProcessJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

const sampleCatalog = `S. No.,Product Name,Input Image Urls
1,SKU1,"https://img.example.com/1a.jpg,https://img.example.com/1b.jpg"
2,SKU2,https://img.example.com/2a.jpg
`

func TestIngestCatalog_ParsesRowsAndEnqueuesProcessing(t *testing.T) {
	store := newFakeStorage()
	q := &fakeQueue{}
	uc := New(store, newFakeCache(), q)

	requestID, err := uc.IngestCatalog(context.Background(), strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requestID == "" {
		t.Fatal("expected a generated request id")
	}

	if store.requests[requestID] != entities.StatusPending {
		t.Errorf("expected pending request record, got %q", store.requests[requestID])
	}

	products := store.products[requestID]
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Name != "SKU1" || len(products[0].InputURLs) != 2 {
		t.Errorf("first product parsed wrong: %+v", products[0])
	}
	if products[1].Name != "SKU2" || len(products[1].InputURLs) != 1 {
		t.Errorf("second product parsed wrong: %+v", products[1])
	}

	if len(q.jobs) != 1 || q.jobs[0].RequestID != requestID {
		t.Errorf("expected one enqueued job for %s, got %v", requestID, q.jobs)
	}
}

func TestIngestCatalog_SkipsRowsMissingRequiredFields(t *testing.T) {
	csv := "S. No.,Product Name,Input Image Urls\n" +
		"1,,https://img.example.com/1.jpg\n" +
		"2,SKU2,\n" +
		"3,SKU3,https://img.example.com/3.jpg\n"

	store := newFakeStorage()
	uc := New(store, newFakeCache(), &fakeQueue{})

	requestID, err := uc.IngestCatalog(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	products := store.products[requestID]
	if len(products) != 1 || products[0].Name != "SKU3" {
		t.Errorf("expected only the valid row to survive, got %+v", products)
	}
}

func TestIngestCatalog_RejectsCatalogWithNoValidRows(t *testing.T) {
	csv := "S. No.,Product Name,Input Image Urls\n1,,\n"

	uc := New(newFakeStorage(), newFakeCache(), &fakeQueue{})
	if _, err := uc.IngestCatalog(context.Background(), strings.NewReader(csv)); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestIngestCatalog_RejectsMissingColumns(t *testing.T) {
	csv := "Name,Urls\nSKU1,https://img.example.com/1.jpg\n"

	uc := New(newFakeStorage(), newFakeCache(), &fakeQueue{})
	if _, err := uc.IngestCatalog(context.Background(), strings.NewReader(csv)); err == nil {
		t.Fatal("expected error for csv without the expected columns")
	}
}

func TestIngestCatalog_SucceedsEvenWhenEnqueueFails(t *testing.T) {
	store := newFakeStorage()
	uc := New(store, newFakeCache(), &fakeQueue{err: errors.New("redis down")})

	requestID, err := uc.IngestCatalog(context.Background(), strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("ingestion must survive a failed enqueue, got %v", err)
	}
	if store.requests[requestID] != entities.StatusPending {
		t.Error("request record must exist for a later manual trigger")
	}
}

func TestGetStatus_CachesCompletedLookups(t *testing.T) {
	store := newFakeStorage()
	store.requests["req-1"] = entities.StatusCompleted
	cache := newFakeCache()
	uc := New(store, cache, &fakeQueue{})

	status, err := uc.GetStatus(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != entities.StatusCompleted {
		t.Fatalf("expected completed, got %q", status)
	}

	// Second lookup is served from cache even if the store loses the row.
	delete(store.requests, "req-1")
	status, err = uc.GetStatus(context.Background(), "req-1")
	if err != nil || status != entities.StatusCompleted {
		t.Errorf("expected cached completed status, got %q, %v", status, err)
	}
}

func TestGetStatus_DoesNotCachePending(t *testing.T) {
	store := newFakeStorage()
	store.requests["req-1"] = entities.StatusPending
	cache := newFakeCache()
	uc := New(store, cache, &fakeQueue{})

	if _, err := uc.GetStatus(context.Background(), "req-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.values["req-1"]; ok {
		t.Error("pending status must not be cached; it is not terminal")
	}
}

func TestExportResults_WritesCSVWithOutputColumns(t *testing.T) {
	store := newFakeStorage()
	store.results = []entities.Product{
		{
			ID:        1,
			Name:      "SKU1",
			InputURLs: []string{"https://in/1.jpg", "https://in/2.jpg"},
			OutputURLs: []string{
				"https://out/1.jpg",
				"https://out/2.jpg",
			},
			Attempted: true,
		},
		{ID: 2, Name: "SKU2", InputURLs: []string{"https://in/3.jpg"}, Attempted: true},
	}
	uc := New(store, newFakeCache(), &fakeQueue{})

	var buf bytes.Buffer
	if err := uc.ExportResults(context.Background(), "req-1", &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "product_name,input_image_urls,output_image_urls" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "https://out/1.jpg,https://out/2.jpg") {
		t.Errorf("row 1 missing joined outputs: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",") {
		t.Errorf("all-failed product should have an empty output column: %q", lines[2])
	}
}
