package entities

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
)

type Request struct {
	ID               int64         `json:"id"`
	RequestID        string        `json:"request_id"`
	Status           RequestStatus `json:"status"`
	CreatedTimestamp time.Time     `json:"created_timestamp"`
	UpdatedTimestamp time.Time     `json:"updated_timestamp"`
}

// Product is one catalog row. InputURLs and OutputURLs are real lists here;
// the comma-joined representation exists only inside the storage adapter.
type Product struct {
	ID         int64    `json:"id"`
	RequestID  string   `json:"request_id"`
	Name       string   `json:"product_name"`
	InputURLs  []string `json:"input_image_urls"`
	OutputURLs []string `json:"output_image_urls,omitempty"`

	// Attempted distinguishes "processed with zero successes" from
	// "never picked up". A product with Attempted=true and empty
	// OutputURLs had every source image fail.
	Attempted bool `json:"attempted"`
}
