package queue

// ProcessJob is what we push to Redis Streams. Only the request id travels;
// the worker reads everything else from the catalog.
type ProcessJob struct {
	RequestID string `json:"request_id"`
}
