package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier performs the single outbound completion call for a request.
// Delivery is fire-and-forget: the caller logs a returned error but never
// retries within the run or lets it affect request state.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	RequestID string `json:"request_id"`
}

func (n *Notifier) Notify(ctx context.Context, requestID string) error {
	body, err := json.Marshal(payload{RequestID: requestID})
	if err != nil {
		return fmt.Errorf("marshal notification for %s: %w", requestID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request for %s: %w", requestID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification for %s: %w", requestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification for %s rejected with status %d", requestID, resp.StatusCode)
	}
	return nil
}
