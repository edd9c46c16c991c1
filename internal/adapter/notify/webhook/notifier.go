// Package webhook posts the job completion signal to a caller supplied URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

type payload struct {
	RequestID string           `json:"requestId"`
	Status    domain.JobStatus `json:"status"`
}

type Notifier struct {
	client *http.Client
}

func NewNotifier(timeout time.Duration) *Notifier {
	return &Notifier{client: &http.Client{Timeout: timeout}}
}

// Notify makes one POST attempt. Any transport error or non-2xx answer is
// returned for the caller to log; there is no retry.
func (n *Notifier) Notify(ctx context.Context, endpoint, requestID string, status domain.JobStatus) error {
	body, err := json.Marshal(payload{RequestID: requestID, Status: status})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
