package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender POSTs delivery payloads to subscriber endpoints, signing
// each body with the subscription's secret so the receiver can verify
// authenticity the same way the Observer log's events carry an
// HMAC signature.
type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, sub Subscription, deliveryID string, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build request for %s: %w", sub.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	req.Header.Set("X-Webhook-Signature", "sha256="+signature)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: delivering to %s: %w", sub.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s responded %d", sub.URL, resp.StatusCode)
	}
	return nil
}
