// Package webhook posts emitted signals to a configured HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// Destination delivers signals as JSON POST requests with limited retries
type Destination struct {
	url     string
	client  *http.Client
	retries int
}

// New creates a webhook destination
func New(url string, timeout time.Duration, retries int) *Destination {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Destination{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
	}
}

// Name implements alerts.Destination
func (d *Destination) Name() string {
	return "webhook"
}

// Send posts the signal, retrying transient failures with a short backoff
func (d *Destination) Send(ctx context.Context, sig *models.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			logger.Debug("retrying webhook delivery",
				zap.String("url", d.url),
				zap.Int("attempt", attempt),
			)
		}

		lastErr = d.post(ctx, payload)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", d.retries+1, lastErr)
}

func (d *Destination) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
