// Package notify posts JSON payloads to external endpoints, with optional
// HMAC-SHA256 signing. It is the delivery arm of the built-in integrations.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmorell/launchdeck/internal/metrics"
)

// Sender delivers JSON payloads over HTTP.
type Sender struct {
	client *http.Client
	logger *slog.Logger
}

// NewSender creates a Sender with a 10s request timeout.
func NewSender(logger *slog.Logger) *Sender {
	return &Sender{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Option customizes a single delivery.
type Option func(*deliveryOpts)

type deliveryOpts struct {
	secret  string
	headers map[string]string
}

// WithHMAC signs the payload with HMAC-SHA256 and attaches the signature
// as X-Launchdeck-Signature.
func WithHMAC(secret string) Option {
	return func(o *deliveryOpts) { o.secret = secret }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *deliveryOpts) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// PostJSON marshals payload and POSTs it to url. Non-2xx responses are
// errors; bodies of failed responses are drained and discarded.
func (s *Sender) PostJSON(ctx context.Context, url string, payload any, opts ...Option) error {
	var o deliveryOpts
	for _, opt := range opts {
		opt(&o)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	if o.secret != "" {
		req.Header.Set("X-Launchdeck-Signature", Sign(body, o.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.NotifyDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotifyDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("post %s: status %d", url, resp.StatusCode)
	}

	metrics.NotifyDeliveriesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an inbound payload signature in constant time.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
