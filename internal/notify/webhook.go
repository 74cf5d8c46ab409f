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
	"net/http"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "sha256=<hex HMAC-SHA256 of the body>".
	SignatureHeader = "X-Hub-Signature-256"
	// EventHeader carries the event type.
	EventHeader = "X-Hoopcoach-Event"

	defaultHTTPTimeout = 10 * time.Second
	maxErrorBodyBytes  = 4 << 10
	signaturePrefix    = "sha256="
)

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// Webhook posts events as JSON to a URL, signed with a shared secret.
type Webhook struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier. An empty secret sends unsigned
// requests.
func NewWebhook(url, secret string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        strings.TrimSpace(url),
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		if client != nil {
			w.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout on the default client.
func WithTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.httpClient = &http.Client{Timeout: d}
		}
	}
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event.Type)
	if w.secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("webhook status=%d body=%q", resp.StatusCode, strings.TrimSpace(string(errorBody)))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Hub-Signature-256 header value against the
// HMAC-SHA256 of body. Comparison is constant-time.
func VerifySignature(secret string, body []byte, header string) bool {
	if len(header) <= len(signaturePrefix) || header[:len(signaturePrefix)] != signaturePrefix {
		return false
	}
	received, err := hex.DecodeString(header[len(signaturePrefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}
