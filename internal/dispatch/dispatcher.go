package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitcasinillo/backend-server/config"
	"github.com/sony/gobreaker"
)

// Result reports the outcome of one logical send. A skipped send (receiver
// not configured) is not an error: Sent is false and Reason says why.
type Result struct {
	Sent     bool   `json:"sent"`
	Status   int    `json:"status,omitempty"`
	Response string `json:"response,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

const (
	ReasonDisabled = "disabled"
	ReasonNoURL    = "no_url"
)

// RetryOptions overrides the configured retry count and base backoff for a
// single send.
type RetryOptions struct {
	Retries int
	Backoff time.Duration
}

type SendOptions struct {
	// IdempotencyKey, when set, is used verbatim; otherwise the key is
	// resolved from payload.id, payload.bookingId, payload.paymentIntentId,
	// falling back to "<event>-<epoch-ms>".
	IdempotencyKey string
	// Source overrides meta.source in the nested envelope (default "backend").
	Source string
	Retry  *RetryOptions
}

type envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	Meta    meta           `json:"meta"`
}

type meta struct {
	Source      string `json:"source"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
}

// RetryPolicy decides whether an HTTP status is worth retrying.
type RetryPolicy func(status int) bool

func defaultRetryPolicy(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

type Dispatcher struct {
	cfg         config.DispatchConfig
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	isRetryable RetryPolicy
}

type Option func(*Dispatcher)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) { d.isRetryable = policy }
}

func NewDispatcher(cfg config.DispatchConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:         cfg,
		client:      &http.Client{Timeout: 30 * time.Second},
		isRetryable: defaultRetryPolicy,
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dispatch",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) enabled() bool {
	return d.cfg.WebhookURL != "" || d.cfg.BaseURL != ""
}

// resolveURL prefers the fixed webhook URL; otherwise it derives the target
// from the base URL and the event name.
func (d *Dispatcher) resolveURL(event string) string {
	if d.cfg.WebhookURL != "" {
		return d.cfg.WebhookURL
	}
	if d.cfg.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(d.cfg.BaseURL, "/") + "/webhook/" + url.PathEscape(event)
}

// Send delivers a named event to the configured receiver. Configuration
// absence is an expected operating mode and never returns an error; only
// exhausted retries against a configured receiver do.
func (d *Dispatcher) Send(ctx context.Context, event string, payload map[string]any, opts *SendOptions) (*Result, error) {
	if opts == nil {
		opts = &SendOptions{}
	}
	if !d.enabled() {
		log.Printf("dispatch not configured, skipping event %s", event)
		return &Result{Sent: false, Reason: ReasonDisabled}, nil
	}
	target := d.resolveURL(event)
	if target == "" {
		log.Printf("dispatch url not set, skipping event %s", event)
		return &Result{Sent: false, Reason: ReasonNoURL}, nil
	}

	body, err := d.buildBody(event, payload, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch body: %w", err)
	}

	headers, err := d.buildHeaders(body, resolveIdempotencyKey(event, payload, opts.IdempotencyKey))
	if err != nil {
		return nil, err
	}

	retries := d.cfg.Retries
	backoff := d.cfg.Backoff()
	if opts.Retry != nil {
		retries = opts.Retry.Retries
		backoff = opts.Retry.Backoff
	}

	return d.postWithRetry(ctx, target, headers, body, retries, backoff)
}

// Ping sends a system.ping event, useful for verifying receiver wiring.
func (d *Dispatcher) Ping(ctx context.Context) (*Result, error) {
	return d.Send(ctx, "system.ping", map[string]any{"message": "hello from backend"}, nil)
}

// buildBody uses a flat object when a single fixed receiver URL is
// configured and the nested envelope otherwise.
func (d *Dispatcher) buildBody(event string, payload map[string]any, source string) ([]byte, error) {
	if d.cfg.WebhookURL != "" {
		flat := map[string]any{"eventType": event}
		for k, v := range payload {
			flat[k] = v
		}
		return json.Marshal(flat)
	}
	if source == "" {
		source = "backend"
	}
	return json.Marshal(envelope{
		Event:   event,
		Payload: payload,
		Meta: meta{
			Source:      source,
			Environment: d.cfg.Environment,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// buildHeaders is called once per logical send so the timestamp, nonce and
// idempotency key stay stable across retries.
func (d *Dispatcher) buildHeaders(body []byte, idempotencyKey string) (http.Header, error) {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	nonceBytes := make([]byte, 12)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-API-Key", d.cfg.APIKey)
	headers.Set("X-Timestamp", ts)
	headers.Set("X-Nonce", nonce)
	headers.Set("X-Idempotency-Key", idempotencyKey)
	if d.cfg.APIKey != "" {
		headers.Set("X-Signature", signature(d.cfg.APIKey, ts, nonce, body))
	}
	return headers, nil
}

// signature is HMAC-SHA256 over "<timestamp>.<nonce>.<body>", letting the
// receiver reject stale or replayed requests.
func signature(secret, ts, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + nonce + "."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func resolveIdempotencyKey(event string, payload map[string]any, explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, field := range []string{"id", "bookingId", "paymentIntentId"} {
		if v, ok := payload[field].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("%s-%d", event, time.Now().UnixMilli())
}

func (d *Dispatcher) postWithRetry(ctx context.Context, target string, headers http.Header, body []byte, retries int, backoff time.Duration) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		status, respBody, err := d.post(ctx, target, headers, body)
		if err == nil {
			if status >= 200 && status < 300 {
				return &Result{Sent: true, Status: status, Response: respBody}, nil
			}
			if !d.isRetryable(status) {
				return &Result{Sent: false, Status: status, Response: respBody}, nil
			}
			lastErr = fmt.Errorf("receiver responded %d: %s", status, respBody)
		} else {
			lastErr = err
		}

		if attempt < retries {
			if err := sleep(ctx, backoff*(1<<attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("dispatch failed after %d attempts: %w", retries+1, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, target string, headers http.Header, body []byte) (int, string, error) {
	resp, err := d.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header = headers.Clone()
		return d.client.Do(req)
	})
	if err != nil {
		return 0, "", err
	}

	httpResp := resp.(*http.Response)
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, "", err
	}
	return httpResp.StatusCode, string(data), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
