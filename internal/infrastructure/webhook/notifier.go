// Package webhook delivers review and evaluation events to HTTP endpoints.
package webhook

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
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

// SignatureHeader carries the HMAC of the body when an endpoint has a secret.
const SignatureHeader = "X-SmartReviewer-Signature"

// Notifier sends events to every matching enabled endpoint. Deliveries
// run in the background; Wait blocks until they finish.
type Notifier struct {
	endpoints  []events.WebhookEndpoint
	client     *http.Client
	deadLetter *DeadLetterStore
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewNotifier(endpoints []events.WebhookEndpoint, deadLetter *DeadLetterStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		endpoints:  endpoints,
		client:     &http.Client{Timeout: 10 * time.Second},
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	Data      *events.Event `json:"data"`
}

// Handle adapts Notify to the event dispatcher.
func (n *Notifier) Handle(ctx context.Context, event *events.Event) error {
	n.Notify(ctx, event)
	return nil
}

// Notify queues delivery of event. Deliveries outlive ctx cancellation so
// a finished run still reports its completion.
func (n *Notifier) Notify(ctx context.Context, event *events.Event) {
	body, err := json.Marshal(Payload{EventType: event.Type, Timestamp: event.Timestamp, Data: event})
	if err != nil {
		n.logger.Warn("webhook payload encoding failed", "event", event.Type, "error", err)
		return
	}

	bg := context.WithoutCancel(ctx)
	for _, ep := range n.endpoints {
		if !ep.Enabled || !ep.Matches(event.Type) {
			continue
		}
		n.wg.Add(1)
		go func(ep events.WebhookEndpoint) {
			defer n.wg.Done()
			n.deliver(bg, ep, event, body)
		}(ep)
	}
}

// Wait blocks until queued deliveries have succeeded or been dead-lettered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ep events.WebhookEndpoint, event *events.Event, body []byte) {
	maxRetries := ep.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := ep.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	attempts := 0
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   maxRetries,
		InitialDelay:  retryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, n.send(ctx, ep, body)
	})
	if err == nil {
		return
	}

	n.logger.Warn("webhook delivery failed", "webhook", ep.Name, "event", event.Type, "subject", event.SubjectID, "attempts", attempts, "error", err)
	if n.deadLetter == nil {
		return
	}
	dl := events.DeadLetter{
		Timestamp:   time.Now(),
		WebhookName: ep.Name,
		URL:         ep.URL,
		EventType:   event.Type,
		SubjectID:   event.SubjectID,
		Payload:     string(body),
		Error:       err.Error(),
		Attempts:    attempts,
	}
	if err := n.deadLetter.Append(dl); err != nil {
		n.logger.Error("dead letter append failed", "webhook", ep.Name, "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, ep events.WebhookEndpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SmartReviewer-Webhook/1.0")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Redeliver sends a dead-lettered payload once more to its original URL.
// The signing secret comes from the configured endpoint of the same name.
func (n *Notifier) Redeliver(ctx context.Context, dl events.DeadLetter) error {
	ep := events.WebhookEndpoint{Name: dl.WebhookName, URL: dl.URL}
	for _, configured := range n.endpoints {
		if configured.Name == dl.WebhookName {
			ep.Secret = configured.Secret
			break
		}
	}
	return n.send(ctx, ep, []byte(dl.Payload))
}
