package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

func TestNotifier_DeliverySuccess(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier([]events.WebhookEndpoint{{Name: "test", URL: server.URL, Enabled: true}}, nil, nil)
	n.Notify(context.Background(), &events.Event{Type: events.ReviewStarted, Timestamp: time.Now()})
	n.Wait()

	if received.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", received.Load())
	}
}

func TestNotifier_HMACSignature(t *testing.T) {
	secret := "test-secret"
	var (
		mu           sync.Mutex
		receivedSig  string
		receivedBody []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		receivedSig = r.Header.Get(SignatureHeader)
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier([]events.WebhookEndpoint{{Name: "test", URL: server.URL, Secret: secret, Enabled: true}}, nil, nil)
	n.Notify(context.Background(), &events.Event{Type: events.ReviewCompleted, SubjectID: "rev-1", Timestamp: time.Now()})
	n.Wait()

	mu.Lock()
	defer mu.Unlock()
	if receivedSig == "" {
		t.Fatalf("expected %s header", SignatureHeader)
	}
	if want := Sign(receivedBody, secret); receivedSig != want {
		t.Errorf("signature mismatch: got %s, want %s", receivedSig, want)
	}
}

func TestNotifier_RetryAndDeadLetter(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dlStore := NewDeadLetterStore(filepath.Join(t.TempDir(), "deadletters.jsonl"))
	ep := events.WebhookEndpoint{
		Name:       "test",
		URL:        server.URL,
		Enabled:    true,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}

	n := NewNotifier([]events.WebhookEndpoint{ep}, dlStore, nil)
	n.Notify(context.Background(), &events.Event{Type: events.ReviewPartialFailure, SubjectID: "rev-9", Timestamp: time.Now()})
	n.Wait()

	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
	entries, err := dlStore.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Attempts != 2 || entries[0].EventType != events.ReviewPartialFailure || entries[0].SubjectID != "rev-9" {
		t.Errorf("dead letters = %+v", entries)
	}
}

func TestNotifier_EventFilter(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ep := events.WebhookEndpoint{Name: "test", URL: server.URL, Enabled: true, EventFilters: []string{events.ReviewCompleted}}
	n := NewNotifier([]events.WebhookEndpoint{ep, {Name: "off", URL: server.URL}}, nil, nil)

	n.Notify(context.Background(), &events.Event{Type: events.ReviewStarted, Timestamp: time.Now()})
	n.Wait()
	if received.Load() != 0 {
		t.Errorf("expected 0 deliveries for filtered event, got %d", received.Load())
	}

	n.Notify(context.Background(), &events.Event{Type: events.ReviewCompleted, Timestamp: time.Now()})
	n.Wait()
	if received.Load() != 1 {
		t.Errorf("expected 1 delivery for matching event, got %d", received.Load())
	}
}

func TestNotifier_DispatcherHandlerOutlivesCancel(t *testing.T) {
	var payload Payload
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer server.Close()

	n := NewNotifier([]events.WebhookEndpoint{{Name: "test", URL: server.URL, Enabled: true}}, nil, nil)
	d := events.NewDispatcher()
	d.Register("webhook", n.Handle, events.Wildcard)

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Dispatch(ctx, &events.Event{Type: events.EvaluationCompleted, SubjectID: "eval-1", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	cancel()
	n.Wait()
	<-done

	if payload.EventType != events.EvaluationCompleted || payload.Data == nil || payload.Data.SubjectID != "eval-1" {
		t.Errorf("payload = %+v", payload)
	}
}
