package progress

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_HandleTranslatesEvents(t *testing.T) {
	h := NewHub(nil)
	all, stopAll := h.Subscribe("")
	defer stopAll()
	one, stopOne := h.Subscribe("rev-2")
	defer stopOne()

	ctx := context.Background()
	_ = h.Handle(ctx, &events.Event{Type: events.ReviewStarted, SubjectID: "doc"})
	_ = h.Handle(ctx, &events.Event{Type: events.ReviewProgressed, SubjectID: "rev-1", Metadata: map[string]any{
		"completed": 1, "total": 3, "check_item": "BD-001", "check_status": "pass",
	}})
	_ = h.Handle(ctx, &events.Event{Type: events.ReviewPartialFailure, SubjectID: "rev-2", Metadata: map[string]any{
		"status": "warning", "run_state": "partially_failed",
	}})

	m := receive(t, all)
	if m.Type != TypeProgress || m.Completed != 1 || m.Total != 3 || m.CheckItem != "BD-001" || m.CheckStatus != "pass" {
		t.Errorf("progress = %+v", m)
	}
	if m := receive(t, all); m.Type != TypeCompleted || m.ReviewID != "rev-2" {
		t.Errorf("completed = %+v", m)
	}
	if m := receive(t, one); m.ReviewID != "rev-2" || m.RunState != "partially_failed" {
		t.Errorf("filtered subscriber got %+v", m)
	}
	select {
	case m := <-one:
		t.Errorf("filtered subscriber got extra %+v", m)
	default:
	}
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	h := NewHub(nil)
	h.buffer = 1
	ch, stop := h.Subscribe("")
	h.Publish(Message{Type: TypeProgress, ReviewID: "r", Completed: 1})
	h.Publish(Message{Type: TypeProgress, ReviewID: "r", Completed: 2})
	if m := receive(t, ch); m.Completed != 1 {
		t.Errorf("first = %+v", m)
	}
	stop()
	stop()
	if h.Clients() != 0 {
		t.Errorf("clients after unsubscribe = %d", h.Clients())
	}
}

func TestHub_ServeWS(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?review=rev-9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close() //nolint:errcheck // test cleanup

	waitForClients(t, h, 1)
	h.Publish(Message{Type: TypeProgress, ReviewID: "other"})
	h.Publish(Message{Type: TypeCompleted, ReviewID: "rev-9", Status: "pass"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.ReviewID != "rev-9" || m.Status != "pass" {
		t.Errorf("message = %+v", m)
	}

	_ = conn.Close()
	waitForClients(t, h, 0)
}

func TestHub_ServeSSE(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s", ct)
	}

	waitForClients(t, h, 1)
	h.Publish(Message{Type: TypeProgress, ReviewID: "rev-1", Completed: 2, Total: 2})

	reader := bufio.NewReader(resp.Body)
	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if event != "event: progress\n" || !strings.Contains(data, `"review_id":"rev-1"`) {
		t.Errorf("frame = %q %q", event, data)
	}
}
