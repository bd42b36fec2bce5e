package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEvent_CalculateHashIsDeterministic(t *testing.T) {
	e := &Event{
		ID:        "evt-1",
		Type:      ReviewCompleted,
		SubjectID: "rev-1",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Metadata:  map[string]any{"status": "fail", "findings": 3},
	}
	first := e.CalculateHash()
	e.Metadata = map[string]any{"findings": 3, "status": "fail"}
	if got := e.CalculateHash(); got != first {
		t.Errorf("hash changed with map order: %s vs %s", got, first)
	}
	e.PrevHash = "abc"
	if e.CalculateHash() == first {
		t.Error("hash must depend on the previous hash")
	}
}

func TestVerifyChain(t *testing.T) {
	var chain []*Event
	prev := ""
	for i, typ := range []string{ReviewStarted, ReviewCompleted, ResultPublished} {
		e := &Event{ID: string(rune('a' + i)), Type: typ, SubjectID: "rev-1", PrevHash: prev}
		e.Hash = e.CalculateHash()
		prev = e.Hash
		chain = append(chain, e)
	}
	if got := VerifyChain(chain); got != -1 {
		t.Fatalf("VerifyChain = %d, want -1", got)
	}
	chain[1].SubjectID = "tampered"
	if got := VerifyChain(chain); got != 1 {
		t.Errorf("VerifyChain after tamper = %d, want 1", got)
	}
}

func TestDispatcher_TypedAndWildcard(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.Register("typed", func(context.Context, *Event) error {
		order = append(order, "typed")
		return nil
	}, ReviewCompleted)
	d.Register("all", func(context.Context, *Event) error {
		order = append(order, "all")
		return nil
	}, Wildcard)

	if err := d.Dispatch(context.Background(), &Event{Type: ReviewCompleted}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), &Event{Type: ReviewStarted}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []string{"typed", "all", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
	if n := d.HandlerCount(ReviewCompleted); n != 2 {
		t.Errorf("HandlerCount = %d, want 2", n)
	}
}

func TestDispatcher_Errors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	d := NewDispatcher()
	d.Register("fails", func(context.Context, *Event) error { calls++; return boom }, ReviewCompleted)
	d.Register("after", func(context.Context, *Event) error { calls++; return nil }, ReviewCompleted)

	if err := d.Dispatch(context.Background(), &Event{Type: ReviewCompleted}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want dispatch to stop at first error", calls)
	}

	calls = 0
	d.ContinueOnError = true
	err := d.Dispatch(context.Background(), &Event{Type: ReviewCompleted})
	var de *DispatchError
	if !errors.As(err, &de) || len(de.Errors) != 1 {
		t.Fatalf("err = %v, want DispatchError with one entry", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWebhookEndpoint_Matches(t *testing.T) {
	ep := WebhookEndpoint{EventFilters: []string{ReviewCompleted}}
	if !ep.Matches(ReviewCompleted) || ep.Matches(ReviewStarted) {
		t.Error("filter mismatch")
	}
	if !(WebhookEndpoint{}).Matches(EvaluationRegressed) {
		t.Error("empty filter should match everything")
	}

	tests := map[string]struct {
		filter string
		event  string
		want   bool
	}{
		"namespace":       {"review.*", ReviewPartialFailure, true},
		"other namespace": {"review.*", EvaluationCompleted, false},
		"no partial word": {"eval.*", EvaluationCompleted, false},
		"wildcard":        {Wildcard, ResultPublished, true},
	}
	for name, tt := range tests {
		ep := WebhookEndpoint{EventFilters: []string{tt.filter}}
		if got := ep.Matches(tt.event); got != tt.want {
			t.Errorf("%s: Matches(%s) with %q = %v, want %v", name, tt.event, tt.filter, got, tt.want)
		}
	}
}
